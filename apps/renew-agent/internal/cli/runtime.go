package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/config"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/connectivity"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/coordinator"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/credential"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/store"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/surface"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/surface/chrome"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/surface/headless"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/tracing"
	"github.com/oyaguma3/upass-renew-agent/pkg/apperr"
	"github.com/oyaguma3/upass-renew-agent/pkg/logging"
)

// storeDeps はValkeyに依存するオブジェクト
type storeDeps struct {
	vc       *store.ValkeyClient
	vault    *credential.Vault
	sessions store.SessionStore
}

// openStore はValkeyに接続してアカウント保管とセッション記録を生成する。
func openStore(cfg *config.Config, oneShot bool) (*storeDeps, error) {
	connect := store.NewValkeyClient
	if oneShot {
		connect = store.NewCLIValkeyClient
	}
	vc, err := connect(cfg)
	if err != nil {
		return nil, err
	}
	key, err := cfg.SealKey()
	if err != nil {
		_ = vc.Close()
		return nil, err
	}
	slog.Info("Valkeyに接続",
		"event_id", "VALKEY_CONNECTED",
		"addr", cfg.ValkeyAddr(),
	)
	return &storeDeps{
		vc:       vc,
		vault:    credential.NewVault(store.NewAccountStore(vc), key),
		sessions: store.NewSessionStore(vc),
	}, nil
}

func (d *storeDeps) Close() error {
	return d.vc.Close()
}

// agent は更新セッションを実行する一式
type agent struct {
	cfg     *config.Config
	store   *storeDeps
	surface surface.Surface
	monitor *connectivity.Monitor
	coord   *coordinator.Coordinator
	tracer  *tracing.Provider
}

// openAgent はレンダリング面・疎通監視・コーディネーターを組み立てる。
func openAgent(ctx context.Context, cfg *config.Config, version string, oneShot bool) (*agent, error) {
	tracer, err := tracing.Setup(AppName, version, cfg.TracingEnabled, os.Stderr)
	if err != nil {
		return nil, err
	}

	deps, err := openStore(cfg, oneShot)
	if err != nil {
		_ = tracer.Shutdown(ctx)
		return nil, err
	}

	sf, err := openSurface(ctx, cfg)
	if err != nil {
		_ = deps.Close()
		_ = tracer.Shutdown(ctx)
		return nil, err
	}

	monitor := connectivity.NewMonitor(cfg.ProbeURL(), cfg.ConnectivityInterval)
	monitor.Check(ctx)

	return &agent{
		cfg:     cfg,
		store:   deps,
		surface: sf,
		monitor: monitor,
		coord:   coordinator.New(cfg, sf, deps.vault, deps.sessions, monitor),
		tracer:  tracer,
	}, nil
}

// openSurface は設定に応じたレンダリング面を生成する。
func openSurface(ctx context.Context, cfg *config.Config) (surface.Surface, error) {
	switch cfg.Surface {
	case config.SurfaceChrome:
		sf, err := chrome.New(ctx, cfg.ChromeWS)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", apperr.ErrSurfaceUnavailable, err)
		}
		return sf, nil
	default:
		return headless.New(), nil
	}
}

// start は疎通監視とイベントループを起動する。
func (a *agent) start(ctx context.Context) {
	go a.monitor.Run(ctx)
	go a.coord.Run(ctx)
}

// Close はイベントループの停止を待って資源を解放する。
// 事前にstartへ渡したctxをキャンセルしておくこと。
func (a *agent) Close() {
	select {
	case <-a.coord.Done():
	case <-time.After(config.ShutdownTimeout):
		slog.Warn("イベントループの停止待ちがタイムアウト", "event_id", "COORDINATOR_STOP_TIMEOUT")
	}
	if err := a.surface.Close(); err != nil && !errors.Is(err, surface.ErrClosed) {
		slog.Warn("レンダリング面の終了失敗", "event_id", "SURFACE_CLOSE_ERR", logging.WithError(err))
	}
	sctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := a.tracer.Shutdown(sctx); err != nil {
		slog.Warn("トレーサーの終了失敗", "event_id", "TRACER_CLOSE_ERR", logging.WithError(err))
	}
	_ = a.store.Close()
}
