package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/config"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/handler"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/scheduler"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/server"
)

func newServeCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the agent with its HTTP API and background schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), version)
		},
	}
}

func runServe(ctx context.Context, version string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	initLogger(cfg, os.Stdout)

	slog.Info("renew-agent起動",
		"event_id", "AGENT_START",
		"version", version,
		"surface", cfg.Surface,
		"listen_addr", cfg.ListenAddr,
		"background_interval", cfg.BackgroundInterval.String(),
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openAgent(ctx, cfg, version, false)
	if err != nil {
		return err
	}

	// シグナル受信後もHTTPの停止まではイベントループを動かし続ける
	runCtx, cancelRun := context.WithCancel(context.Background())
	a.start(runCtx)
	go scheduler.New(a.coord, cfg.BackgroundInterval).Run(runCtx)

	h := handler.NewRenewHandler(a.coord, a.store.vault, a.store.sessions, cfg)
	srv := server.New(cfg, h)

	// 待機中の要求を先に解決してからHTTPを止める
	err = srv.Serve(ctx, cancelRun)
	if err == nil {
		slog.Info("停止シグナルを受信", "event_id", "AGENT_SIGNAL")
	}
	a.Close()

	slog.Info("renew-agent停止", "event_id", "AGENT_STOP")
	return err
}
