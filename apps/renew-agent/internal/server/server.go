// Package server はエージェントのHTTP APIを提供する。
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/config"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/handler"
	"github.com/oyaguma3/upass-renew-agent/pkg/logging"
)

// Server はHTTP APIの待ち受けと停止を管理する。
type Server struct {
	engine *gin.Engine
	http   *http.Server
}

// New はルーティング済みのServerを生成する。
func New(cfg *config.Config, h *handler.RenewHandler) *Server {
	gin.SetMode(cfg.GinMode)

	engine := gin.New()
	engine.Use(TraceIDMiddleware(), LoggingMiddleware(), RecoveryMiddleware())
	SetupRouter(engine, h)

	return &Server{
		engine: engine,
		http: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           engine,
			ReadHeaderTimeout: config.ReadHeaderTimeout,
		},
	}
}

// Handler はルーティング済みのhttp.Handlerを返す。
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve はctxが終了するか待ち受けに失敗するまでAPIを提供する。
// 停止時はdrainを呼んでから、ShutdownTimeout以内に処理中の要求を終える。
// 待ち受けの失敗はエラーとして返し、通常の停止ではnilを返す。
func (s *Server) Serve(ctx context.Context, drain func()) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTPサーバー起動", "event_id", "HTTP_START", "addr", s.http.Addr)
		errCh <- s.http.ListenAndServe()
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-errCh:
		slog.Error("HTTPサーバー異常終了", "event_id", "HTTP_ERR", logging.WithError(err))
	}

	if drain != nil {
		drain()
	}

	sctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if serr := s.http.Shutdown(sctx); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
		slog.Error("HTTPサーバー停止失敗", "event_id", "HTTP_STOP_ERR", logging.WithError(serr))
	}
	slog.Info("HTTPサーバー停止", "event_id", "HTTP_STOP")
	return err
}
