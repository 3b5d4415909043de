// Package handler はHTTPリクエストハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/config"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/coordinator"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/credential"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/renewerr"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/session"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/store"
	"github.com/oyaguma3/upass-renew-agent/pkg/apperr"
	"github.com/oyaguma3/upass-renew-agent/pkg/httputil"
	"github.com/oyaguma3/upass-renew-agent/pkg/logging"
)

// TraceIDKey はコンテキストにTraceIDを格納するキー。
const TraceIDKey = "trace_id"

// Coordinator は更新セッションの操作を定義する
type Coordinator interface {
	Renew(ctx context.Context) (renewerr.Outcome, error)
	RenewInBackground(ctx context.Context) (renewerr.Outcome, error)
	Prepare(ctx context.Context) error
	Cancel(ctx context.Context) (bool, error)
	Active(ctx context.Context) (session.Snapshot, bool, error)
	Subscribe() (<-chan string, func())
}

// AccountVault はアカウントの保管を定義する
type AccountVault interface {
	credential.Provider
	Save(ctx context.Context, a credential.Account) error
	Delete(ctx context.Context) error
}

// RenewHandler は更新APIのハンドラー
type RenewHandler struct {
	coord    Coordinator
	accounts AccountVault
	sessions store.SessionStore
	fields   *logging.CommonFields
}

// NewRenewHandler は新しいRenewHandlerを生成する。
func NewRenewHandler(coord Coordinator, accounts AccountVault, sessions store.SessionStore, cfg *config.Config) *RenewHandler {
	return &RenewHandler{
		coord:    coord,
		accounts: accounts,
		sessions: sessions,
		fields:   logging.NewCommonFields(logging.NewMasker(cfg.LogMaskUsername)),
	}
}

// HandleRenew はPOST /api/v1/renew のハンドラー。
// background=true の場合はバックグラウンド扱いで要求する。
func (h *RenewHandler) HandleRenew(c *gin.Context) {
	traceID := c.GetString(TraceIDKey)
	ctx := c.Request.Context()

	renew := h.coord.Renew
	if c.Query("background") == "true" {
		renew = h.coord.RenewInBackground
	}

	start := time.Now()
	o, err := renew(ctx)
	if err != nil {
		h.handleCoordinatorError(c, traceID, "RENEW_REQ_ERR", err)
		return
	}

	slog.Info("更新要求が完了",
		logging.WithTraceID(traceID),
		logging.WithEventID("RENEW_REQ_OK"),
		"outcome", o.Label(),
		logging.WithLatency(time.Since(start).Milliseconds()),
	)
	c.JSON(http.StatusOK, NewRenewResponse(o))
}

// HandlePrepare はPOST /api/v1/prepare のハンドラー。
func (h *RenewHandler) HandlePrepare(c *gin.Context) {
	traceID := c.GetString(TraceIDKey)
	if err := h.coord.Prepare(c.Request.Context()); err != nil {
		if errors.Is(err, renewerr.ErrCredentialMissing) {
			slog.Info("アカウント未登録のため事前読み込みしない",
				logging.WithTraceID(traceID),
				logging.WithEventID("PREPARE_NO_ACCOUNT"),
			)
			httputil.WriteError(c, httputil.Conflict(renewerr.KindCredentialMissing.Title()))
			return
		}
		h.handleCoordinatorError(c, traceID, "PREPARE_ERR", err)
		return
	}
	c.JSON(http.StatusAccepted, PrepareResponse{Status: "preparing"})
}

// HandleCancel はPOST /api/v1/cancel のハンドラー。
func (h *RenewHandler) HandleCancel(c *gin.Context) {
	traceID := c.GetString(TraceIDKey)
	ok, err := h.coord.Cancel(c.Request.Context())
	if err != nil {
		h.handleCoordinatorError(c, traceID, "CANCEL_ERR", err)
		return
	}
	c.JSON(http.StatusOK, CancelResponse{Cancelled: ok})
}

// HandleSession はGET /api/v1/session のハンドラー。
// 実行中のセッションがなければ最後に保存されたセッションを返す。
func (h *RenewHandler) HandleSession(c *gin.Context) {
	traceID := c.GetString(TraceIDKey)
	ctx := c.Request.Context()

	snap, ok, err := h.coord.Active(ctx)
	if err != nil {
		h.handleCoordinatorError(c, traceID, "SESSION_REQ_ERR", err)
		return
	}
	if ok {
		c.JSON(http.StatusOK, SessionResponse{Active: true, Session: snap})
		return
	}

	sctx, cancel := context.WithTimeout(ctx, config.ValkeyCommandTimeout)
	defer cancel()
	rec, err := h.sessions.Latest(sctx)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			httputil.WriteError(c, httputil.NotFound(apperr.ErrSessionNotFound.Error()))
			return
		}
		slog.Error("セッション記録の取得失敗",
			logging.WithTraceID(traceID),
			logging.WithEventID("SESSION_REQ_ERR"),
			logging.WithError(err),
		)
		httputil.WriteError(c, httputil.ServiceUnavailable("session store unavailable"))
		return
	}
	c.JSON(http.StatusOK, SessionResponse{Active: false, Session: session.FromRecord(rec)})
}

// HandleStatus はGET /api/v1/status のハンドラー。
// 進捗表示をServer-Sent Eventsで配信する。
func (h *RenewHandler) HandleStatus(c *gin.Context) {
	ch, unsubscribe := h.coord.Subscribe()
	defer unsubscribe()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case status, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("status", status)
			return true
		case <-ctx.Done():
			return false
		}
	})
}

// HandleHealth はGET /health のハンドラー。
func (h *RenewHandler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleCoordinatorError はコーディネーター呼び出しのエラーを応答する。
func (h *RenewHandler) handleCoordinatorError(c *gin.Context, traceID, eventID string, err error) {
	if errors.Is(err, context.Canceled) {
		slog.Info("クライアントが要求を取り消した",
			logging.WithTraceID(traceID),
			logging.WithEventID(eventID),
		)
		c.Status(http.StatusServiceUnavailable)
		return
	}
	slog.Error("コーディネーター呼び出し失敗",
		logging.WithTraceID(traceID),
		logging.WithEventID(eventID),
		logging.WithError(err),
	)
	if errors.Is(err, coordinator.ErrStopped) {
		httputil.WriteError(c, httputil.ServiceUnavailable("agent is shutting down"))
		return
	}
	httputil.WriteError(c, httputil.InternalServerError("An unexpected error occurred"))
}
