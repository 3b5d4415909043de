package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/config"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/credential"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/school"
	"github.com/oyaguma3/upass-renew-agent/pkg/apperr"
	"github.com/oyaguma3/upass-renew-agent/pkg/httputil"
	"github.com/oyaguma3/upass-renew-agent/pkg/logging"
)

// HandleGetAccount はGET /api/v1/account のハンドラー。
func (h *RenewHandler) HandleGetAccount(c *gin.Context) {
	traceID := c.GetString(TraceIDKey)
	ctx, cancel := context.WithTimeout(c.Request.Context(), config.CredentialTimeout)
	defer cancel()

	a, err := h.accounts.Load(ctx)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, AccountResponse{Username: a.Username, School: a.School.ShortName})
	case errors.Is(err, credential.ErrCorrupted):
		httputil.WriteError(c, httputil.Conflict("stored password cannot be opened; register the account again"))
	default:
		h.storeError(c, traceID, "ACCOUNT_LOAD_ERR", err)
	}
}

// HandlePutAccount はPUT /api/v1/account のハンドラー。
func (h *RenewHandler) HandlePutAccount(c *gin.Context) {
	traceID := c.GetString(TraceIDKey)

	var req AccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("不正なリクエストボディ",
			logging.WithTraceID(traceID),
			logging.WithEventID("ACCOUNT_SAVE_ERR"),
			logging.WithError(err),
		)
		httputil.WriteError(c, httputil.BadRequest(apperr.ErrInvalidRequest.Error()))
		return
	}

	sc, err := school.ByShortName(req.School)
	if err != nil {
		httputil.WriteError(c, httputil.UnprocessableEntity(
			apperr.Invalid("school", nil, "%s", err.Error()).Error()))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), config.CredentialTimeout)
	defer cancel()

	a := credential.Account{Username: req.Username, Password: req.Password, School: sc}
	if err := h.accounts.Save(ctx, a); err != nil {
		h.storeError(c, traceID, "ACCOUNT_SAVE_ERR", err)
		return
	}

	slog.Info("アカウントを登録",
		logging.WithTraceID(traceID),
		logging.WithEventID("ACCOUNT_SAVED"),
		h.fields.WithUsername(a.Username),
		"school", sc.ShortName,
	)
	c.JSON(http.StatusOK, AccountResponse{Username: a.Username, School: sc.ShortName})
}

// HandleDeleteAccount はDELETE /api/v1/account のハンドラー。
func (h *RenewHandler) HandleDeleteAccount(c *gin.Context) {
	traceID := c.GetString(TraceIDKey)
	ctx, cancel := context.WithTimeout(c.Request.Context(), config.CredentialTimeout)
	defer cancel()

	if err := h.accounts.Delete(ctx); err != nil {
		h.storeError(c, traceID, "ACCOUNT_DELETE_ERR", err)
		return
	}
	slog.Info("アカウントを削除",
		logging.WithTraceID(traceID),
		logging.WithEventID("ACCOUNT_DELETED"),
	)
	c.Status(http.StatusNoContent)
}

// HandleSchools はGET /api/v1/schools のハンドラー。
func (h *RenewHandler) HandleSchools(c *gin.Context) {
	all := school.All()
	resp := make([]SchoolResponse, 0, len(all))
	for _, s := range all {
		resp = append(resp, NewSchoolResponse(s))
	}
	c.JSON(http.StatusOK, resp)
}

// storeError はアカウント保管のエラーを応答する。サーバー側の障害のみ記録する。
func (h *RenewHandler) storeError(c *gin.Context, traceID, eventID string, err error) {
	p := httputil.ProblemFor(err, httputil.ServiceUnavailable("account store unavailable"))
	if p.IsServerError() {
		slog.Error("アカウント保管の操作失敗",
			logging.WithTraceID(traceID),
			logging.WithEventID(eventID),
			logging.WithError(err),
		)
	}
	httputil.WriteError(c, p)
}
