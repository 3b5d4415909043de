package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/oyaguma3/upass-renew-agent/pkg/apperr"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) ProblemDetail {
	t.Helper()
	if got := w.Header().Get("Content-Type"); got != ContentType {
		t.Errorf("Content-Type = %q, want %q", got, ContentType)
	}
	var p ProblemDetail
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	return p
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	WriteError(c, Conflict("account must be registered first"))

	if w.Code != http.StatusConflict {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusConflict)
	}
	if p := decodeProblem(t, w); p.Detail != "account must be registered first" {
		t.Errorf("Detail = %q", p.Detail)
	}
}

func TestAbortWithErrorInMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if c.GetHeader("X-Fail") != "" {
			AbortWithError(c, InternalServerError("panic recovered"))
			return
		}
		c.Next()
	})
	reached := false
	router.GET("/renew", func(c *gin.Context) {
		reached = true
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/renew", nil)
	req.Header.Set("X-Fail", "1")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if reached {
		t.Error("handler should not run after abort")
	}
	if p := decodeProblem(t, w); p.Title != "Internal Server Error" {
		t.Errorf("Title = %q", p.Title)
	}
}

func TestProblemFor(t *testing.T) {
	fallback := ServiceUnavailable("store unavailable")

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{
			name:       "入力検証エラー",
			err:        fmt.Errorf("save: %w", apperr.Invalid("school", apperr.ErrInvalidSchool, "unknown")),
			wantStatus: http.StatusBadRequest,
			wantDetail: "invalid school: unknown",
		},
		{
			name:       "不正なリクエスト",
			err:        apperr.ErrInvalidRequest,
			wantStatus: http.StatusBadRequest,
			wantDetail: apperr.ErrInvalidRequest.Error(),
		},
		{
			name:       "アカウント未登録",
			err:        fmt.Errorf("load: %w", apperr.ErrAccountNotFound),
			wantStatus: http.StatusNotFound,
			wantDetail: apperr.ErrAccountNotFound.Error(),
		},
		{
			name:       "セッションなし",
			err:        apperr.ErrSessionNotFound,
			wantStatus: http.StatusNotFound,
			wantDetail: apperr.ErrSessionNotFound.Error(),
		},
		{
			name:       "Valkey障害",
			err:        apperr.NewValkeyError("HGETALL", "account", apperr.ErrValkeyConnection, nil),
			wantStatus: http.StatusServiceUnavailable,
			wantDetail: "valkey unavailable",
		},
		{
			name:       "描画面なし",
			err:        fmt.Errorf("chrome: %w", apperr.ErrSurfaceUnavailable),
			wantStatus: http.StatusBadGateway,
			wantDetail: "rendering surface unavailable",
		},
		{
			name:       "その他",
			err:        errors.New("boom"),
			wantStatus: fallback.Status,
			wantDetail: fallback.Detail,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ProblemFor(tt.err, fallback)
			if p.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", p.Status, tt.wantStatus)
			}
			if p.Detail != tt.wantDetail {
				t.Errorf("Detail = %q, want %q", p.Detail, tt.wantDetail)
			}
		})
	}
}

func TestWriteAppError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	WriteAppError(c, apperr.ErrAccountNotFound, InternalServerError("unexpected"))

	if w.Code != http.StatusNotFound {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusNotFound)
	}
	if p := decodeProblem(t, w); p.Title != "Not Found" {
		t.Errorf("Title = %q", p.Title)
	}
}
