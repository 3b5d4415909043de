package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/mock/gomock"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/config"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/credential"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/handler"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/mocks"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/renewerr"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/session"
	"github.com/oyaguma3/upass-renew-agent/pkg/httputil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubCoordinator struct{}

func (stubCoordinator) Renew(ctx context.Context) (renewerr.Outcome, error) {
	return renewerr.Success(), nil
}

func (stubCoordinator) RenewInBackground(ctx context.Context) (renewerr.Outcome, error) {
	return renewerr.Success(), nil
}

func (stubCoordinator) Prepare(ctx context.Context) error { return nil }

func (stubCoordinator) Cancel(ctx context.Context) (bool, error) { return false, nil }

func (stubCoordinator) Active(ctx context.Context) (session.Snapshot, bool, error) {
	return session.Snapshot{ID: "s1"}, true, nil
}

func (stubCoordinator) Subscribe() (<-chan string, func()) {
	ch := make(chan string)
	close(ch)
	return ch, func() {}
}

type stubVault struct{}

func (stubVault) Load(ctx context.Context) (credential.Account, error) {
	return credential.Account{}, credential.ErrNotFound
}

func (stubVault) Save(ctx context.Context, a credential.Account) error { return nil }

func (stubVault) Delete(ctx context.Context) error { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	ctrl := gomock.NewController(t)
	cfg := &config.Config{GinMode: gin.TestMode, ListenAddr: ":0"}
	h := handler.NewRenewHandler(stubCoordinator{}, stubVault{}, mocks.NewMockSessionStore(ctrl), cfg)
	return New(cfg, h)
}

func TestRoutes(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		method   string
		path     string
		wantCode int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodPost, "/api/v1/renew", http.StatusOK},
		{http.MethodPost, "/api/v1/prepare", http.StatusAccepted},
		{http.MethodPost, "/api/v1/cancel", http.StatusOK},
		{http.MethodGet, "/api/v1/session", http.StatusOK},
		{http.MethodGet, "/api/v1/account", http.StatusNotFound},
		{http.MethodDelete, "/api/v1/account", http.StatusNoContent},
		{http.MethodGet, "/api/v1/schools", http.StatusOK},
		{http.MethodGet, "/api/v1/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, tt.path, nil)
			srv.Handler().ServeHTTP(w, req)
			if w.Code != tt.wantCode {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}

func TestTraceIDMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(TraceIDMiddleware())
	r.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(handler.TraceIDKey))
	})

	t.Run("ヘッダあり", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(traceIDHeader, "abc-123")
		r.ServeHTTP(w, req)

		if w.Body.String() != "abc-123" {
			t.Errorf("trace id = %q, want %q", w.Body.String(), "abc-123")
		}
		if got := w.Header().Get(traceIDHeader); got != "abc-123" {
			t.Errorf("response header = %q, want %q", got, "abc-123")
		}
	})

	t.Run("ヘッダなし", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		r.ServeHTTP(w, req)

		if w.Body.Len() == 0 {
			t.Error("trace id should be generated")
		}
		if w.Header().Get(traceIDHeader) != w.Body.String() {
			t.Errorf("response header = %q, want %q", w.Header().Get(traceIDHeader), w.Body.String())
		}
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(TraceIDMiddleware())
	r.Use(RecoveryMiddleware())
	r.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if ct := w.Header().Get("Content-Type"); ct != httputil.ContentType {
		t.Errorf("Content-Type = %q, want %q", ct, httputil.ContentType)
	}
	if !strings.Contains(w.Body.String(), "Internal Server Error") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestServe(t *testing.T) {
	t.Run("停止時にdrainを呼ぶ", func(t *testing.T) {
		srv := newTestServer(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		drained := false
		if err := srv.Serve(ctx, func() { drained = true }); err != nil {
			t.Errorf("Serve() error = %v, want nil", err)
		}
		if !drained {
			t.Error("drain was not called")
		}
	})

	t.Run("待ち受け失敗", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		cfg := &config.Config{GinMode: gin.TestMode, ListenAddr: "127.0.0.1:-1"}
		h := handler.NewRenewHandler(stubCoordinator{}, stubVault{}, mocks.NewMockSessionStore(ctrl), cfg)

		drained := false
		if err := New(cfg, h).Serve(context.Background(), func() { drained = true }); err == nil {
			t.Error("Serve() error = nil, want listen error")
		}
		if !drained {
			t.Error("drain was not called")
		}
	})
}
