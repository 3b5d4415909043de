package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/mock/gomock"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/config"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/coordinator"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/credential"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/flow"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/mocks"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/renewerr"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/school"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/session"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/store"
	"github.com/oyaguma3/upass-renew-agent/pkg/apperr"
	"github.com/oyaguma3/upass-renew-agent/pkg/httputil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeCoordinator はテスト用のコーディネーター
type fakeCoordinator struct {
	outcome    renewerr.Outcome
	err        error
	background bool
	prepareErr error
	cancelled  bool
	active     *session.Snapshot
	statuses   []string
}

func (f *fakeCoordinator) Renew(ctx context.Context) (renewerr.Outcome, error) {
	return f.outcome, f.err
}

func (f *fakeCoordinator) RenewInBackground(ctx context.Context) (renewerr.Outcome, error) {
	f.background = true
	return f.outcome, f.err
}

func (f *fakeCoordinator) Prepare(ctx context.Context) error {
	return f.prepareErr
}

func (f *fakeCoordinator) Cancel(ctx context.Context) (bool, error) {
	return f.cancelled, f.err
}

func (f *fakeCoordinator) Active(ctx context.Context) (session.Snapshot, bool, error) {
	if f.active == nil {
		return session.Snapshot{}, false, f.err
	}
	return *f.active, true, f.err
}

func (f *fakeCoordinator) Subscribe() (<-chan string, func()) {
	ch := make(chan string, len(f.statuses))
	for _, s := range f.statuses {
		ch <- s
	}
	close(ch)
	return ch, func() {}
}

// fakeVault はテスト用のアカウント保管
type fakeVault struct {
	account credential.Account
	loadErr error
	saveErr error
	saved   *credential.Account
	deleted bool
}

func (f *fakeVault) Load(ctx context.Context) (credential.Account, error) {
	return f.account, f.loadErr
}

func (f *fakeVault) Save(ctx context.Context, a credential.Account) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = &a
	return nil
}

func (f *fakeVault) Delete(ctx context.Context) error {
	f.deleted = true
	return nil
}

func newTestRouter(h *RenewHandler) *gin.Engine {
	r := gin.New()
	r.GET("/health", h.HandleHealth)
	r.POST("/renew", h.HandleRenew)
	r.POST("/prepare", h.HandlePrepare)
	r.POST("/cancel", h.HandleCancel)
	r.GET("/session", h.HandleSession)
	r.GET("/status", h.HandleStatus)
	r.GET("/account", h.HandleGetAccount)
	r.PUT("/account", h.HandlePutAccount)
	r.DELETE("/account", h.HandleDeleteAccount)
	r.GET("/schools", h.HandleSchools)
	return r
}

func serve(r *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	return w
}

func newHandler(t *testing.T, coord *fakeCoordinator, vault *fakeVault) (*RenewHandler, *mocks.MockSessionStore) {
	t.Helper()
	ctrl := gomock.NewController(t)
	sessions := mocks.NewMockSessionStore(ctrl)
	return NewRenewHandler(coord, vault, sessions, &config.Config{LogMaskUsername: true}), sessions
}

func TestHandleRenew(t *testing.T) {
	tests := []struct {
		name          string
		path          string
		outcome       renewerr.Outcome
		err           error
		wantCode      int
		wantOutcome   string
		wantSettled   bool
		wantBackground bool
	}{
		{
			name:        "成功",
			path:        "/renew",
			outcome:     renewerr.Success(),
			wantCode:    http.StatusOK,
			wantOutcome: renewerr.OutcomeSuccess,
			wantSettled: true,
		},
		{
			name:          "バックグラウンドで最新取得済み",
			path:          "/renew?background=true",
			outcome:       renewerr.FailureOf(renewerr.KindAlreadyHasLatestUPass, nil),
			wantCode:      http.StatusOK,
			wantOutcome:   string(renewerr.KindAlreadyHasLatestUPass),
			wantSettled:   true,
			wantBackground: true,
		},
		{
			name:        "認証失敗",
			path:        "/renew",
			outcome:     renewerr.FailureOf(renewerr.KindAuthenticationFailed, nil),
			wantCode:    http.StatusOK,
			wantOutcome: string(renewerr.KindAuthenticationFailed),
		},
		{
			name:     "停止中",
			path:     "/renew",
			err:      coordinator.ErrStopped,
			wantCode: http.StatusServiceUnavailable,
		},
		{
			name:     "想定外のエラー",
			path:     "/renew",
			err:      errors.New("boom"),
			wantCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coord := &fakeCoordinator{outcome: tt.outcome, err: tt.err}
			h, _ := newHandler(t, coord, &fakeVault{})

			w := serve(newTestRouter(h), http.MethodPost, tt.path, nil)
			if w.Code != tt.wantCode {
				t.Fatalf("Status code = %d, want %d", w.Code, tt.wantCode)
			}
			if coord.background != tt.wantBackground {
				t.Errorf("background = %v, want %v", coord.background, tt.wantBackground)
			}
			if tt.wantCode != http.StatusOK {
				if ct := w.Header().Get("Content-Type"); ct != httputil.ContentType {
					t.Errorf("Content-Type = %q, want %q", ct, httputil.ContentType)
				}
				return
			}

			var resp RenewResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("予期しないエラー: %v", err)
			}
			if resp.Outcome != tt.wantOutcome {
				t.Errorf("Outcome = %q, want %q", resp.Outcome, tt.wantOutcome)
			}
			if resp.Settled != tt.wantSettled {
				t.Errorf("Settled = %v, want %v", resp.Settled, tt.wantSettled)
			}
			if resp.Title != tt.outcome.Title() {
				t.Errorf("Title = %q, want %q", resp.Title, tt.outcome.Title())
			}
		})
	}
}

func TestHandlePrepare(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"開始", nil, http.StatusAccepted},
		{"アカウント未登録", renewerr.New(renewerr.KindCredentialMissing, credential.ErrNotFound), http.StatusConflict},
		{"停止中", coordinator.ErrStopped, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newHandler(t, &fakeCoordinator{prepareErr: tt.err}, &fakeVault{})
			w := serve(newTestRouter(h), http.MethodPost, "/prepare", nil)
			if w.Code != tt.wantCode {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}

func TestHandleCancel(t *testing.T) {
	h, _ := newHandler(t, &fakeCoordinator{cancelled: true}, &fakeVault{})
	w := serve(newTestRouter(h), http.MethodPost, "/cancel", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Status code = %d, want %d", w.Code, http.StatusOK)
	}
	var resp CancelResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if !resp.Cancelled {
		t.Error("Cancelled = false, want true")
	}
}

func TestHandleSession(t *testing.T) {
	t.Run("実行中のセッション", func(t *testing.T) {
		snap := session.Snapshot{ID: "s1", State: flow.StateAuthenticating}
		h, _ := newHandler(t, &fakeCoordinator{active: &snap}, &fakeVault{})

		w := serve(newTestRouter(h), http.MethodGet, "/session", nil)
		var resp SessionResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if !resp.Active || resp.Session.ID != "s1" || resp.Session.State != flow.StateAuthenticating {
			t.Errorf("resp = %+v", resp)
		}
	})

	t.Run("保存済みのセッション", func(t *testing.T) {
		h, sessions := newHandler(t, &fakeCoordinator{}, &fakeVault{})
		sessions.EXPECT().Latest(gomock.Any()).Return(&store.SessionRecord{
			ID: "s0", State: string(flow.StateSucceeded), Outcome: renewerr.OutcomeSuccess, SchoolID: 1, NumUpassSeen: 0,
		}, nil)

		w := serve(newTestRouter(h), http.MethodGet, "/session", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("Status code = %d, want %d", w.Code, http.StatusOK)
		}
		var resp SessionResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if resp.Active || resp.Session.ID != "s0" || resp.Session.School != "SFU" {
			t.Errorf("resp = %+v", resp)
		}
	})

	t.Run("記録なし", func(t *testing.T) {
		h, sessions := newHandler(t, &fakeCoordinator{}, &fakeVault{})
		sessions.EXPECT().Latest(gomock.Any()).Return(nil, store.ErrKeyNotFound)

		w := serve(newTestRouter(h), http.MethodGet, "/session", nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("Status code = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("Valkey障害", func(t *testing.T) {
		h, sessions := newHandler(t, &fakeCoordinator{}, &fakeVault{})
		sessions.EXPECT().Latest(gomock.Any()).Return(nil, store.ErrValkeyUnavailable)

		w := serve(newTestRouter(h), http.MethodGet, "/session", nil)
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("Status code = %d, want %d", w.Code, http.StatusServiceUnavailable)
		}
	})
}

// streamRecorder はServer-Sent Events用にCloseNotifyを備えたレコーダー
type streamRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *streamRecorder) CloseNotify() <-chan bool {
	return r.closed
}

func TestHandleStatus(t *testing.T) {
	coord := &fakeCoordinator{statuses: []string{"Connecting to UPassBC", "Signing in"}}
	h, _ := newHandler(t, coord, &fakeVault{})

	w := &streamRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool)}
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	newTestRouter(h).ServeHTTP(w, req)

	body := w.Body.String()
	for _, s := range coord.statuses {
		if !strings.Contains(body, "data:"+s) {
			t.Errorf("body should contain %q: %s", s, body)
		}
	}
	if !strings.Contains(body, "event:status") {
		t.Errorf("body should contain event name: %s", body)
	}
}

func TestHandleAccount(t *testing.T) {
	sfu, _ := school.ByID(1)

	t.Run("登録", func(t *testing.T) {
		vault := &fakeVault{}
		h, _ := newHandler(t, &fakeCoordinator{}, vault)
		body := []byte(`{"username":"student01","password":"secret","school":"sfu"}`)

		w := serve(newTestRouter(h), http.MethodPut, "/account", body)
		if w.Code != http.StatusOK {
			t.Fatalf("Status code = %d, want %d", w.Code, http.StatusOK)
		}
		if vault.saved == nil || vault.saved.School.ID != sfu.ID || vault.saved.Password != "secret" {
			t.Errorf("saved = %v", vault.saved)
		}
		if strings.Contains(w.Body.String(), "secret") {
			t.Errorf("response must not contain the password: %s", w.Body.String())
		}
	})

	t.Run("不正な登録", func(t *testing.T) {
		tests := []struct {
			name     string
			body     string
			saveErr  error
			wantCode int
		}{
			{"必須項目なし", `{"username":"u"}`, nil, http.StatusBadRequest},
			{"JSONでない", `not json`, nil, http.StatusBadRequest},
			{"学校不明", `{"username":"u","password":"p","school":"mit"}`, nil, http.StatusUnprocessableEntity},
			{"保存時の検証エラー", `{"username":"u","password":"p","school":"ubc"}`,
				apperr.Invalid("password", nil, "must not be empty"), http.StatusBadRequest},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				h, _ := newHandler(t, &fakeCoordinator{}, &fakeVault{saveErr: tt.saveErr})
				w := serve(newTestRouter(h), http.MethodPut, "/account", []byte(tt.body))
				if w.Code != tt.wantCode {
					t.Errorf("Status code = %d, want %d", w.Code, tt.wantCode)
				}
			})
		}
	})

	t.Run("参照", func(t *testing.T) {
		tests := []struct {
			name     string
			vault    *fakeVault
			wantCode int
		}{
			{"登録済み", &fakeVault{account: credential.Account{Username: "student01", Password: "p", School: sfu}}, http.StatusOK},
			{"未登録", &fakeVault{loadErr: credential.ErrNotFound}, http.StatusNotFound},
			{"破損", &fakeVault{loadErr: credential.ErrCorrupted}, http.StatusConflict},
			{"Valkey障害", &fakeVault{loadErr: store.ErrValkeyUnavailable}, http.StatusServiceUnavailable},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				h, _ := newHandler(t, &fakeCoordinator{}, tt.vault)
				w := serve(newTestRouter(h), http.MethodGet, "/account", nil)
				if w.Code != tt.wantCode {
					t.Errorf("Status code = %d, want %d", w.Code, tt.wantCode)
				}
				if strings.Contains(w.Body.String(), `"password"`) {
					t.Errorf("response must not contain the password: %s", w.Body.String())
				}
			})
		}
	})

	t.Run("削除", func(t *testing.T) {
		vault := &fakeVault{}
		h, _ := newHandler(t, &fakeCoordinator{}, vault)
		w := serve(newTestRouter(h), http.MethodDelete, "/account", nil)
		if w.Code != http.StatusNoContent {
			t.Errorf("Status code = %d, want %d", w.Code, http.StatusNoContent)
		}
		if !vault.deleted {
			t.Error("Delete was not called")
		}
	})
}

func TestHandleSchools(t *testing.T) {
	h, _ := newHandler(t, &fakeCoordinator{}, &fakeVault{})
	w := serve(newTestRouter(h), http.MethodGet, "/schools", nil)

	var resp []SchoolResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if len(resp) != len(school.All()) {
		t.Fatalf("len = %d, want %d", len(resp), len(school.All()))
	}
	if resp[0].ID != 1 || resp[0].ShortName != "SFU" {
		t.Errorf("resp[0] = %+v", resp[0])
	}
}

func TestHandleHealth(t *testing.T) {
	h, _ := newHandler(t, &fakeCoordinator{}, &fakeVault{})
	w := serve(newTestRouter(h), http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("Status code = %d body = %s", w.Code, w.Body.String())
	}
}
