package tui

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/config"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/handler"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/session"
	"github.com/oyaguma3/upass-renew-agent/pkg/httputil"
)

// ErrNoSession はエージェントにセッションの記録がない場合のエラー
var ErrNoSession = errors.New("no session recorded")

// AgentClient は起動中のエージェントのHTTP APIを呼び出す。
type AgentClient struct {
	client *resty.Client
}

// NewAgentClient は新しいAgentClientを生成する。
// 更新要求は結果が出るまで戻らないため、タイムアウトは呼び出し側のctxで指定する。
func NewAgentClient(baseURL string) *AgentClient {
	client := resty.New().
		SetBaseURL(baseURL+"/api/v1").
		SetHeader("User-Agent", config.UserAgent).
		SetHeader("Accept", "application/json")
	return &AgentClient{client: client}
}

// Session は実行中、なければ直近のセッションを返す。activeは実行中かどうか。
func (a *AgentClient) Session(ctx context.Context) (snap session.Snapshot, active bool, err error) {
	var body handler.SessionResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetResult(&body).
		SetError(&httputil.ProblemDetail{}).
		Get("/session")
	if err != nil {
		return session.Snapshot{}, false, fmt.Errorf("agent request failed: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return session.Snapshot{}, false, ErrNoSession
	}
	if resp.IsError() {
		return session.Snapshot{}, false, problemError(resp)
	}
	return body.Session, body.Active, nil
}

// Renew はフォアグラウンドの更新を要求し、結果を待つ。
func (a *AgentClient) Renew(ctx context.Context) (handler.RenewResponse, error) {
	var body handler.RenewResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetResult(&body).
		SetError(&httputil.ProblemDetail{}).
		Post("/renew")
	if err != nil {
		return handler.RenewResponse{}, fmt.Errorf("agent request failed: %w", err)
	}
	if resp.IsError() {
		return handler.RenewResponse{}, problemError(resp)
	}
	return body, nil
}

// Cancel は実行中のセッションを取り消す。
func (a *AgentClient) Cancel(ctx context.Context) (bool, error) {
	var body handler.CancelResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetResult(&body).
		SetError(&httputil.ProblemDetail{}).
		Post("/cancel")
	if err != nil {
		return false, fmt.Errorf("agent request failed: %w", err)
	}
	if resp.IsError() {
		return false, problemError(resp)
	}
	return body.Cancelled, nil
}

func problemError(resp *resty.Response) error {
	if p, ok := resp.Error().(*httputil.ProblemDetail); ok && p.Title != "" {
		if p.Detail != "" {
			return fmt.Errorf("agent returned %d %s: %s", resp.StatusCode(), p.Title, p.Detail)
		}
		return fmt.Errorf("agent returned %d %s", resp.StatusCode(), p.Title)
	}
	return fmt.Errorf("agent returned %d", resp.StatusCode())
}
