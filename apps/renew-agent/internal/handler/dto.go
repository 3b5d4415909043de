package handler

import (
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/renewerr"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/school"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/session"
)

// RenewResponse は更新結果のレスポンス
type RenewResponse struct {
	Outcome   string `json:"outcome"`
	Title     string `json:"title"`
	Succeeded bool   `json:"succeeded"`
	Settled   bool   `json:"settled"`
	Detail    string `json:"detail,omitempty"`
}

// NewRenewResponse はOutcomeからレスポンスを生成する。
func NewRenewResponse(o renewerr.Outcome) RenewResponse {
	resp := RenewResponse{
		Outcome:   o.Label(),
		Title:     o.Title(),
		Succeeded: o.Succeeded(),
		Settled:   o.Settled(),
	}
	if err := o.AsError(); err != nil {
		resp.Detail = err.Error()
	}
	return resp
}

// SessionResponse はセッション参照のレスポンス
type SessionResponse struct {
	Active  bool             `json:"active"`
	Session session.Snapshot `json:"session"`
}

// CancelResponse は取り消し要求のレスポンス
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// PrepareResponse は事前読み込み要求のレスポンス
type PrepareResponse struct {
	Status string `json:"status"`
}

// AccountRequest はアカウント登録リクエスト
type AccountRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	School   string `json:"school" binding:"required"`
}

// AccountResponse はアカウント参照のレスポンス。パスワードは返さない。
type AccountResponse struct {
	Username string `json:"username"`
	School   string `json:"school"`
}

// SchoolResponse は参加校一覧の要素
type SchoolResponse struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
}

// NewSchoolResponse は学校定義からレスポンスを生成する。
func NewSchoolResponse(s school.School) SchoolResponse {
	return SchoolResponse{ID: s.ID, Name: s.Name, ShortName: s.ShortName}
}

// HealthResponse はヘルスチェックのレスポンス
type HealthResponse struct {
	Status string `json:"status"`
}
