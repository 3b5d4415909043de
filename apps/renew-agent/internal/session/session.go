// Package session は更新セッションのデータモデルを定義する。
//
// Sessionはコーディネーターのイベントループのみが変更する。外部には
// Snapshotを複製して渡す。
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/config"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/credential"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/flow"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/renewerr"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/scripts"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/surface"
	"github.com/oyaguma3/upass-renew-agent/pkg/logging"
)

// ErrPassCountAlreadySet は取得済み枚数を2回記録しようとした場合のエラー
var ErrPassCountAlreadySet = errors.New("pass count already recorded")

// Origin はセッションの起動元
type Origin string

// 起動元の定数
const (
	OriginForeground Origin = "foreground"
	OriginBackground Origin = "background"
)

// Page はセッション中に到着したページ
type Page struct {
	URL     string          `json:"url"`
	Kind    flow.PageKind   `json:"kind"`
	Outcome surface.Outcome `json:"outcome"`
	At      time.Time       `json:"at"`
}

// Session は1回の更新試行
type Session struct {
	ID      string
	Origin  Origin
	State   flow.State
	Account credential.Account

	Pages        []Page
	NumUpassSeen *int

	// Armed は更新要求を受けているかどうか。未要求のフォアグラウンドセッションは
	// トップページで待機する。
	Armed          bool
	RenewSubmitted bool
	// Ready はトップページで更新要求を待っている状態
	Ready bool
	// Suspended は疎通断で外部操作を止めている状態
	Suspended bool
	// Awaiting は結果待ちのスクリプト種別
	Awaiting scripts.Action

	Outcome    *renewerr.Outcome
	Generation uint64
	// Epoch はトップページの読み込みごとに進む。これより前の読み込みに対する
	// 面のイベントは受け付けない。
	Epoch uint64
	StartedAt  time.Time
	UpdatedAt  time.Time

	now func() time.Time
}

// Token は現在の読み込みに対する面の依頼元を返す。
func (s *Session) Token() surface.Token {
	return surface.Token{Session: s.ID, Epoch: s.Epoch}
}

// New は新しいセッションを生成する。
func New(origin Origin, account credential.Account, now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	t := now()
	return &Session{
		ID:        uuid.NewString(),
		Origin:    origin,
		State:     flow.StateIdle,
		Account:   account,
		Armed:     origin == OriginBackground,
		StartedAt: t,
		UpdatedAt: t,
		now:       now,
	}
}

// Transition はイベントを適用して状態を進める。
func (s *Session) Transition(ev flow.Event) (flow.State, error) {
	next, err := flow.ValidateTransition(s.State, ev)
	if err != nil {
		return s.State, err
	}
	s.setState(next)
	return next, nil
}

// ForceFail は遷移表に関係なく失敗状態にする。
func (s *Session) ForceFail() {
	s.setState(flow.StateFailed)
}

func (s *Session) setState(next flow.State) {
	s.State = next
	s.Ready = false
	s.Awaiting = ""
	s.Generation++
	s.UpdatedAt = s.now()
}

// Terminal は終了状態かどうかを返す。
func (s *Session) Terminal() bool {
	return flow.IsTerminal(s.State)
}

// RecordPage は到着ページをクエリ除去済みで履歴に追加する。上限を超えた古いものから捨てる。
func (s *Session) RecordPage(url string, kind flow.PageKind, outcome surface.Outcome) {
	s.Pages = append(s.Pages, Page{URL: logging.RedactURL(url), Kind: kind, Outcome: outcome, At: s.now()})
	if over := len(s.Pages) - config.PageHistoryLimit; over > 0 {
		s.Pages = append([]Page(nil), s.Pages[over:]...)
	}
	s.UpdatedAt = s.now()
}

// SetNumUpassSeen は取得済み枚数を記録する。1セッションで1回のみ。
func (s *Session) SetNumUpassSeen(n int) error {
	if s.NumUpassSeen != nil {
		return ErrPassCountAlreadySet
	}
	s.NumUpassSeen = &n
	return nil
}

// Finish は最終結果を記録する。
func (s *Session) Finish(o renewerr.Outcome) {
	s.Outcome = &o
	s.UpdatedAt = s.now()
}
