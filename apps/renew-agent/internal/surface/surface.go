// Package surface はページ読み込みとスクリプト実行を行うレンダリング面の契約を定義する。
package surface

import (
	"context"
	"errors"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/scripts"
)

// センチネルエラー
var (
	// ErrClosed はクローズ済みの面に操作を要求した場合のエラー
	ErrClosed = errors.New("surface closed")

	// ErrBusy は操作キューが満杯の場合のエラー
	ErrBusy = errors.New("surface queue full")

	// ErrNoPage はページ未読み込みの状態でスクリプトを実行した場合のエラー
	ErrNoPage = errors.New("no page loaded")
)

// Kind は面から通知されるイベントの種類
type Kind string

// イベント種類の定数
const (
	KindNavigation Kind = "navigation"
	KindScript     Kind = "script"
)

// Outcome はページ読み込みの結果
type Outcome string

// 読み込み結果の定数
const (
	OutcomeLoaded Outcome = "loaded"
	OutcomeFailed Outcome = "failed"
)

// Token は面への依頼元を識別する。依頼の結果として通知するイベントには
// 依頼時のTokenが付く。
type Token struct {
	Session string
	Epoch   uint64
}

// Event は面から通知されるイベント
type Event struct {
	Kind  Kind
	Token Token

	// ナビゲーションイベント
	URL     string
	Outcome Outcome

	// スクリプトイベント
	Action scripts.Action
	Value  any

	// 読み込み失敗・スクリプト例外の原因
	Err error
}

// Loaded はページ読み込み完了イベントを生成する
func Loaded(url string) Event {
	return Event{Kind: KindNavigation, URL: url, Outcome: OutcomeLoaded}
}

// Failed はページ読み込み失敗イベントを生成する
func Failed(url string, err error) Event {
	return Event{Kind: KindNavigation, URL: url, Outcome: OutcomeFailed, Err: err}
}

// ScriptResult はスクリプト実行結果イベントを生成する
func ScriptResult(action scripts.Action, value any, err error) Event {
	return Event{Kind: KindScript, Action: action, Value: value, Err: err}
}

// For はtokの依頼に対するイベントとして複製する。
func (e Event) For(tok Token) Event {
	e.Token = tok
	return e
}

//go:generate mockgen -source=surface.go -destination=../mocks/mock_surface.go -package=mocks

// Surface はレンダリング面。Load/Executeは非同期で、結果はtokを付けてEventsに通知される。
type Surface interface {
	Load(ctx context.Context, tok Token, url string) error
	Execute(ctx context.Context, tok Token, script scripts.Script) error
	Events() <-chan Event
	Close() error
}
