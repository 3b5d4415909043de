package store

//go:generate mockgen -source=interfaces.go -destination=../mocks/mock_store.go -package=mocks

import "context"

// SessionStore は更新セッション記録へのアクセスを定義する
type SessionStore interface {
	// Save はセッション記録とページ履歴を保存し、最新セッションとして登録する
	Save(ctx context.Context, rec *SessionRecord) error
	// Get はセッション記録を取得する。未存在時はErrKeyNotFoundを返す
	Get(ctx context.Context, id string) (*SessionRecord, error)
	// Latest は最後に保存されたセッション記録を取得する
	Latest(ctx context.Context) (*SessionRecord, error)
	// Recent は新しい順に最大limit件のセッション記録を取得する
	Recent(ctx context.Context, limit int) ([]*SessionRecord, error)
}

// AccountStore はアカウント情報へのアクセスを定義する
type AccountStore interface {
	// GetAccount はアカウントを取得する。いずれかが欠けている場合はErrKeyNotFoundを返す
	GetAccount(ctx context.Context) (*AccountRecord, error)
	// SaveAccount はアカウントと封緘済みパスワードを同時に保存する
	SaveAccount(ctx context.Context, rec *AccountRecord) error
	// DeleteAccount はアカウントを削除する
	DeleteAccount(ctx context.Context) error
}
