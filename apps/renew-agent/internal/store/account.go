package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AccountRecord は保存用のアカウント情報
type AccountRecord struct {
	Username  string    `redis:"username"`
	SchoolID  int       `redis:"school_id"`
	UpdatedAt time.Time `redis:"updated_at"`
	// SealedPassword は別キーに保存する
	SealedPassword string `redis:"-"`
}

// accountStore はAccountStoreインターフェースの実装。
type accountStore struct {
	vc *ValkeyClient
}

// NewAccountStore は新しいAccountStoreを生成する。
func NewAccountStore(vc *ValkeyClient) AccountStore {
	return &accountStore{vc: vc}
}

// GetAccount はアカウントを取得する。
func (s *accountStore) GetAccount(ctx context.Context) (*AccountRecord, error) {
	pipe := s.vc.Client().Pipeline()
	hash := pipe.HGetAll(ctx, KeyAccount)
	secret := pipe.Get(ctx, KeyAccountSecret)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, wrapErr("HGETALL", KeyAccount, err)
	}

	m := hash.Val()
	if len(m) == 0 || m["username"] == "" {
		return nil, ErrKeyNotFound
	}
	sealed, err := secret.Result()
	if err != nil {
		return nil, wrapErr("GET", KeyAccountSecret, err)
	}

	var rec AccountRecord
	if err := hash.Scan(&rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", KeyAccount, err)
	}
	rec.SealedPassword = sealed
	return &rec, nil
}

// SaveAccount はアカウントを置き換える。
func (s *accountStore) SaveAccount(ctx context.Context, rec *AccountRecord) error {
	pipe := s.vc.Client().TxPipeline()
	pipe.Del(ctx, KeyAccount)
	pipe.HSet(ctx, KeyAccount, rec)
	pipe.Set(ctx, KeyAccountSecret, rec.SealedPassword, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return wrapErr("MULTI", KeyAccount, err)
	}
	return nil
}

// DeleteAccount はアカウントを削除する。
func (s *accountStore) DeleteAccount(ctx context.Context) error {
	if err := s.vc.Client().Del(ctx, KeyAccount, KeyAccountSecret).Err(); err != nil {
		return wrapErr("DEL", KeyAccount, err)
	}
	return nil
}
