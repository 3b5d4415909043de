package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/config"
)

// SessionRecord は保存用のセッション記録。
// redisタグのフィールドはハッシュに、Pagesは別のリストに保存する。
type SessionRecord struct {
	ID             string    `redis:"id"`
	Origin         string    `redis:"origin"`
	State          string    `redis:"state"`
	SchoolID       int       `redis:"school_id"`
	NumUpassSeen   int       `redis:"num_upass_seen"` // -1は未確認
	RenewSubmitted bool      `redis:"renew_submitted"`
	Outcome        string    `redis:"outcome"`
	Title          string    `redis:"title"`
	Detail         string    `redis:"detail"`
	StartedAt      time.Time `redis:"started_at"`
	UpdatedAt      time.Time `redis:"updated_at"`
	Pages          []string  `redis:"-"`
}

// sessionStore はSessionStoreインターフェースの実装。
type sessionStore struct {
	vc *ValkeyClient
}

// NewSessionStore は新しいSessionStoreを生成する。
func NewSessionStore(vc *ValkeyClient) SessionStore {
	return &sessionStore{vc: vc}
}

// Save はセッション記録を保存する。ページ履歴は置き換える。
func (s *sessionStore) Save(ctx context.Context, rec *SessionRecord) error {
	key := KeyPrefixSession + rec.ID
	pagesKey := KeyPrefixPages + rec.ID

	pipe := s.vc.Client().TxPipeline()
	pipe.HSet(ctx, key, rec)
	pipe.Expire(ctx, key, config.SessionTTL)
	pipe.Del(ctx, pagesKey)
	if len(rec.Pages) > 0 {
		pages := make([]any, len(rec.Pages))
		for i, p := range rec.Pages {
			pages[i] = p
		}
		pipe.RPush(ctx, pagesKey, pages...)
		pipe.Expire(ctx, pagesKey, config.SessionTTL)
	}
	pipe.Set(ctx, KeyLatestSession, rec.ID, config.SessionTTL)
	pipe.LRem(ctx, KeyRecentSession, 0, rec.ID)
	pipe.LPush(ctx, KeyRecentSession, rec.ID)
	pipe.LTrim(ctx, KeyRecentSession, 0, config.RecentSessionLimit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return wrapErr("MULTI", key, err)
	}
	return nil
}

// Get はセッション記録を取得する。
func (s *sessionStore) Get(ctx context.Context, id string) (*SessionRecord, error) {
	key := KeyPrefixSession + id
	hash := s.vc.Client().HGetAll(ctx, key)
	m, err := hash.Result()
	if err != nil {
		return nil, wrapErr("HGETALL", key, err)
	}
	if len(m) == 0 {
		return nil, ErrKeyNotFound
	}

	var rec SessionRecord
	if err := hash.Scan(&rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}

	pages, err := s.vc.Client().LRange(ctx, KeyPrefixPages+id, 0, -1).Result()
	if err != nil {
		return nil, wrapErr("LRANGE", KeyPrefixPages+id, err)
	}
	rec.Pages = pages
	return &rec, nil
}

// Latest は最新のセッション記録を取得する。
func (s *sessionStore) Latest(ctx context.Context) (*SessionRecord, error) {
	id, err := s.vc.Client().Get(ctx, KeyLatestSession).Result()
	if err != nil {
		return nil, wrapErr("GET", KeyLatestSession, err)
	}
	return s.Get(ctx, id)
}

// Recent は新しい順に最大limit件のセッション記録を取得する。
// 有効期限切れで消えた記録は読み飛ばす。
func (s *sessionStore) Recent(ctx context.Context, limit int) ([]*SessionRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	ids, err := s.vc.Client().LRange(ctx, KeyRecentSession, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, wrapErr("LRANGE", KeyRecentSession, err)
	}

	recs := make([]*SessionRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if errors.Is(err, ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
