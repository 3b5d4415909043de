package store

import (
	"errors"
	"fmt"

	"github.com/oyaguma3/upass-renew-agent/pkg/apperr"
	"github.com/oyaguma3/upass-renew-agent/pkg/valkey"
)

var (
	// ErrValkeyUnavailable はValkeyへの接続が利用不可能な場合のエラー
	ErrValkeyUnavailable = errors.New("valkey unavailable")

	// ErrKeyNotFound は指定されたキーが存在しない場合のエラー
	ErrKeyNotFound = errors.New("key not found")
)

// wrapErr はValkeyのエラーを分類する。redis.NilはErrKeyNotFoundになる。
func wrapErr(op, key string, err error) error {
	if valkey.IsKeyNotFound(err) {
		return ErrKeyNotFound
	}
	kind := apperr.ErrValkeyCommand
	if valkey.IsConnectionError(err) {
		kind = apperr.ErrValkeyConnection
	}
	return fmt.Errorf("%w: %w", ErrValkeyUnavailable, apperr.NewValkeyError(op, key, kind, err))
}
