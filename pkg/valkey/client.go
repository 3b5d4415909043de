package valkey

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/redis/go-redis/v9"

	"github.com/oyaguma3/upass-renew-agent/pkg/apperr"
)

// NewClient はaddrに接続するクライアントを生成し、接続タイムアウト以内にPINGで確認する。
// 接続できない場合はapperr.ErrValkeyConnectionを種別に持つValkeyErrorを返す。
func NewClient(addr string, opts ...Option) (*redis.Client, error) {
	o := resolve(addr, opts)
	client := redis.NewClient(o.redisOptions())

	ctx, cancel := context.WithTimeout(context.Background(), o.ConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, apperr.NewValkeyError("PING", addr, apperr.ErrValkeyConnection, err)
	}
	return client, nil
}

// IsConnectionError は接続断やタイムアウトによるエラーかを判定する。
func IsConnectionError(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, apperr.ErrValkeyConnection),
		errors.Is(err, io.EOF),
		errors.Is(err, redis.ErrClosed),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsKeyNotFound はキーが存在しないことを示すエラーかを判定する。
func IsKeyNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
