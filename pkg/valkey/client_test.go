package valkey

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/oyaguma3/upass-renew-agent/pkg/apperr"
)

func TestNewClientOneShot(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(mr.Addr(), OneShot())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	defer client.Close()

	if got := client.Options().PoolSize; got != 1 {
		t.Errorf("PoolSize = %d, want 1", got)
	}
	if err := client.Set(context.Background(), "k", "v", 0).Err(); err != nil {
		t.Errorf("Set() error = %v", err)
	}
	if got, _ := mr.Get("k"); got != "v" {
		t.Errorf("stored value = %q, want %q", got, "v")
	}
}

func TestNewClientUnreachable(t *testing.T) {
	_, err := NewClient("localhost:59999", WithTimeouts(100*time.Millisecond, 100*time.Millisecond))

	if !errors.Is(err, apperr.ErrValkeyConnection) {
		t.Fatalf("NewClient() error = %v, want ErrValkeyConnection", err)
	}
	var ve *apperr.ValkeyError
	if !errors.As(err, &ve) || ve.Operation != "PING" || ve.Key != "localhost:59999" {
		t.Errorf("ValkeyError = %+v", ve)
	}
	if !IsConnectionError(err) {
		t.Error("IsConnectionError() = false, want true")
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"一般エラー", errors.New("some error"), false},
		{"期限切れ", context.DeadlineExceeded, true},
		{"キャンセル", context.Canceled, true},
		{"サーバー切断", io.EOF, true},
		{"クライアント終了", redis.ErrClosed, true},
		{"ラップされた接続エラー", fmt.Errorf("save: %w", apperr.ErrValkeyConnection), true},
		{"コマンドエラー", apperr.NewValkeyError("HSET", "k", apperr.ErrValkeyCommand, nil), false},
		{"キーなし", redis.Nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConnectionError(tt.err); got != tt.want {
				t.Errorf("IsConnectionError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsKeyNotFound(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(mr.Addr())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	defer client.Close()

	_, err = client.Get(context.Background(), "missing").Result()
	if !IsKeyNotFound(err) {
		t.Errorf("IsKeyNotFound(%v) = false, want true", err)
	}
	if IsKeyNotFound(fmt.Errorf("get: %w", errors.New("other"))) || IsKeyNotFound(nil) {
		t.Error("IsKeyNotFound() = true for non-Nil error")
	}
}
