// Package store はValkeyへのデータアクセスを提供する。
package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/config"
	"github.com/oyaguma3/upass-renew-agent/pkg/valkey"
)

// ValkeyClient はValkeyクライアントをラップする。
type ValkeyClient struct {
	client *redis.Client
}

// NewValkeyClient は常駐プロセス向けのValkeyClientを生成する。
func NewValkeyClient(cfg *config.Config) (*ValkeyClient, error) {
	return newValkeyClient(cfg,
		valkey.WithPool(config.ValkeyPoolSize, 1),
		valkey.WithMaxRetries(config.ValkeyMaxRetries))
}

// NewCLIValkeyClient は単発コマンド向けのValkeyClientを生成する。
func NewCLIValkeyClient(cfg *config.Config) (*ValkeyClient, error) {
	return newValkeyClient(cfg, valkey.OneShot())
}

func newValkeyClient(cfg *config.Config, opts ...valkey.Option) (*ValkeyClient, error) {
	opts = append(opts,
		valkey.WithPassword(cfg.RedisPass),
		valkey.WithTimeouts(config.ValkeyConnectTimeout, config.ValkeyCommandTimeout))

	client, err := valkey.NewClient(cfg.ValkeyAddr(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}
	return &ValkeyClient{client: client}, nil
}

// Ping は接続を確認する。
func (v *ValkeyClient) Ping(ctx context.Context) error {
	if err := v.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrValkeyUnavailable, err)
	}
	return nil
}

// Close は接続を閉じる。
func (v *ValkeyClient) Close() error {
	return v.client.Close()
}

// Client は内部のredis.Clientを返す。
func (v *ValkeyClient) Client() *redis.Client {
	return v.client
}
