// Package valkey はValkeyクライアントの共通機能を提供する。
package valkey

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// Options はValkeyクライアントの接続設定。
type Options struct {
	Addr           string
	Password       string
	DB             int
	ConnectTimeout time.Duration
	CommandTimeout time.Duration // 読み取りと書き込みの両方に使う
	PoolSize       int
	MinIdleConns   int
	MaxRetries     int // -1で再試行しない
}

// Option はOptionsを変更する関数。
type Option func(*Options)

// resolve は常駐プロセス向けの既定値にoptsを適用する。
func resolve(addr string, opts []Option) *Options {
	o := &Options{
		Addr:           addr,
		ConnectTimeout: 3 * time.Second,
		CommandTimeout: 2 * time.Second,
		PoolSize:       4,
		MinIdleConns:   1,
		MaxRetries:     2,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// OneShot は単発コマンド向けにプールを1本にし、再試行を止める。
func OneShot() Option {
	return func(o *Options) {
		o.PoolSize = 1
		o.MinIdleConns = 0
		o.MaxRetries = -1
	}
}

// WithPassword は認証パスワードを設定する。
func WithPassword(password string) Option {
	return func(o *Options) { o.Password = password }
}

// WithTimeouts は接続とコマンドのタイムアウトを設定する。
func WithTimeouts(connect, command time.Duration) Option {
	return func(o *Options) {
		o.ConnectTimeout = connect
		o.CommandTimeout = command
	}
}

// WithPool はプールサイズと最小アイドル数を設定する。
func WithPool(size, minIdle int) Option {
	return func(o *Options) {
		o.PoolSize = size
		o.MinIdleConns = minIdle
	}
}

// WithMaxRetries はコマンド再試行回数を設定する。
func WithMaxRetries(n int) Option {
	return func(o *Options) { o.MaxRetries = n }
}

func (o *Options) redisOptions() *redis.Options {
	return &redis.Options{
		Addr:         o.Addr,
		Password:     o.Password,
		DB:           o.DB,
		DialTimeout:  o.ConnectTimeout,
		ReadTimeout:  o.CommandTimeout,
		WriteTimeout: o.CommandTimeout,
		PoolSize:     o.PoolSize,
		MinIdleConns: o.MinIdleConns,
		MaxRetries:   o.MaxRetries,
	}
}
