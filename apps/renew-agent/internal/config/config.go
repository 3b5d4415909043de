package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config はアプリケーション設定を保持する
type Config struct {
	// Valkey接続設定
	RedisHost string `envconfig:"REDIS_HOST" required:"true"`
	RedisPort string `envconfig:"REDIS_PORT" required:"true"`
	RedisPass string `envconfig:"REDIS_PASS"`

	// アカウント秘匿設定（32バイト鍵の16進表現）
	AccountSealKey string `envconfig:"ACCOUNT_SEAL_KEY" required:"true"`

	// 更新サイト設定
	HomeURL  string `envconfig:"HOME_URL" default:"https://upassbc.translink.ca/"`
	Surface  string `envconfig:"SURFACE" default:"headless"`
	ChromeWS string `envconfig:"CHROME_WS_URL"`

	// HTTP API設定
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8080"`
	GinMode    string `envconfig:"GIN_MODE" default:"release"`

	// セッション制御
	DwellTimeout        time.Duration `envconfig:"DWELL_TIMEOUT" default:"45s"`
	UPassCap            int           `envconfig:"UPASS_CAP" default:"1"`
	ReloadAfterTerminal bool          `envconfig:"RELOAD_AFTER_TERMINAL" default:"true"`

	// バックグラウンド実行・疎通監視
	BackgroundInterval   time.Duration `envconfig:"BACKGROUND_INTERVAL" default:"0s"`
	ConnectivityInterval time.Duration `envconfig:"CONNECTIVITY_INTERVAL" default:"15s"`
	ConnectivityProbeURL string        `envconfig:"CONNECTIVITY_PROBE_URL"`

	// ログ・トレース設定
	LogLevel        string `envconfig:"LOG_LEVEL" default:"INFO"`
	LogMaskUsername bool   `envconfig:"LOG_MASK_USERNAME" default:"true"`
	TracingEnabled  bool   `envconfig:"TRACING_ENABLED" default:"false"`
}

// Load は環境変数から設定を読み込む
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// ValkeyAddr はValkey接続アドレスを "host:port" 形式で返す
func (c *Config) ValkeyAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// SealKey はACCOUNT_SEAL_KEYをデコードした32バイト鍵を返す
func (c *Config) SealKey() (*[32]byte, error) {
	raw, err := hex.DecodeString(c.AccountSealKey)
	if err != nil {
		return nil, fmt.Errorf("ACCOUNT_SEAL_KEY must be hex: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("ACCOUNT_SEAL_KEY must be 32 bytes, got %d", len(raw))
	}
	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}

// ProbeURL は疎通確認先URLを返す。未設定時はHOME_URLを使う。
func (c *Config) ProbeURL() string {
	if c.ConnectivityProbeURL != "" {
		return c.ConnectivityProbeURL
	}
	return c.HomeURL
}

// validate は設定値のバリデーションを行う
func (c *Config) validate() error {
	if !strings.HasPrefix(c.HomeURL, "http://") && !strings.HasPrefix(c.HomeURL, "https://") {
		return fmt.Errorf("HOME_URL must start with http:// or https://")
	}
	if _, err := c.SealKey(); err != nil {
		return err
	}
	switch c.Surface {
	case SurfaceHeadless, SurfaceChrome:
	default:
		return fmt.Errorf("SURFACE must be %q or %q", SurfaceHeadless, SurfaceChrome)
	}
	if c.DwellTimeout <= 0 {
		return fmt.Errorf("DWELL_TIMEOUT must be positive")
	}
	if c.UPassCap < 1 {
		return fmt.Errorf("UPASS_CAP must be at least 1")
	}
	if c.BackgroundInterval < 0 {
		return fmt.Errorf("BACKGROUND_INTERVAL must not be negative")
	}
	if c.BackgroundInterval > 0 && c.BackgroundInterval < MinBackgroundInterval {
		return fmt.Errorf("BACKGROUND_INTERVAL must be 0 or at least %s", MinBackgroundInterval)
	}
	if c.ConnectivityInterval <= 0 {
		return fmt.Errorf("CONNECTIVITY_INTERVAL must be positive")
	}
	return nil
}
