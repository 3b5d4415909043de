package config

import "time"

// レンダリング面の種別
const (
	SurfaceHeadless = "headless"
	SurfaceChrome   = "chrome"
)

// Valkey接続設定
const (
	ValkeyConnectTimeout = 3 * time.Second
	ValkeyCommandTimeout = 2 * time.Second
	ValkeyPoolSize       = 4
	ValkeyMaxRetries     = 2
)

// 更新サイト接続設定
const (
	SiteRequestTimeout = 20 * time.Second
	SiteMaxRedirects   = 10
	ScriptTimeout      = 10 * time.Second
	SurfaceQueueSize   = 16
	UserAgent          = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148"
)

// Circuit Breaker設定
const (
	CBName             = "upass-site"
	CBMaxRequests      = 1
	CBInterval         = 60 * time.Second
	CBTimeout          = 30 * time.Second
	CBFailureThreshold = 3
)

// 疎通確認設定
const (
	ProbeTimeout = 5 * time.Second
)

// セッション管理
const (
	SessionTTL         = 7 * 24 * time.Hour
	PageHistoryLimit   = 32
	RecentSessionLimit = 50
	CredentialTimeout  = 2 * time.Second
	StatusBufferSize   = 16
)

// バックグラウンド実行の最小間隔
const (
	MinBackgroundInterval = 15 * time.Minute
)

// HTTPサーバー設定
const (
	ReadHeaderTimeout = 10 * time.Second
	ShutdownTimeout   = 5 * time.Second
)
