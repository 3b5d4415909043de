package store

// Valkeyキー
const (
	KeyPrefixSession = "renew:sess:"  // セッション記録
	KeyPrefixPages   = "renew:pages:" // セッションのページ履歴
	KeyLatestSession = "renew:latest" // 最新セッションID
	KeyRecentSession = "renew:recent" // 新しい順のセッションID一覧

	KeyAccount       = "account"                // アカウント（ユーザー名・学校）
	KeyAccountSecret = "secret:accountPassword" // 封緘済みパスワード
)
