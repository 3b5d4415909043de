package headless

import (
	"errors"
	"fmt"
)

// センチネルエラー
var (
	// ErrCircuitOpen はCircuit BreakerがOpen状態の場合のエラー
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrScriptTimeout はスクリプトが制限時間内に終了しなかった場合のエラー
	ErrScriptTimeout = errors.New("script timed out")

	// ErrScriptException はスクリプト内で例外が発生した場合のエラー
	ErrScriptException = errors.New("script exception")
)

// StatusError はHTTPステータスによる読み込み失敗を表す
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("site error: %d %s", e.StatusCode, e.URL)
}

// IsServerError はサーバーエラーかどうかを判定する
func (e *StatusError) IsServerError() bool {
	return e.StatusCode >= 500
}

// ConnectionError は接続エラーを表す
type ConnectionError struct {
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error: %v", e.Cause)
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}
