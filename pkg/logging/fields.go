package logging

import "log/slog"

// ログフィールド名の定数
const (
	FieldTraceID    = "trace_id"
	FieldEventID    = "event_id"
	FieldError      = "error"
	FieldLatencyMs  = "latency_ms"
	FieldHTTPStatus = "http_status"
	FieldSessionID  = "session_id"
	FieldState      = "state"
	FieldURL        = "url"
	FieldUsername   = "username"
)

// WithTraceID はトレースIDのslog.Attrを返す。
func WithTraceID(traceID string) slog.Attr {
	return slog.String(FieldTraceID, traceID)
}

// WithEventID はイベントIDのslog.Attrを返す。
func WithEventID(eventID string) slog.Attr {
	return slog.String(FieldEventID, eventID)
}

// WithError はエラーのslog.Attrを返す。
func WithError(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

// WithLatency はレイテンシ（ミリ秒）のslog.Attrを返す。
func WithLatency(ms int64) slog.Attr {
	return slog.Int64(FieldLatencyMs, ms)
}

// WithHTTPStatus はHTTPステータスコードのslog.Attrを返す。
func WithHTTPStatus(status int) slog.Attr {
	return slog.Int(FieldHTTPStatus, status)
}

// WithSessionID はセッションIDのslog.Attrを返す。
func WithSessionID(id string) slog.Attr {
	return slog.String(FieldSessionID, id)
}

// WithState はセッション状態のslog.Attrを返す。
func WithState(state string) slog.Attr {
	return slog.String(FieldState, state)
}

// WithURL はクエリを除去したURLのslog.Attrを返す。
func WithURL(raw string) slog.Attr {
	return slog.String(FieldURL, RedactURL(raw))
}

// CommonFields はマスキング設定を保持するログフィールド生成器。
type CommonFields struct {
	masker *Masker
}

// NewCommonFields は新しいCommonFieldsを生成する。
func NewCommonFields(masker *Masker) *CommonFields {
	if masker == nil {
		masker = NewMasker(false)
	}
	return &CommonFields{masker: masker}
}

// WithUsername はマスキングされたユーザー名のslog.Attrを返す。
func (cf *CommonFields) WithUsername(username string) slog.Attr {
	return slog.String(FieldUsername, cf.masker.Username(username))
}

// SessionLogFields はセッションログ用の共通フィールドを返す。
func (cf *CommonFields) SessionLogFields(sessionID, eventID, username string) []any {
	return []any{
		WithSessionID(sessionID),
		WithEventID(eventID),
		cf.WithUsername(username),
	}
}
