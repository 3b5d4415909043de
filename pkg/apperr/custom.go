package apperr

import (
	"fmt"
	"strings"
)

// ValidationError は入力項目単位の検証エラー。
// Causeには該当するセンチネルエラーを設定し、errors.Isで分類できるようにする。
type ValidationError struct {
	Field   string
	Message string
	Cause   error
}

// Invalid はfieldの検証エラーを生成する。
func Invalid(field string, cause error, format string, args ...any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// ValkeyError はValkeyコマンドの失敗を表す。
// KindはErrValkeyConnectionかErrValkeyCommandのいずれか。
type ValkeyError struct {
	Operation string
	Key       string
	Kind      error
	Cause     error
}

// NewValkeyError はValkeyErrorを生成する。keyが無い操作では接続先を渡す。
func NewValkeyError(operation, key string, kind, cause error) *ValkeyError {
	return &ValkeyError{Operation: operation, Key: key, Kind: kind, Cause: cause}
}

func (e *ValkeyError) Error() string {
	var b strings.Builder
	b.WriteString("valkey " + e.Operation)
	if e.Key != "" {
		b.WriteString(" " + e.Key)
	}
	for _, err := range e.Unwrap() {
		b.WriteString(": " + err.Error())
	}
	return b.String()
}

// Unwrap はKindとCauseのうち設定されているものを返す。
func (e *ValkeyError) Unwrap() []error {
	errs := make([]error, 0, 2)
	for _, err := range []error{e.Kind, e.Cause} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
