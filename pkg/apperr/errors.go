// Package apperr は共通エラー定義を提供する。
package apperr

import "errors"

// 要求関連エラー
var (
	// ErrInvalidRequest は不正なリクエストエラー
	ErrInvalidRequest = errors.New("invalid request")
	// ErrSessionNotFound はセッションが見つからない場合のエラー
	ErrSessionNotFound = errors.New("session not found")
	// ErrAccountNotFound はアカウントが登録されていない場合のエラー
	ErrAccountNotFound = errors.New("account not found")
)

// インフラ関連エラー
var (
	// ErrValkeyConnection はValkey接続エラー
	ErrValkeyConnection = errors.New("valkey connection error")
	// ErrValkeyCommand はValkeyコマンド実行エラー
	ErrValkeyCommand = errors.New("valkey command error")
	// ErrSurfaceUnavailable はブラウザ面に接続できない場合のエラー
	ErrSurfaceUnavailable = errors.New("browser surface unavailable")
)

// バリデーション関連エラー
var (
	// ErrInvalidSchool は未登録の学校指定エラー
	ErrInvalidSchool = errors.New("invalid school")
	// ErrEmptyCredential は空のユーザー名・パスワードエラー
	ErrEmptyCredential = errors.New("empty credential")
)
