package flow

import "errors"

// ErrInvalidTransition は状態遷移テーブルに存在しない遷移を要求した場合のエラー
var ErrInvalidTransition = errors.New("invalid state transition")
