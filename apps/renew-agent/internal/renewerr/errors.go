// Package renewerr はUPass更新処理の失敗種別を定義する。
package renewerr

import (
	"errors"
	"fmt"
)

// Kind は更新失敗の種別を表す型
type Kind string

// 失敗種別の定数
const (
	KindTransport             Kind = "transportError"             // 通信失敗・ページ読み込み失敗・キャンセル
	KindAuthenticationFailed  Kind = "authenticationFailedError"  // 学校側認証の拒否
	KindSchoolNotRecognized   Kind = "schoolNotRecognizedError"   // 学校選択肢が見つからない
	KindAlreadyHasLatestUPass Kind = "alreadyHasLatestUPassError" // 最新UPass取得済み（正常終了扱い）
	KindVerificationFailed    Kind = "verificationFailedError"    // 更新後の確認で枚数が増えていない
	KindUnknown               Kind = "unknownError"               // 想定外のページ・スクリプト結果
	KindCredentialMissing     Kind = "credentialMissingError"     // アカウント情報未登録
)

// titles は画面表示用のタイトル
var titles = map[Kind]string{
	KindTransport:             "Couldn't connect to UPassBC, check your connection.",
	KindAuthenticationFailed:  "Your school didn't accept that username and password.",
	KindSchoolNotRecognized:   "Your school couldn't be found on UPassBC.",
	KindAlreadyHasLatestUPass: "You already have the latest UPass.",
	KindVerificationFailed:    "UPassBC didn't confirm the renewal. Try again later.",
	KindUnknown:               "Unknown Error",
	KindCredentialMissing:     "Sign in with your school account first.",
}

// Title は種別の表示用タイトルを返す
func (k Kind) Title() string {
	if t, ok := titles[k]; ok {
		return t
	}
	return titles[KindUnknown]
}

// IsValid は既知の種別かどうかを判定する
func (k Kind) IsValid() bool {
	_, ok := titles[k]
	return ok
}

// Error は種別付きの更新エラー
type Error struct {
	Kind  Kind
	Cause error
}

// New は種別と原因からErrorを生成する
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return string(e.Kind)
}

// Unwrap は原因エラーを返す
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is は種別が一致する場合にtrueを返す。原因は比較しない。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Title は表示用タイトルを返す
func (e *Error) Title() string {
	return e.Kind.Title()
}

// IsSoft は失敗として扱わない種別かどうかを返す
func (e *Error) IsSoft() bool {
	return e.Kind == KindAlreadyHasLatestUPass
}

// センチネルエラー（errors.Isでの種別判定用）
var (
	ErrTransport             = &Error{Kind: KindTransport}
	ErrAuthenticationFailed  = &Error{Kind: KindAuthenticationFailed}
	ErrSchoolNotRecognized   = &Error{Kind: KindSchoolNotRecognized}
	ErrAlreadyHasLatestUPass = &Error{Kind: KindAlreadyHasLatestUPass}
	ErrVerificationFailed    = &Error{Kind: KindVerificationFailed}
	ErrUnknown               = &Error{Kind: KindUnknown}
	ErrCredentialMissing     = &Error{Kind: KindCredentialMissing}
)

// From は任意のエラーを更新エラーに変換する。
// 種別を持たないエラーはunknownErrorに丸める。
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		return re
	}
	return New(KindUnknown, err)
}

// KindOf はエラーの種別を返す。種別を持たない場合はunknownErrorを返す。
func KindOf(err error) Kind {
	if re := From(err); re != nil {
		return re.Kind
	}
	return ""
}
