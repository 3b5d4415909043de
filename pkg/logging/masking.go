// Package logging はログ関連のユーティリティを提供する。
package logging

import "net/url"

// MaskUsername はアカウントのユーザー名をマスキングする。
// 先頭2文字 + マスク + 末尾1文字
// 例: student01 → st******1
// enabled=false の場合はマスキングせずにそのまま返す。
func MaskUsername(username string, enabled bool) string {
	if !enabled {
		return username
	}
	return MaskPartial(username, 2, 1, '*')
}

// RedactURL はURLからクエリとフラグメントを取り除く。
// SAMLチケット等がクエリに載るため、ログにはパスまでしか出さない。
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "[invalid url]"
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil
	return u.String()
}

// MaskPartial は文字列の一部をマスキングする。
// keepPrefix: 先頭から保持する文字数
// keepSuffix: 末尾から保持する文字数
// maskChar: マスキングに使用する文字
func MaskPartial(s string, keepPrefix, keepSuffix int, maskChar rune) string {
	runes := []rune(s)
	length := len(runes)

	// 文字列が短すぎる場合は全体をマスク
	if length <= keepPrefix+keepSuffix {
		masked := make([]rune, length)
		for i := range masked {
			masked[i] = maskChar
		}
		return string(masked)
	}

	result := make([]rune, length)
	copy(result, runes[:keepPrefix])
	for i := keepPrefix; i < length-keepSuffix; i++ {
		result[i] = maskChar
	}
	copy(result[length-keepSuffix:], runes[length-keepSuffix:])

	return string(result)
}

// Masker はマスキング設定を保持する構造体。
type Masker struct {
	enabled bool
}

// NewMasker は新しいMaskerを生成する。
func NewMasker(enabled bool) *Masker {
	return &Masker{enabled: enabled}
}

// Username はユーザー名をマスキングする。
func (m *Masker) Username(username string) string {
	return MaskUsername(username, m.enabled)
}

// IsEnabled はマスキングが有効かどうかを返す。
func (m *Masker) IsEnabled() bool {
	return m.enabled
}
