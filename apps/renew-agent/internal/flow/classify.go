package flow

import (
	"net/url"
	"strings"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/school"
)

// PageKind は到着ページの分類
type PageKind string

// ページ分類の定数
const (
	PageHome     PageKind = "home"      // UPassBCトップページ
	PageAuth     PageKind = "auth"      // 学校ログインページ
	PagePostAuth PageKind = "post_auth" // 認証後のUPassBCページ（/fs/配下）
	PageUnknown  PageKind = "unknown"   // 中間ページ等
)

// postAuthSegment は認証後ページのパスセグメント
const postAuthSegment = "fs"

// Classify は到着URLを判定順（トップ、ログイン、認証後）に照合して分類する。
func Classify(rawURL, homeURL string, s school.School) PageKind {
	if isHome(rawURL, homeURL) {
		return PageHome
	}
	if s.AuthPageIdentifier != "" && strings.Contains(rawURL, s.AuthPageIdentifier) {
		return PageAuth
	}
	if hasPostAuthSegment(rawURL) {
		return PagePostAuth
	}
	return PageUnknown
}

// isHome はスキーム・ホスト・パスがトップページと一致するかを判定する。
// 末尾スラッシュの有無とホスト名の大文字小文字は区別しない。
func isHome(rawURL, homeURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	h, err := url.Parse(homeURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, h.Scheme) &&
		strings.EqualFold(u.Host, h.Host) &&
		strings.TrimRight(u.Path, "/") == strings.TrimRight(h.Path, "/")
}

// hasPostAuthSegment はパスに "fs" セグメントを含むかを判定する。
func hasPostAuthSegment(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	for _, seg := range strings.Split(u.Path, "/") {
		if strings.EqualFold(seg, postAuthSegment) {
			return true
		}
	}
	return false
}
