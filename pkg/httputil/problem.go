// Package httputil はAPIのエラー応答に使うRFC 7807形式の本文を提供する。
package httputil

import "net/http"

// ContentType はProblemDetailを返すときのContent-Type。
const ContentType = "application/problem+json"

// ProblemDetail はRFC 7807のエラー本文。Typeは常にabout:blankで、
// Titleはステータスコードの標準的な名称になる。
type ProblemDetail struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Problem はstatusに対応するProblemDetailを生成する。
func Problem(status int, detail string) *ProblemDetail {
	return &ProblemDetail{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	}
}

func BadRequest(detail string) *ProblemDetail { return Problem(http.StatusBadRequest, detail) }
func NotFound(detail string) *ProblemDetail   { return Problem(http.StatusNotFound, detail) }
func Conflict(detail string) *ProblemDetail   { return Problem(http.StatusConflict, detail) }
func BadGateway(detail string) *ProblemDetail { return Problem(http.StatusBadGateway, detail) }

func UnprocessableEntity(detail string) *ProblemDetail {
	return Problem(http.StatusUnprocessableEntity, detail)
}

func InternalServerError(detail string) *ProblemDetail {
	return Problem(http.StatusInternalServerError, detail)
}

func ServiceUnavailable(detail string) *ProblemDetail {
	return Problem(http.StatusServiceUnavailable, detail)
}

// IsServerError はサーバー側の失敗を示す応答かを返す。
func (p *ProblemDetail) IsServerError() bool {
	return p.Status >= http.StatusInternalServerError
}
