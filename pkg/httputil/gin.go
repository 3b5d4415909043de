package httputil

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/oyaguma3/upass-renew-agent/pkg/apperr"
)

// WriteError はProblemDetailをGinレスポンスとして書き込む。
func WriteError(c *gin.Context, problem *ProblemDetail) {
	c.Header("Content-Type", ContentType)
	c.JSON(problem.Status, problem)
}

// AbortWithError はProblemDetailを書き込み、以降のハンドラーを中断する。
func AbortWithError(c *gin.Context, problem *ProblemDetail) {
	c.Header("Content-Type", ContentType)
	c.AbortWithStatusJSON(problem.Status, problem)
}

// ProblemFor はapperrのエラーをProblemDetailに変換する。
// 該当しないエラーはfallbackを返す。
func ProblemFor(err error, fallback *ProblemDetail) *ProblemDetail {
	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		return BadRequest(ve.Error())
	case errors.Is(err, apperr.ErrInvalidRequest):
		return BadRequest(apperr.ErrInvalidRequest.Error())
	case errors.Is(err, apperr.ErrAccountNotFound):
		return NotFound(apperr.ErrAccountNotFound.Error())
	case errors.Is(err, apperr.ErrSessionNotFound):
		return NotFound(apperr.ErrSessionNotFound.Error())
	case errors.Is(err, apperr.ErrValkeyConnection), errors.Is(err, apperr.ErrValkeyCommand):
		return ServiceUnavailable("valkey unavailable")
	case errors.Is(err, apperr.ErrSurfaceUnavailable):
		return BadGateway("rendering surface unavailable")
	}
	return fallback
}

// WriteAppError はエラーを対応するProblemDetailとして書き込む。
func WriteAppError(c *gin.Context, err error, fallback *ProblemDetail) {
	WriteError(c, ProblemFor(err, fallback))
}
