package server

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/handler"
	"github.com/oyaguma3/upass-renew-agent/pkg/httputil"
	"github.com/oyaguma3/upass-renew-agent/pkg/logging"
)

const traceIDHeader = "X-Trace-ID"

// TraceIDMiddleware はX-Trace-IDヘッダからトレースIDを取得する。
// ヘッダがなければ採番し、レスポンスにも返す。
func TraceIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(traceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		c.Set(handler.TraceIDKey, traceID)
		c.Header(traceIDHeader, traceID)
		c.Next()
	}
}

// LoggingMiddleware はリクエストログを出力する。
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		slog.Info("リクエスト完了",
			logging.WithTraceID(c.GetString(handler.TraceIDKey)),
			logging.WithEventID("HTTP_REQ"),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			logging.WithHTTPStatus(c.Writer.Status()),
			logging.WithLatency(time.Since(start).Milliseconds()),
		)
	}
}

// RecoveryMiddleware はパニックからの復旧を行う。
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("パニックから復旧",
					logging.WithTraceID(c.GetString(handler.TraceIDKey)),
					logging.WithEventID("HTTP_PANIC"),
					"error", err,
				)
				httputil.AbortWithError(c, httputil.InternalServerError("An unexpected error occurred"))
			}
		}()
		c.Next()
	}
}
