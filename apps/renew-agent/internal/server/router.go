package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/handler"
)

// SetupRouter はルーティングを設定する。
func SetupRouter(engine *gin.Engine, h *handler.RenewHandler) {
	// ヘルスチェック・メトリクス
	engine.GET("/health", h.HandleHealth)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1
	v1 := engine.Group("/api/v1")
	{
		v1.POST("/renew", h.HandleRenew)
		v1.POST("/prepare", h.HandlePrepare)
		v1.POST("/cancel", h.HandleCancel)
		v1.GET("/session", h.HandleSession)
		v1.GET("/status", h.HandleStatus)

		v1.GET("/account", h.HandleGetAccount)
		v1.PUT("/account", h.HandlePutAccount)
		v1.DELETE("/account", h.HandleDeleteAccount)

		v1.GET("/schools", h.HandleSchools)
	}
}
