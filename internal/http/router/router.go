package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ckeiituk/iplist-bot/internal/http/handler"
	"github.com/ckeiituk/iplist-bot/internal/http/handler/webhook"
	"github.com/ckeiituk/iplist-bot/internal/http/middleware"
)

type RouterConfig struct {
	AdminAPIKey string
}

func SetupRoutes(router *gin.Engine, webhookHandler *webhook.GitHubWebhookHandler, onboardingHandler *handler.OnboardingHandler, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	router.POST("/webhook/github", webhookHandler.HandleEvent)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AdminAuth(cfg.AdminAPIKey))
	{
		v1.POST("/domains", onboardingHandler.Onboard)
	}
}
