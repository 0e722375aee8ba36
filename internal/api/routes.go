package api

import (
	"github.com/RishiKendai/veritas/internal/config"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(cfg *config.Config, handler *Handler) *gin.Engine {
	router := gin.Default()

	rateLimiter := NewRateLimiter(cfg.RateLimitRPS, int(cfg.RateLimitRPS*2))

	router.Use(CORSMiddleware(cfg.CORSOrigin))
	router.Use(MetricsMiddleware())
	router.Use(ErrorHandlerMiddleware())

	// Health endpoint (no auth)
	router.GET("/health", handler.Health)

	api := router.Group("/api/v1")
	api.Use(RateLimitMiddleware(rateLimiter))
	{
		api.POST("/admin/login", handler.Login)
		api.POST("/check", handler.Check)
		api.GET("/checks/:id", handler.GetCheckReport)
		api.GET("/checks/:id/status", handler.GetCheckStatus)
	}

	// Corpus management (admin only). Authentication runs first so admins
	// are limited per subject rather than per IP.
	admin := router.Group("/api/v1/documents")
	admin.Use(JWTAuthMiddleware(cfg.JWTSecret, cfg.JWTIssuer))
	admin.Use(RateLimitMiddleware(rateLimiter))
	{
		admin.GET("", handler.ListDocuments)
		admin.POST("", handler.UploadDocument)
		admin.PUT("/:id", handler.UpdateDocument)
		admin.DELETE("/:id", handler.DeleteDocument)
	}

	return router
}
