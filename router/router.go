package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"studysync/presence-service/config"
	"studysync/presence-service/handlers"
	"studysync/presence-service/middleware"
	"studysync/presence-service/services"
	"studysync/presence-service/utils"
)

// Setup builds the HTTP engine. The returned limiter is nil when rate
// limiting is disabled; the caller owns its cleanup loop.
func Setup(cfg *config.Config, service *services.PresenceService, metrics *services.Metrics, logger *utils.Logger) (*gin.Engine, *middleware.RateLimiter) {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS())

	var limiter *middleware.RateLimiter
	if cfg.RateLimitPerMinute > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
		router.Use(middleware.RateLimit(limiter))
	}

	presenceHandler := handlers.NewPresenceHandler(service, metrics, logger, cfg.MaxBulkIDs)

	router.GET("/health", handlers.HealthCheck(service))
	router.GET("/metrics", presenceHandler.Metrics)

	router.GET("/status/:userId", presenceHandler.GetStatus)
	router.POST("/status/bulk", presenceHandler.BulkStatus)

	// Writes are bound to the caller's identity when the auth service shares its secret
	writes := router.Group("")
	if cfg.JWTSecret != "" {
		writes.Use(middleware.Auth(cfg.JWTSecret))
	}
	{
		writes.POST("/heartbeat", presenceHandler.Heartbeat)
		writes.GET("/ws", presenceHandler.WebSocket)
	}

	return router, limiter
}
