package routes

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/rail-service/deposit_monitor/internal/api/handlers"
	"github.com/rail-service/deposit_monitor/internal/api/middleware"
	"github.com/rail-service/deposit_monitor/internal/infrastructure/database"
	"github.com/rail-service/deposit_monitor/internal/infrastructure/di"
	"github.com/rail-service/deposit_monitor/pkg/tracing"
)

// SetupRoutes configures all application routes
func SetupRoutes(container *di.Container) *gin.Engine {
	router := gin.New()

	// Global middleware - order matters
	router.Use(tracing.HTTPMiddleware())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestSizeLimit())
	router.Use(middleware.Logger(container.Logger))
	router.Use(middleware.Recovery(container.Logger))
	router.Use(middleware.RateLimit(container.Config.Server.RateLimitPerMin))
	router.Use(middleware.SecurityHeaders())

	checks := map[string]handlers.CheckFunc{
		"database": func(ctx context.Context) error { return database.HealthCheck(ctx, container.DB) },
	}
	if container.RedisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return container.RedisClient.Ping(ctx).Err() }
	}

	coreHandlers := handlers.NewCoreHandlers(checks, container.Registry, container.Logger)
	webhookHandlers := handlers.NewWebhookHandlers(container.WebhookService, container.Logger)
	adminHandlers := handlers.NewAdminHandlers(container.Gateway, container.Reconciler, container.ScanScheduler, container.Logger)

	// Health checks (no auth required)
	router.GET("/health", coreHandlers.Health)
	router.GET("/ready", coreHandlers.Ready)
	router.GET("/live", coreHandlers.Live)
	router.GET("/metrics", coreHandlers.Metrics())

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AdminAuth(container.Config.JWT.Secret, container.Config.JWT.Issuer, container.Logger))
	{
		webhooks := v1.Group("/webhooks")
		{
			webhooks.POST("", webhookHandlers.Register)
			webhooks.GET("", webhookHandlers.List)
			webhooks.DELETE("/:id", webhookHandlers.Delete)
		}

		admin := v1.Group("/admin")
		{
			admin.GET("/rpc-stats", adminHandlers.RPCStats)
			admin.POST("/rpc-stats/reset", adminHandlers.ResetRPCStats)
			admin.POST("/wallets/:id/scan", adminHandlers.ScanWallet)
			admin.POST("/tokens/refresh", adminHandlers.RefreshTokens)
			admin.POST("/tiers/:priority/scan", adminHandlers.RunTier)
		}
	}

	return router
}
