package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rail-service/deposit_monitor/internal/api/routes"
	"github.com/rail-service/deposit_monitor/internal/infrastructure/config"
	"github.com/rail-service/deposit_monitor/internal/infrastructure/database"
	"github.com/rail-service/deposit_monitor/internal/infrastructure/di"
	"github.com/rail-service/deposit_monitor/pkg/graceful"
	"github.com/rail-service/deposit_monitor/pkg/logger"
	"github.com/rail-service/deposit_monitor/pkg/tracing"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer func() { _ = log.Sync() }()

	// Initialize OpenTelemetry tracing
	tracingShutdown, err := tracing.InitTracer(context.Background(), tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		CollectorURL: cfg.Tracing.CollectorURL,
		Environment:  cfg.Environment,
		SampleRate:   cfg.Tracing.SampleRate,
		Insecure:     cfg.Tracing.Insecure,
	}, log.Zap())
	if err != nil {
		log.Fatal("Failed to initialize tracing", "error", err)
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db.DB, cfg.Database.MigrationsPath); err != nil {
			log.Fatal("Failed to run migrations", "error", err)
		}
		log.Info("Database migrations applied", "source", cfg.Database.MigrationsPath)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Build dependency injection container
	container, err := di.NewContainer(cfg, db, log)
	if err != nil {
		log.Fatal("Failed to create DI container", "error", err)
	}

	router := routes.SetupRoutes(container)

	if err := container.StartWorkers(context.Background()); err != nil {
		log.Fatal("Failed to start workers", "error", err)
	}

	server := &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Info("Starting server",
			"addr", server.Addr,
			"environment", cfg.Environment,
			"chains", len(cfg.Chains),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	// Workers stop before the server so no scan starts against a closing pool
	shutdown := graceful.NewShutdownManager(server, db, cfg.Server.ShutdownTimeout, log)
	for _, s := range container.Shutdowners() {
		shutdown.Register(s)
	}
	shutdown.Register(graceful.ShutdownFunc(func(timeout time.Duration) error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return tracingShutdown(ctx)
	}))

	shutdown.WaitForShutdown()
}
