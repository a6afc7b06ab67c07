package di

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/rail-service/deposit_monitor/internal/domain/services/notification"
	"github.com/rail-service/deposit_monitor/internal/domain/services/reconciliation"
	"github.com/rail-service/deposit_monitor/internal/domain/services/rpcgateway"
	"github.com/rail-service/deposit_monitor/internal/domain/services/scanner"
	"github.com/rail-service/deposit_monitor/internal/infrastructure/adapters/evm"
	"github.com/rail-service/deposit_monitor/internal/infrastructure/adapters/solana"
	"github.com/rail-service/deposit_monitor/internal/infrastructure/cache"
	"github.com/rail-service/deposit_monitor/internal/infrastructure/config"
	"github.com/rail-service/deposit_monitor/internal/infrastructure/repositories"
	"github.com/rail-service/deposit_monitor/internal/workers/notification_worker"
	"github.com/rail-service/deposit_monitor/internal/workers/priority_decay"
	"github.com/rail-service/deposit_monitor/internal/workers/scan_scheduler"
	"github.com/rail-service/deposit_monitor/pkg/crypto"
	"github.com/rail-service/deposit_monitor/pkg/graceful"
	"github.com/rail-service/deposit_monitor/pkg/logger"
	"github.com/rail-service/deposit_monitor/pkg/metrics"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	DB     *sqlx.DB
	Logger *logger.Logger
	ZapLog *zap.Logger

	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	RedisClient *redis.Client
	Cipher      *crypto.EncryptionService

	// Repositories
	WalletRepo  *repositories.WalletRepository
	TokenRepo   *repositories.TokenRepository
	BalanceRepo *repositories.BalanceRepository
	DepositRepo *repositories.DepositRepository
	WebhookRepo *repositories.WebhookRepository

	// Chain access
	Gateway        *rpcgateway.Gateway
	SolanaProvider *solana.Provider
	EVMProvider    *evm.Provider
	Scanner        *scanner.Scanner

	// Domain services
	Reconciler     *reconciliation.Service
	Dispatcher     *notification.Dispatcher
	WebhookService *notification.WebhookService
	AdminNotifier  notification.AdminNotifier

	// Workers
	ScanScheduler *scan_scheduler.Scheduler
	DecayWorker   *priority_decay.Worker
	OutboxSweeper *notification_worker.Worker

	cancel context.CancelFunc
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config, db *sqlx.DB, log *logger.Logger) (*Container, error) {
	zapLog := log.Zap()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	cipher, err := crypto.NewEncryptionService(cfg.Security.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize encryption service: %w", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = cache.NewRedisClient(cfg.Redis, zapLog)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis client: %w", err)
		}
	}

	admin, err := buildAdminNotifier(cfg.Admin, zapLog.Named("admin_alerts"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize admin notifier: %w", err)
	}

	c := &Container{
		Config:      cfg,
		DB:          db,
		Logger:      log,
		ZapLog:      zapLog,
		Registry:    registry,
		Metrics:     m,
		RedisClient: redisClient,
		Cipher:      cipher,

		WalletRepo:  repositories.NewWalletRepository(db, zapLog),
		TokenRepo:   repositories.NewTokenRepository(db),
		BalanceRepo: repositories.NewBalanceRepository(db),
		DepositRepo: repositories.NewDepositRepository(db, zapLog),
		WebhookRepo: repositories.NewWebhookRepository(db),

		AdminNotifier: admin,
	}

	c.initializeScanning()
	c.initializeNotification()
	c.initializeWorkers()

	return c, nil
}

func (c *Container) initializeScanning() {
	c.Gateway = rpcgateway.New(rpcgateway.Config{
		MaxRequestsPerWindow: c.Config.Gateway.MaxRequestsPerSecond,
		Window:               c.Config.GatewayWindow(),
	}, c.Metrics, c.Logger.With("component", "rpc_gateway"))

	var providers []scanner.BalanceProvider
	c.SolanaProvider, c.EVMProvider, providers = buildProviders(c.Config, c.ZapLog)
	c.Scanner = scanner.NewScanner(c.Gateway, c.Metrics, c.Logger.With("component", "scanner"), providers...)
}

func (c *Container) initializeNotification() {
	c.Dispatcher = notification.NewDispatcher(
		c.WebhookRepo,
		c.DepositRepo,
		c.Cipher,
		c.AdminNotifier,
		c.Metrics,
		c.Logger.With("component", "dispatcher"),
		dispatcherConfig(c.Config.Notification),
	)
	c.WebhookService = notification.NewWebhookService(c.WebhookRepo, c.Cipher, c.Logger.With("component", "webhooks"))

	c.Reconciler = reconciliation.NewService(
		c.WalletRepo,
		c.TokenRepo,
		c.BalanceRepo,
		c.DepositRepo,
		c.Scanner,
		c.Dispatcher,
		walletLocker(c),
		c.Metrics,
		c.Logger.With("component", "reconciler"),
		reconcilerConfig(c.Config),
	)
}

func (c *Container) initializeWorkers() {
	c.ScanScheduler = scan_scheduler.NewScheduler(
		c.WalletRepo,
		c.Reconciler,
		c.Metrics,
		c.Logger.With("component", "scan_scheduler"),
		schedulerConfig(c.Config),
	)
	c.DecayWorker = priority_decay.NewWorker(
		c.WalletRepo,
		c.Metrics,
		c.Logger.With("component", "priority_decay"),
		decayConfig(c.Config.Scheduler),
	)
	c.OutboxSweeper = notification_worker.NewWorker(
		c.DepositRepo,
		c.WalletRepo,
		c.TokenRepo,
		c.Reconciler,
		c.Dispatcher,
		c.Logger.With("component", "outbox_sweeper"),
		sweeperConfig(c.Config.Notification),
	)
}

// StartWorkers starts the dispatcher pool and the background workers
func (c *Container) StartWorkers(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	c.Dispatcher.Start()

	if err := c.ScanScheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scan scheduler: %w", err)
	}
	if err := c.DecayWorker.Start(); err != nil {
		return fmt.Errorf("failed to start priority decay worker: %w", err)
	}
	go c.OutboxSweeper.Start(ctx)

	return nil
}

// Shutdowners returns the components in the order they must stop: producers
// first, then the dispatcher so queued events drain, then chain access.
func (c *Container) Shutdowners() []graceful.Shutdowner {
	list := []graceful.Shutdowner{
		c.ScanScheduler,
		c.DecayWorker,
		c.OutboxSweeper,
		c.Dispatcher,
		c.Gateway,
		graceful.ShutdownFunc(func(time.Duration) error {
			if c.cancel != nil {
				c.cancel()
			}
			if c.EVMProvider != nil {
				c.EVMProvider.Close()
			}
			if c.RedisClient != nil {
				return c.RedisClient.Close()
			}
			return nil
		}),
	}
	return list
}
