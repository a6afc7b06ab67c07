package di

import (
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rail-service/deposit_monitor/internal/domain/entities"
	"github.com/rail-service/deposit_monitor/internal/domain/services/notification"
	"github.com/rail-service/deposit_monitor/internal/domain/services/reconciliation"
	"github.com/rail-service/deposit_monitor/internal/domain/services/scanner"
	"github.com/rail-service/deposit_monitor/internal/infrastructure/adapters/alerts"
	"github.com/rail-service/deposit_monitor/internal/infrastructure/adapters/evm"
	"github.com/rail-service/deposit_monitor/internal/infrastructure/adapters/solana"
	"github.com/rail-service/deposit_monitor/internal/infrastructure/cache"
	"github.com/rail-service/deposit_monitor/internal/infrastructure/config"
	"github.com/rail-service/deposit_monitor/internal/workers/notification_worker"
	"github.com/rail-service/deposit_monitor/internal/workers/priority_decay"
	"github.com/rail-service/deposit_monitor/internal/workers/scan_scheduler"
)

// buildAdminNotifier returns the configured operator alert channel
func buildAdminNotifier(cfg config.AdminConfig, logger *zap.Logger) (notification.AdminNotifier, error) {
	switch strings.ToLower(cfg.Channel) {
	case "telegram":
		return alerts.NewTelegramNotifier(alerts.TelegramConfig{
			BotToken: cfg.TelegramBotToken,
			ChatID:   cfg.TelegramChatID,
		}, logger)
	case "email":
		return alerts.NewEmailNotifier(alerts.EmailConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.FromEmail,
			FromName:  cfg.FromName,
			ToEmail:   cfg.ToEmail,
		}, logger)
	case "", "none":
		logger.Warn("Admin alert channel not configured; deposit alerts disabled")
		return notification.NopAdminNotifier{}, nil
	default:
		return nil, fmt.Errorf("unsupported admin channel %q", cfg.Channel)
	}
}

// buildProviders creates one balance provider per configured chain family
func buildProviders(cfg *config.Config, logger *zap.Logger) (*solana.Provider, *evm.Provider, []scanner.BalanceProvider) {
	var (
		sol       *solana.Provider
		eth       *evm.Provider
		providers []scanner.BalanceProvider
	)

	for _, chain := range cfg.Chains {
		switch {
		case chain.Family == entities.ChainFamilySolana && sol == nil:
			sol = solana.NewProvider(solana.Config{
				Commitment:      rpc.CommitmentType(cfg.Scanner.SolanaCommitment),
				BreakerFailures: cfg.Scanner.BreakerFailures,
				BreakerTimeout:  cfg.Scanner.BreakerTimeout,
			}, logger.Named("solana"))
			providers = append(providers, sol)
		case chain.Family == entities.ChainFamilyEVM && eth == nil:
			eth = evm.NewProvider(evm.Config{
				DialTimeout:     cfg.Scanner.EVMDialTimeout,
				BreakerFailures: cfg.Scanner.BreakerFailures,
				BreakerTimeout:  cfg.Scanner.BreakerTimeout,
			}, logger.Named("evm"))
			providers = append(providers, eth)
		}
	}
	return sol, eth, providers
}

func reconcilerConfig(cfg *config.Config) reconciliation.Config {
	return reconciliation.Config{
		Chains:               cfg.Chains,
		TokenRefreshInterval: cfg.Scanner.TokenRefreshInterval,
	}
}

func dispatcherConfig(cfg config.NotificationConfig) notification.Config {
	return notification.Config{
		Workers:                cfg.Workers,
		QueueSize:              cfg.QueueSize,
		MaxAttempts:            cfg.MaxAttempts,
		InitialBackoff:         cfg.InitialBackoff,
		MaxBackoff:             cfg.MaxBackoff,
		RequestTimeout:         cfg.RequestTimeout,
		MaxConsecutiveFailures: cfg.MaxConsecutiveFailures,
	}
}

func schedulerConfig(cfg *config.Config) scan_scheduler.Config {
	return scan_scheduler.Config{
		HighInterval:   cfg.Scheduler.HighInterval,
		MediumInterval: cfg.Scheduler.MediumInterval,
		LowInterval:    cfg.Scheduler.LowInterval,
		BatchSize:      cfg.Scheduler.BatchSize,
		BatchDelay:     cfg.BatchDelay(),
		ScanTimeout:    cfg.Scheduler.ScanTimeout,
		RunOnStart:     cfg.Scheduler.RunOnStart,
	}
}

func decayConfig(cfg config.SchedulerConfig) priority_decay.Config {
	return priority_decay.Config{
		Schedule:          cfg.DecaySchedule,
		HighToMediumAfter: cfg.HighToMediumAfter,
		MediumToLowAfter:  cfg.MediumToLowAfter,
		RunTimeout:        time.Minute,
	}
}

func sweeperConfig(cfg config.NotificationConfig) notification_worker.Config {
	return notification_worker.Config{
		Interval:  cfg.SweepInterval,
		MinAge:    cfg.SweepMinAge,
		Lookback:  cfg.SweepLookback,
		BatchSize: cfg.SweepBatchSize,
	}
}

// walletLocker prefers Redis so tiers in other replicas see the lock
func walletLocker(c *Container) reconciliation.WalletLocker {
	if c.RedisClient != nil {
		return cache.NewRedisLocker(c.RedisClient, c.Config.Scheduler.WalletLockTTL, c.ZapLog.Named("lock"))
	}
	c.ZapLog.Warn("Redis not configured; wallet scan lock is process local")
	return cache.NewLocalLocker()
}
