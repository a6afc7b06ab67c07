package priority_decay

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rail-service/deposit_monitor/internal/domain/entities"
	"github.com/rail-service/deposit_monitor/internal/domain/repositories"
	"github.com/rail-service/deposit_monitor/pkg/logger"
	"github.com/rail-service/deposit_monitor/pkg/metrics"
)

// Config holds decay worker configuration
type Config struct {
	Schedule          string
	HighToMediumAfter time.Duration
	MediumToLowAfter  time.Duration
	RunTimeout        time.Duration
}

// DefaultConfig returns default worker configuration
func DefaultConfig() Config {
	return Config{
		Schedule:          "@every 10m",
		HighToMediumAfter: 30 * time.Minute,
		MediumToLowAfter:  60 * time.Minute,
		RunTimeout:        time.Minute,
	}
}

// Result counts the wallets moved by one run
type Result struct {
	HighToMedium int64
	MediumToLow  int64
}

// Worker demotes wallets that have been inactive for a while. Promotion back
// to HIGH only happens when a deposit is recorded.
type Worker struct {
	wallets repositories.WalletRepository
	cron    *cron.Cron
	config  Config
	metrics *metrics.Metrics
	logger  *logger.Logger
	now     func() time.Time
}

// NewWorker creates a new priority decay worker
func NewWorker(wallets repositories.WalletRepository, m *metrics.Metrics, log *logger.Logger, config Config) *Worker {
	def := DefaultConfig()
	if config.Schedule == "" {
		config.Schedule = def.Schedule
	}
	if config.HighToMediumAfter <= 0 {
		config.HighToMediumAfter = def.HighToMediumAfter
	}
	if config.MediumToLowAfter <= 0 {
		config.MediumToLowAfter = def.MediumToLowAfter
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = def.RunTimeout
	}
	if m == nil {
		m = metrics.NewNop()
	}

	return &Worker{
		wallets: wallets,
		cron:    cron.New(cron.WithChain(cron.Recover(cronLogger{log}))),
		config:  config,
		metrics: m,
		logger:  log,
		now:     time.Now,
	}
}

func (w *Worker) Start() error {
	_, err := w.cron.AddFunc(w.config.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), w.config.RunTimeout)
		defer cancel()

		if _, err := w.RunOnce(ctx); err != nil {
			w.logger.Error("Priority decay failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid decay schedule %q: %w", w.config.Schedule, err)
	}

	w.cron.Start()
	w.logger.Info("Priority decay worker started",
		"schedule", w.config.Schedule,
		"high_to_medium_after", w.config.HighToMediumAfter,
		"medium_to_low_after", w.config.MediumToLowAfter)
	return nil
}

func (w *Worker) Stop() {
	<-w.cron.Stop().Done()
	w.logger.Info("Priority decay worker stopped")
}

// Shutdown stops the cron and waits up to timeout for a running job
func (w *Worker) Shutdown(timeout time.Duration) error {
	ctx := w.cron.Stop()
	select {
	case <-ctx.Done():
		w.logger.Info("Priority decay worker stopped")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("priority decay worker did not stop within %s", timeout)
	}
}

// RunOnce applies both downgrades. The MEDIUM step runs even when the HIGH
// step fails; the first error is returned.
func (w *Worker) RunOnce(ctx context.Context) (Result, error) {
	now := w.now()
	var (
		result   Result
		firstErr error
	)

	n, err := w.downgrade(ctx, entities.ScanPriorityHigh, entities.ScanPriorityMedium, now.Add(-w.config.HighToMediumAfter))
	if err != nil {
		firstErr = err
	}
	result.HighToMedium = n

	n, err = w.downgrade(ctx, entities.ScanPriorityMedium, entities.ScanPriorityLow, now.Add(-w.config.MediumToLowAfter))
	if err != nil && firstErr == nil {
		firstErr = err
	}
	result.MediumToLow = n

	if result.HighToMedium > 0 || result.MediumToLow > 0 {
		w.logger.Info("Wallet scan priorities decayed",
			"high_to_medium", result.HighToMedium,
			"medium_to_low", result.MediumToLow)
	}
	return result, firstErr
}

func (w *Worker) downgrade(ctx context.Context, from, to entities.ScanPriority, inactiveSince time.Time) (int64, error) {
	n, err := w.wallets.DowngradeInactive(ctx, from, to, inactiveSince)
	if err != nil {
		return 0, fmt.Errorf("failed to downgrade %s wallets: %w", from, err)
	}
	w.metrics.PriorityDowngrades.WithLabelValues(string(from), string(to)).Add(float64(n))
	return n, nil
}

// cronLogger routes cron's own messages, including recovered job panics, to
// the service logger
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
