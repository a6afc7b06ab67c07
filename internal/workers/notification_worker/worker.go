// Package notification_worker re-dispatches deposits whose notification never
// completed, for example because the process stopped or the dispatch queue
// was full when the deposit was recorded.
package notification_worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rail-service/deposit_monitor/internal/domain/entities"
	"github.com/rail-service/deposit_monitor/internal/domain/repositories"
	"github.com/rail-service/deposit_monitor/internal/domain/services/notification"
	"github.com/rail-service/deposit_monitor/pkg/logger"
)

// Enqueuer queues a deposit event for delivery
type Enqueuer interface {
	Enqueue(ctx context.Context, event *entities.DepositEvent) error
}

// ChainLookup resolves a configured chain by id
type ChainLookup interface {
	Chain(id string) (*entities.Chain, bool)
}

// Worker sweeps the deposit outbox
type Worker struct {
	ledger     repositories.DepositLedger
	wallets    repositories.WalletRepository
	tokens     repositories.TokenRepository
	chains     ChainLookup
	dispatcher Enqueuer
	config     Config
	logger     *logger.Logger
	now        func() time.Time
	stopCh     chan struct{}
	doneCh     chan struct{}
}

// Config holds worker configuration
type Config struct {
	Interval time.Duration
	// MinAge leaves fresh deposits to the in-process dispatch path
	MinAge    time.Duration
	Lookback  time.Duration
	BatchSize int
}

// DefaultConfig returns default worker configuration
func DefaultConfig() Config {
	return Config{
		Interval:  time.Minute,
		MinAge:    2 * time.Minute,
		Lookback:  24 * time.Hour,
		BatchSize: 100,
	}
}

// NewWorker creates a new outbox sweeper
func NewWorker(
	ledger repositories.DepositLedger,
	wallets repositories.WalletRepository,
	tokens repositories.TokenRepository,
	chains ChainLookup,
	dispatcher Enqueuer,
	log *logger.Logger,
	config Config,
) *Worker {
	def := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.MinAge <= 0 {
		config.MinAge = def.MinAge
	}
	if config.Lookback <= 0 {
		config.Lookback = def.Lookback
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}

	return &Worker{
		ledger:     ledger,
		wallets:    wallets,
		tokens:     tokens,
		chains:     chains,
		dispatcher: dispatcher,
		config:     config,
		logger:     log,
		now:        time.Now,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start runs the sweep loop until ctx is done or Stop is called
func (w *Worker) Start(ctx context.Context) {
	defer close(w.doneCh)

	w.logger.Info("Starting notification outbox worker",
		"interval", w.config.Interval.String(),
		"min_age", w.config.MinAge.String(),
		"lookback", w.config.Lookback.String())

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Notification outbox worker stopped (context cancelled)")
			return
		case <-w.stopCh:
			w.logger.Info("Notification outbox worker stopped")
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error("Notification outbox sweep failed", "error", err)
			}
		}
	}
}

// Stop stops the worker
func (w *Worker) Stop() {
	close(w.stopCh)
}

// Shutdown stops the worker and waits up to timeout for the loop to exit
func (w *Worker) Shutdown(timeout time.Duration) error {
	w.Stop()
	select {
	case <-w.doneCh:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("notification outbox worker did not stop within %s", timeout)
	}
}

// RunOnce re-queues one batch of unsent deposits and returns how many were
// queued. Deposits that cannot be rebuilt are logged and left for the next
// sweep.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	now := w.now().UTC()
	deposits, err := w.ledger.ListUnsent(ctx, now.Add(-w.config.Lookback), now.Add(-w.config.MinAge), w.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list unsent deposits: %w", err)
	}
	if len(deposits) == 0 {
		return 0, nil
	}

	w.logger.Info("Found unsent deposit notifications", "count", len(deposits))

	queued := 0
	for _, deposit := range deposits {
		event, err := w.rebuild(ctx, deposit)
		if err != nil {
			w.logger.Warn("Cannot rebuild deposit event",
				"deposit_id", deposit.ID,
				"error", err)
			continue
		}

		if err := w.dispatcher.Enqueue(ctx, event); err != nil {
			if errors.Is(err, notification.ErrAlreadyQueued) {
				w.logger.Debug("Deposit notification still pending, skipping", "deposit_id", deposit.ID)
				continue
			}
			return queued, fmt.Errorf("failed to queue deposit %s: %w", deposit.ID, err)
		}
		queued++
	}

	w.logger.Info("Notification outbox sweep completed",
		"found", len(deposits),
		"queued", queued)
	return queued, nil
}

func (w *Worker) rebuild(ctx context.Context, deposit *entities.Deposit) (*entities.DepositEvent, error) {
	chain, ok := w.chains.Chain(deposit.ChainID)
	if !ok {
		return nil, fmt.Errorf("chain %q is not configured", deposit.ChainID)
	}

	wallet, err := w.wallets.GetByID(ctx, deposit.WalletID)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}

	token, err := w.tokens.GetByAddress(ctx, deposit.ChainID, deposit.TokenAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}

	return &entities.DepositEvent{Deposit: deposit, Wallet: wallet, Chain: chain, Token: token}, nil
}
