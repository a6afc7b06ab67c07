package scan_scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rail-service/deposit_monitor/internal/domain/entities"
	domainerrors "github.com/rail-service/deposit_monitor/internal/domain/errors"
	"github.com/rail-service/deposit_monitor/internal/domain/repositories"
	"github.com/rail-service/deposit_monitor/internal/domain/services/reconciliation"
	"github.com/rail-service/deposit_monitor/pkg/logger"
	"github.com/rail-service/deposit_monitor/pkg/metrics"
)

// ErrTierBusy is returned by RunTier when the previous run of the tier is
// still in progress
var ErrTierBusy = errors.New("tier scan already in progress")

// WalletScanner reconciles every token of one wallet
type WalletScanner interface {
	ScanWallet(ctx context.Context, wallet *entities.ManagedWallet) *reconciliation.WalletResult
}

// Config holds scheduler configuration
type Config struct {
	HighInterval   time.Duration
	MediumInterval time.Duration
	LowInterval    time.Duration
	BatchSize      int
	BatchDelay     time.Duration
	// ScanTimeout bounds a single tier run
	ScanTimeout time.Duration
	RunOnStart  bool
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		HighInterval:   30 * time.Second,
		MediumInterval: 5 * time.Minute,
		LowInterval:    15 * time.Minute,
		BatchSize:      50,
		BatchDelay:     time.Second,
		ScanTimeout:    10 * time.Minute,
		RunOnStart:     true,
	}
}

// Interval returns the cadence of priority
func (c Config) Interval(priority entities.ScanPriority) time.Duration {
	switch priority {
	case entities.ScanPriorityHigh:
		return c.HighInterval
	case entities.ScanPriorityMedium:
		return c.MediumInterval
	default:
		return c.LowInterval
	}
}

// TierResult summarises one run over a priority tier
type TierResult struct {
	Tier        entities.ScanPriority
	Batches     int
	Wallets     int
	Deposits    int
	Failures    int
	BusyWallets int
	Duration    time.Duration
}

// tierLock allows a single in-flight run per tier
type tierLock struct {
	mu sync.Mutex
}

func (l *tierLock) tryAcquire() bool { return l.mu.TryLock() }
func (l *tierLock) release()         { l.mu.Unlock() }

// Scheduler polls wallets on three independent cadences, one per scan
// priority tier
type Scheduler struct {
	wallets repositories.WalletRepository
	scanner WalletScanner
	config  Config
	metrics *metrics.Metrics
	logger  *logger.Logger
	locks   map[entities.ScanPriority]*tierLock

	// Control
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler creates a new scan scheduler
func NewScheduler(wallets repositories.WalletRepository, scanner WalletScanner, m *metrics.Metrics, log *logger.Logger, config Config) *Scheduler {
	def := DefaultConfig()
	if config.HighInterval <= 0 {
		config.HighInterval = def.HighInterval
	}
	if config.MediumInterval <= 0 {
		config.MediumInterval = def.MediumInterval
	}
	if config.LowInterval <= 0 {
		config.LowInterval = def.LowInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.BatchDelay < 0 {
		config.BatchDelay = 0
	}
	if config.ScanTimeout <= 0 {
		config.ScanTimeout = def.ScanTimeout
	}
	if m == nil {
		m = metrics.NewNop()
	}

	locks := make(map[entities.ScanPriority]*tierLock)
	for _, p := range entities.ScanPriorities() {
		locks[p] = &tierLock{}
	}

	return &Scheduler{
		wallets: wallets,
		scanner: scanner,
		config:  config,
		metrics: m,
		logger:  log,
		locks:   locks,
	}
}

// Start launches one ticker loop per tier. Runs are cancelled when ctx is
// done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.logger.Info("Starting scan scheduler",
		"high_interval", s.config.HighInterval,
		"medium_interval", s.config.MediumInterval,
		"low_interval", s.config.LowInterval,
		"batch_size", s.config.BatchSize,
		"batch_delay", s.config.BatchDelay)

	for _, p := range entities.ScanPriorities() {
		s.wg.Add(1)
		go s.loop(runCtx, p, s.stopCh)
	}
	return nil
}

// Stop cancels in-flight runs and waits for the tier loops to exit
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.cancel()
	s.mu.Unlock()

	s.logger.Info("Stopping scan scheduler")
	s.wg.Wait()
	s.logger.Info("Scan scheduler stopped")
	return nil
}

// Shutdown stops the scheduler, giving up after timeout
func (s *Scheduler) Shutdown(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		_ = s.Stop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("scan scheduler did not stop within %s", timeout)
	}
}

func (s *Scheduler) loop(ctx context.Context, priority entities.ScanPriority, stopCh <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval(priority))
	defer ticker.Stop()

	if s.config.RunOnStart {
		s.tick(ctx, priority)
	}

	for {
		select {
		case <-ticker.C:
			s.tick(ctx, priority)
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// tick runs one tier scan and never lets a failure escape the loop
func (s *Scheduler) tick(ctx context.Context, priority entities.ScanPriority) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.ScanRuns.WithLabelValues(string(priority), "error").Inc()
			s.logger.Error("Tier scan panicked", "tier", priority, "panic", r)
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, s.config.ScanTimeout)
	defer cancel()

	result, err := s.RunTier(runCtx, priority)
	switch {
	case errors.Is(err, ErrTierBusy):
		s.logger.Warn("Previous tier scan still running, skipping tick", "tier", priority)
	case err != nil:
		s.logger.Error("Tier scan failed", "tier", priority, "error", err)
	default:
		s.logger.Info("Tier scan completed",
			"tier", priority,
			"wallets", result.Wallets,
			"batches", result.Batches,
			"deposits", result.Deposits,
			"failures", result.Failures,
			"busy_wallets", result.BusyWallets,
			"duration", result.Duration)
	}
}

// RunTier scans every wallet of priority in keyset-paginated batches. Wallets
// inside a batch are scanned concurrently and their failures are counted, not
// returned. Only a failure to page the tier aborts the run.
func (s *Scheduler) RunTier(ctx context.Context, priority entities.ScanPriority) (*TierResult, error) {
	lock, ok := s.locks[priority]
	if !ok {
		return nil, domainerrors.ValidationError("priority", fmt.Sprintf("unknown scan priority %q", priority))
	}
	if !lock.tryAcquire() {
		s.metrics.ScanRuns.WithLabelValues(string(priority), "skipped").Inc()
		return nil, ErrTierBusy
	}
	defer lock.release()

	start := time.Now()
	result := &TierResult{Tier: priority}
	defer func() {
		result.Duration = time.Since(start)
		s.metrics.ScanDuration.WithLabelValues(string(priority)).Observe(result.Duration.Seconds())
	}()

	var cursor *entities.WalletCursor
	for {
		batch, err := s.wallets.ListByPriority(ctx, priority, cursor, s.config.BatchSize)
		if err != nil {
			s.metrics.ScanRuns.WithLabelValues(string(priority), "error").Inc()
			return result, fmt.Errorf("failed to list %s wallets: %w", priority, err)
		}
		if len(batch) == 0 {
			break
		}

		result.Batches++
		s.scanBatch(ctx, priority, batch, result)

		if len(batch) < s.config.BatchSize {
			break
		}
		cursor = batch[len(batch)-1].CursorAfter()

		if err := s.pause(ctx); err != nil {
			s.metrics.ScanRuns.WithLabelValues(string(priority), "error").Inc()
			return result, err
		}
	}

	s.metrics.ScanRuns.WithLabelValues(string(priority), "ok").Inc()
	return result, nil
}

func (s *Scheduler) scanBatch(ctx context.Context, priority entities.ScanPriority, batch []*entities.ManagedWallet, result *TierResult) {
	results := make([]*reconciliation.WalletResult, len(batch))

	var wg sync.WaitGroup
	for i, wallet := range batch {
		wg.Add(1)
		go func(i int, wallet *entities.ManagedWallet) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[i] = &reconciliation.WalletResult{
						WalletID: wallet.ID,
						Err:      fmt.Errorf("wallet scan panicked: %v", r),
					}
				}
			}()
			results[i] = s.scanner.ScanWallet(ctx, wallet)
		}(i, wallet)
	}
	wg.Wait()

	tier := string(priority)
	for _, wr := range results {
		result.Wallets++
		result.Deposits += wr.Deposits
		result.Failures += wr.Failures

		switch {
		case wr.Skipped:
			result.BusyWallets++
			s.metrics.WalletsScanned.WithLabelValues(tier, "skipped").Inc()
		case wr.Err != nil:
			result.Failures++
			s.metrics.WalletsScanned.WithLabelValues(tier, "error").Inc()
			s.logger.Warn("Wallet scan failed", "tier", tier, "wallet_id", wr.WalletID, "error", wr.Err)
		default:
			s.metrics.WalletsScanned.WithLabelValues(tier, "ok").Inc()
		}
	}
}

func (s *Scheduler) pause(ctx context.Context) error {
	if s.config.BatchDelay == 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.config.BatchDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
