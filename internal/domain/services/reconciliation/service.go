package reconciliation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rail-service/deposit_monitor/internal/domain/entities"
	"github.com/rail-service/deposit_monitor/internal/domain/errors"
	"github.com/rail-service/deposit_monitor/internal/domain/repositories"
	"github.com/rail-service/deposit_monitor/pkg/logger"
	"github.com/rail-service/deposit_monitor/pkg/metrics"
	"github.com/rail-service/deposit_monitor/pkg/security"
)

const tracerName = "reconciliation.service"

// BalanceReader reads the current on-chain balance of a token
type BalanceReader interface {
	ReadBalance(ctx context.Context, wallet *entities.ManagedWallet, chain *entities.Chain, token *entities.SupportedToken) (decimal.Decimal, error)
}

// Notifier accepts deposit events for asynchronous delivery. Submit must not
// block; it returns false when the event could not be queued.
type Notifier interface {
	Submit(event *entities.DepositEvent) bool
}

// WalletLocker serialises scans of the same wallet across tiers
type WalletLocker interface {
	TryLock(ctx context.Context, key string) (release func(), acquired bool, err error)
}

// Config holds reconciler configuration
type Config struct {
	Chains []entities.Chain
	// TokenRefreshInterval controls how long the active token list is cached
	TokenRefreshInterval time.Duration
}

// TokenResult is the outcome of reconciling one (wallet, chain, token)
type TokenResult struct {
	ChainID     string
	TokenSymbol string
	Decision    Decision
	Deposit     *entities.Deposit
	Err         error
}

// WalletResult aggregates the token results of one wallet scan
type WalletResult struct {
	WalletID uuid.UUID
	Skipped  bool
	Tokens   []*TokenResult
	Deposits int
	Failures int
	Err      error
}

// Service compares fresh balance reads against stored snapshots and records deposits
type Service struct {
	wallets  repositories.WalletRepository
	tokens   repositories.TokenRepository
	balances repositories.BalanceRepository
	ledger   repositories.DepositLedger

	reader   BalanceReader
	notifier Notifier
	locker   WalletLocker

	chains  map[string]*entities.Chain
	config  Config
	metrics *metrics.Metrics
	logger  *logger.Logger
	now     func() time.Time

	tokenMu       sync.Mutex
	tokenCache    []*entities.SupportedToken
	tokenLoadedAt time.Time
}

// NewService creates a new reconciliation service
func NewService(
	wallets repositories.WalletRepository,
	tokens repositories.TokenRepository,
	balances repositories.BalanceRepository,
	ledger repositories.DepositLedger,
	reader BalanceReader,
	notifier Notifier,
	locker WalletLocker,
	m *metrics.Metrics,
	log *logger.Logger,
	config Config,
) *Service {
	if config.TokenRefreshInterval == 0 {
		config.TokenRefreshInterval = time.Minute
	}
	if m == nil {
		m = metrics.NewNop()
	}

	chains := make(map[string]*entities.Chain, len(config.Chains))
	for i := range config.Chains {
		c := config.Chains[i]
		chains[c.ID] = &c
	}

	return &Service{
		wallets:  wallets,
		tokens:   tokens,
		balances: balances,
		ledger:   ledger,
		reader:   reader,
		notifier: notifier,
		locker:   locker,
		chains:   chains,
		config:   config,
		metrics:  m,
		logger:   log,
		now:      time.Now,
	}
}

// Chain returns the configured chain with id
func (s *Service) Chain(id string) (*entities.Chain, bool) {
	c, ok := s.chains[id]
	return c, ok
}

// ReconcileToken reads one balance and applies the deposit rule to it
func (s *Service) ReconcileToken(ctx context.Context, wallet *entities.ManagedWallet, chain *entities.Chain, token *entities.SupportedToken) (*TokenResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "ReconcileToken")
	defer span.End()

	span.SetAttributes(
		attribute.String("wallet_id", wallet.ID.String()),
		attribute.String("chain_id", chain.ID),
		attribute.String("token", token.Symbol),
	)

	result := &TokenResult{ChainID: chain.ID, TokenSymbol: token.Symbol}

	current, err := s.reader.ReadBalance(ctx, wallet, chain, token)
	if err != nil {
		span.RecordError(err)
		return result, err
	}

	stored, err := s.balances.GetLatest(ctx, wallet.ID, chain.ID, token.Address)
	if err != nil {
		span.RecordError(err)
		return result, fmt.Errorf("failed to load stored balance: %w", err)
	}

	previous := decimal.Zero
	if stored != nil {
		previous = stored.Balance
	}

	decision := Evaluate(previous, current, stored != nil)
	result.Decision = decision
	span.SetAttributes(attribute.String("outcome", string(decision.Outcome)))

	now := s.now().UTC()
	snapshot := &entities.WalletBalance{
		WalletID:      wallet.ID,
		ChainID:       chain.ID,
		TokenAddress:  token.Address,
		TokenSymbol:   token.Symbol,
		Balance:       current,
		LastUpdatedAt: now,
	}

	switch decision.Outcome {
	case OutcomeDeposit:
		deposit, err := entities.NewDeposit(wallet, chain, token, previous, current, now)
		if err != nil {
			return result, err
		}
		if err := s.ledger.RecordDeposit(ctx, deposit, snapshot); err != nil {
			span.RecordError(err)
			return result, fmt.Errorf("failed to record deposit: %w", err)
		}
		result.Deposit = deposit
		s.metrics.DepositsDetected.WithLabelValues(chain.ID, token.Symbol).Inc()

		s.logger.Info("Deposit detected",
			"deposit_id", deposit.ID,
			"wallet_id", wallet.ID,
			"chain_id", chain.ID,
			"token", token.Symbol,
			"amount", deposit.Amount.String(),
			"previous_balance", previous.String(),
			"new_balance", current.String(),
		)

		event := &entities.DepositEvent{Deposit: deposit, Wallet: wallet, Chain: chain, Token: token}
		if s.notifier != nil && !s.notifier.Submit(event) {
			s.logger.Warn("Notification queue full, deposit left for outbox sweeper",
				"deposit_id", deposit.ID)
		}

	case OutcomeSuppressedZero:
		s.metrics.FalseZeroSuppressed.Inc()
		s.logger.Warn("Ignoring zero balance read for wallet with positive stored balance",
			"wallet_id", wallet.ID,
			"chain_id", chain.ID,
			"token", token.Symbol,
			"stored_balance", previous.String(),
		)

	default:
		if err := s.balances.Upsert(ctx, snapshot); err != nil {
			span.RecordError(err)
			return result, fmt.Errorf("failed to update balance: %w", err)
		}
	}

	return result, nil
}

// ScanWallet reconciles every active token on every chain of the wallet's
// family. Token checks run concurrently and one failure never stops the
// others. A wallet already being scanned elsewhere is skipped.
func (s *Service) ScanWallet(ctx context.Context, wallet *entities.ManagedWallet) *WalletResult {
	result := &WalletResult{WalletID: wallet.ID}

	if s.locker != nil {
		release, acquired, err := s.locker.TryLock(ctx, walletLockKey(wallet.ID))
		if err != nil {
			result.Err = fmt.Errorf("failed to acquire wallet lock: %w", err)
			return result
		}
		if !acquired {
			result.Skipped = true
			result.Err = errors.ErrWalletBusy
			s.logger.Debug("Wallet scan already in progress, skipping", "wallet_id", wallet.ID)
			return result
		}
		defer release()
	}

	pairs, err := s.pairsFor(ctx, wallet.ChainFamily)
	if err != nil {
		result.Err = err
		return result
	}

	result.Tokens = make([]*TokenResult, len(pairs))
	var wg sync.WaitGroup
	for i, p := range pairs {
		wg.Add(1)
		go func(i int, p pair) {
			defer wg.Done()
			result.Tokens[i] = s.reconcileSafely(ctx, wallet, p.chain, p.token)
		}(i, p)
	}
	wg.Wait()

	for _, tr := range result.Tokens {
		switch {
		case tr.Err != nil:
			result.Failures++
		case tr.Deposit != nil:
			result.Deposits++
		}
	}

	return result
}

// ScanWalletByID loads a wallet and scans it
func (s *Service) ScanWalletByID(ctx context.Context, id uuid.UUID) (*WalletResult, error) {
	wallet, err := s.wallets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.ScanWallet(ctx, wallet), nil
}

func (s *Service) reconcileSafely(ctx context.Context, wallet *entities.ManagedWallet, chain *entities.Chain, token *entities.SupportedToken) (tr *TokenResult) {
	defer func() {
		if r := recover(); r != nil {
			tr = &TokenResult{ChainID: chain.ID, TokenSymbol: token.Symbol, Err: fmt.Errorf("reconcile panicked: %v", r)}
			s.logger.Error("Token reconciliation panicked",
				"wallet_id", wallet.ID, "chain_id", chain.ID, "token", token.Symbol, "panic", r)
		}
	}()

	tr, err := s.ReconcileToken(ctx, wallet, chain, token)
	if err != nil {
		tr.Err = err
		s.logger.Warn("Token reconciliation failed",
			"wallet_id", wallet.ID,
			"address", security.MaskAddress(wallet.Address),
			"chain_id", chain.ID,
			"token", token.Symbol,
			"error", err,
		)
	}
	return tr
}

type pair struct {
	chain *entities.Chain
	token *entities.SupportedToken
}

func (s *Service) pairsFor(ctx context.Context, family entities.ChainFamily) ([]pair, error) {
	tokens, err := s.activeTokens(ctx)
	if err != nil {
		return nil, err
	}

	pairs := make([]pair, 0, len(tokens))
	for _, t := range tokens {
		chain, ok := s.chains[t.ChainID]
		if !ok || chain.Family != family {
			continue
		}
		pairs = append(pairs, pair{chain: chain, token: t})
	}
	return pairs, nil
}

func (s *Service) activeTokens(ctx context.Context) ([]*entities.SupportedToken, error) {
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()

	if s.tokenCache != nil && s.now().Sub(s.tokenLoadedAt) < s.config.TokenRefreshInterval {
		return s.tokenCache, nil
	}

	tokens, err := s.tokens.ListActive(ctx)
	if err != nil {
		if s.tokenCache != nil {
			s.logger.Warn("Failed to refresh supported tokens, using cached list", "error", err)
			return s.tokenCache, nil
		}
		return nil, fmt.Errorf("failed to load supported tokens: %w", err)
	}

	s.tokenCache = tokens
	s.tokenLoadedAt = s.now()
	return tokens, nil
}

// InvalidateTokens forces the next scan to reload the token whitelist. The
// stale list is still served if that reload fails.
func (s *Service) InvalidateTokens() {
	s.tokenMu.Lock()
	s.tokenLoadedAt = time.Time{}
	s.tokenMu.Unlock()
}

func walletLockKey(id uuid.UUID) string {
	return "wallet-scan:" + id.String()
}
