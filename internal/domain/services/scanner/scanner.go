package scanner

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rail-service/deposit_monitor/internal/domain/entities"
	"github.com/rail-service/deposit_monitor/internal/domain/errors"
	"github.com/rail-service/deposit_monitor/internal/domain/services/rpcgateway"
	"github.com/rail-service/deposit_monitor/pkg/logger"
	"github.com/rail-service/deposit_monitor/pkg/metrics"
)

// BalanceProvider reads token balances for one chain family. Balances are
// returned in whole token units, already scaled by the token decimals.
type BalanceProvider interface {
	Family() entities.ChainFamily
	GetTokenBalance(ctx context.Context, chain *entities.Chain, owner string, token *entities.SupportedToken) (decimal.Decimal, error)
}

// Scanner routes balance reads to the provider of the wallet's chain family.
// Every read goes through the shared RPC gateway.
type Scanner struct {
	gateway   *rpcgateway.Gateway
	providers map[entities.ChainFamily]BalanceProvider
	metrics   *metrics.Metrics
	logger    *logger.Logger
	tracer    trace.Tracer
}

// NewScanner creates a scanner over the given providers
func NewScanner(gateway *rpcgateway.Gateway, m *metrics.Metrics, log *logger.Logger, providers ...BalanceProvider) *Scanner {
	if m == nil {
		m = metrics.NewNop()
	}

	byFamily := make(map[entities.ChainFamily]BalanceProvider, len(providers))
	for _, p := range providers {
		byFamily[p.Family()] = p
	}

	return &Scanner{
		gateway:   gateway,
		providers: byFamily,
		metrics:   m,
		logger:    log,
		tracer:    otel.Tracer("deposit_monitor/scanner"),
	}
}

// Supports reports whether a provider is registered for family
func (s *Scanner) Supports(family entities.ChainFamily) bool {
	_, ok := s.providers[family]
	return ok
}

// ReadBalance returns the current on-chain balance of token held by wallet on chain
func (s *Scanner) ReadBalance(ctx context.Context, wallet *entities.ManagedWallet, chain *entities.Chain, token *entities.SupportedToken) (decimal.Decimal, error) {
	if wallet.ChainFamily != chain.Family {
		return decimal.Zero, fmt.Errorf("%w: wallet family %s cannot be read on chain %s",
			errors.ErrUnsupportedChain, wallet.ChainFamily, chain.ID)
	}

	provider, ok := s.providers[chain.Family]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no balance provider for %s", errors.ErrUnsupportedChain, chain.Family)
	}

	ctx, span := s.tracer.Start(ctx, "scanner.ReadBalance", trace.WithAttributes(
		attribute.String("wallet.id", wallet.ID.String()),
		attribute.String("chain.id", chain.ID),
		attribute.String("token.symbol", token.Symbol),
	))
	defer span.End()

	balance, err := rpcgateway.Do(ctx, s.gateway, func(ctx context.Context) (decimal.Decimal, error) {
		return provider.GetTokenBalance(ctx, chain, wallet.Address, token)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "balance read failed")
		s.metrics.BalanceReads.WithLabelValues(chain.ID, "error").Inc()
		return decimal.Zero, fmt.Errorf("failed to read %s balance on chain %s: %w", token.Symbol, chain.ID, err)
	}

	s.metrics.BalanceReads.WithLabelValues(chain.ID, "ok").Inc()
	return balance, nil
}
