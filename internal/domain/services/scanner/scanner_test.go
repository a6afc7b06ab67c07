package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rail-service/deposit_monitor/internal/domain/entities"
	domainerrors "github.com/rail-service/deposit_monitor/internal/domain/errors"
	"github.com/rail-service/deposit_monitor/internal/domain/services/rpcgateway"
	"github.com/rail-service/deposit_monitor/pkg/logger"
	"github.com/rail-service/deposit_monitor/pkg/metrics"
)

type fakeProvider struct {
	family  entities.ChainFamily
	balance decimal.Decimal
	err     error
	owners  []string
}

func (f *fakeProvider) Family() entities.ChainFamily { return f.family }

func (f *fakeProvider) GetTokenBalance(ctx context.Context, chain *entities.Chain, owner string, token *entities.SupportedToken) (decimal.Decimal, error) {
	f.owners = append(f.owners, owner)
	return f.balance, f.err
}

func newTestScanner(t *testing.T, providers ...BalanceProvider) (*Scanner, *metrics.Metrics) {
	t.Helper()
	log := logger.NewLogger(zap.NewNop())
	m := metrics.NewNop()
	gw := rpcgateway.New(rpcgateway.Config{MaxRequestsPerWindow: 100, Window: time.Second}, m, log)
	t.Cleanup(func() { _ = gw.Shutdown(time.Second) })
	return NewScanner(gw, m, log, providers...), m
}

func testWallet(family entities.ChainFamily, address string) *entities.ManagedWallet {
	return &entities.ManagedWallet{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		ChainFamily: family,
		Address:     address,
	}
}

func TestScanner_ReadBalanceRoutesByFamily(t *testing.T) {
	sol := &fakeProvider{family: entities.ChainFamilySolana, balance: decimal.RequireFromString("12.5")}
	evm := &fakeProvider{family: entities.ChainFamilyEVM, balance: decimal.RequireFromString("3")}
	s, m := newTestScanner(t, sol, evm)

	chain := &entities.Chain{ID: "solana", Name: "Solana", Family: entities.ChainFamilySolana}
	token := &entities.SupportedToken{ChainID: "solana", Symbol: "USDC", Decimals: 6}

	got, err := s.ReadBalance(context.Background(), testWallet(entities.ChainFamilySolana, "owner-1"), chain, token)
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, []string{"owner-1"}, sol.owners)
	assert.Empty(t, evm.owners)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BalanceReads.WithLabelValues("solana", "ok")))
}

func TestScanner_ReadBalanceFamilyMismatch(t *testing.T) {
	s, _ := newTestScanner(t, &fakeProvider{family: entities.ChainFamilyEVM})

	chain := &entities.Chain{ID: "1", Family: entities.ChainFamilyEVM}
	_, err := s.ReadBalance(context.Background(), testWallet(entities.ChainFamilySolana, "x"), chain, &entities.SupportedToken{})

	assert.ErrorIs(t, err, domainerrors.ErrUnsupportedChain)
}

func TestScanner_ReadBalanceNoProvider(t *testing.T) {
	s, _ := newTestScanner(t)

	assert.False(t, s.Supports(entities.ChainFamilySolana))
	chain := &entities.Chain{ID: "solana", Family: entities.ChainFamilySolana}
	_, err := s.ReadBalance(context.Background(), testWallet(entities.ChainFamilySolana, "x"), chain, &entities.SupportedToken{})

	assert.ErrorIs(t, err, domainerrors.ErrUnsupportedChain)
}

func TestScanner_ReadBalanceProviderError(t *testing.T) {
	cause := errors.New("connection reset")
	s, m := newTestScanner(t, &fakeProvider{family: entities.ChainFamilyEVM, err: cause})

	chain := &entities.Chain{ID: "137", Family: entities.ChainFamilyEVM}
	_, err := s.ReadBalance(context.Background(), testWallet(entities.ChainFamilyEVM, "0xabc"), chain, &entities.SupportedToken{Symbol: "USDT"})

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BalanceReads.WithLabelValues("137", "error")))
}
