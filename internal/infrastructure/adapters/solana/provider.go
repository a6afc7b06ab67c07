package solana

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	bin "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"
	spltoken "github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/rail-service/deposit_monitor/internal/domain/entities"
	"github.com/rail-service/deposit_monitor/pkg/security"
)

// JSON-RPC "invalid params" is what nodes answer for unknown or malformed accounts
const codeInvalidParams = -32602

// RPCClient is the subset of the solana-go RPC client the provider needs
type RPCClient interface {
	GetTokenAccountsByOwner(ctx context.Context, owner solanago.PublicKey, conf *rpc.GetTokenAccountsConfig, opts *rpc.GetTokenAccountsOpts) (*rpc.GetTokenAccountsResult, error)
}

// Config holds Solana provider configuration
type Config struct {
	Commitment rpc.CommitmentType
	// BreakerFailures is the number of consecutive failures that opens a chain's breaker
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// DefaultConfig returns confirmed commitment and a breaker that opens after 5 failures
func DefaultConfig() Config {
	return Config{
		Commitment:      rpc.CommitmentConfirmed,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

type chainClient struct {
	rpc     RPCClient
	breaker *gobreaker.CircuitBreaker
}

// Provider reads SPL token balances. One RPC client and circuit breaker is
// kept per configured Solana chain.
type Provider struct {
	config    Config
	logger    *zap.Logger
	newClient func(endpoint string) RPCClient

	mu      sync.Mutex
	clients map[string]*chainClient
}

// NewProvider creates a Solana balance provider
func NewProvider(config Config, logger *zap.Logger) *Provider {
	def := DefaultConfig()
	if config.Commitment == "" {
		config.Commitment = def.Commitment
	}
	if config.BreakerFailures == 0 {
		config.BreakerFailures = def.BreakerFailures
	}
	if config.BreakerTimeout == 0 {
		config.BreakerTimeout = def.BreakerTimeout
	}

	return &Provider{
		config:    config,
		logger:    logger,
		newClient: func(endpoint string) RPCClient { return rpc.New(endpoint) },
		clients:   make(map[string]*chainClient),
	}
}

// Family implements scanner.BalanceProvider
func (p *Provider) Family() entities.ChainFamily {
	return entities.ChainFamilySolana
}

// GetTokenBalance returns the owner's balance of the token mint summed over all
// of its token accounts. A malformed owner or mint address and an owner with
// no token account both read as zero.
func (p *Provider) GetTokenBalance(ctx context.Context, chain *entities.Chain, owner string, token *entities.SupportedToken) (decimal.Decimal, error) {
	ownerKey, err := solanago.PublicKeyFromBase58(owner)
	if err != nil {
		p.logger.Warn("Malformed Solana owner address, treating balance as zero",
			zap.String("owner", security.MaskAddress(owner)),
			zap.Error(err))
		return decimal.Zero, nil
	}
	mintKey, err := solanago.PublicKeyFromBase58(token.Address)
	if err != nil {
		p.logger.Warn("Malformed Solana mint address, treating balance as zero",
			zap.String("mint", token.Address),
			zap.String("symbol", token.Symbol),
			zap.Error(err))
		return decimal.Zero, nil
	}

	cc := p.client(chain)
	out, err := cc.breaker.Execute(func() (interface{}, error) {
		return p.readBalance(ctx, cc.rpc, ownerKey, mintKey, token.Decimals)
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("solana balance query failed: %w", err)
	}
	return out.(decimal.Decimal), nil
}

// readBalance sums the raw amounts of the owner's token accounts for the mint.
// Amounts are decoded from the account data returned by the single
// getTokenAccountsByOwner call.
func (p *Provider) readBalance(ctx context.Context, client RPCClient, owner, mint solanago.PublicKey, decimals int32) (decimal.Decimal, error) {
	accounts, err := client.GetTokenAccountsByOwner(ctx, owner,
		&rpc.GetTokenAccountsConfig{Mint: mint.ToPointer()},
		&rpc.GetTokenAccountsOpts{Commitment: p.config.Commitment, Encoding: solanago.EncodingBase64},
	)
	if err != nil {
		if isAccountNotFound(err) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	if accounts == nil || len(accounts.Value) == 0 {
		return decimal.Zero, nil
	}

	raw := decimal.Zero
	for _, acc := range accounts.Value {
		if acc == nil || acc.Account.Data == nil {
			continue
		}

		var state spltoken.Account
		if err := bin.NewBinDecoder(acc.Account.Data.GetBinary()).Decode(&state); err != nil {
			return decimal.Zero, fmt.Errorf("decode token account %s: %w", acc.Pubkey, err)
		}
		if !state.Mint.Equals(mint) {
			continue
		}
		raw = raw.Add(decimal.NewFromBigInt(new(big.Int).SetUint64(state.Amount), 0))
	}

	return raw.Shift(-decimals), nil
}

func (p *Provider) client(chain *entities.Chain) *chainClient {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cc, ok := p.clients[chain.ID]; ok {
		return cc
	}

	failures := p.config.BreakerFailures
	cc := &chainClient{
		rpc: p.newClient(chain.RPCURL),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "solana-rpc-" + chain.ID,
			MaxRequests: 1,
			Timeout:     p.config.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				p.logger.Warn("Solana RPC circuit breaker state changed",
					zap.String("name", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		}),
	}
	p.clients[chain.ID] = cc
	return cc
}

func isAccountNotFound(err error) bool {
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) && rpcErr.Code == codeInvalidParams {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "could not find account") || strings.Contains(msg, "invalid param")
}
