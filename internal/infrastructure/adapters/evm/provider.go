package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/rail-service/deposit_monitor/internal/domain/entities"
)

const erc20BalanceOfABI = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"}]`

var erc20ABI = mustParseABI(erc20BalanceOfABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid ERC20 ABI: %v", err))
	}
	return parsed
}

// ContractCaller executes read-only contract calls. *ethclient.Client implements it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Dialer opens a ContractCaller for an RPC endpoint
type Dialer func(ctx context.Context, rpcURL string) (ContractCaller, error)

// Config holds EVM provider configuration
type Config struct {
	DialTimeout     time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// DefaultConfig returns the default EVM provider configuration
func DefaultConfig() Config {
	return Config{
		DialTimeout:     10 * time.Second,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

type chainClient struct {
	caller  ContractCaller
	breaker *gobreaker.CircuitBreaker
}

// chainSlot serialises dialling of one chain without blocking the others
type chainSlot struct {
	mu sync.Mutex
	cc *chainClient
}

// Provider reads ERC20 balances with balanceOf. Clients are dialled lazily,
// one per chain, each behind its own circuit breaker.
type Provider struct {
	config Config
	logger *zap.Logger
	dial   Dialer

	mu      sync.Mutex
	clients map[string]*chainSlot
}

// NewProvider creates an EVM balance provider
func NewProvider(config Config, logger *zap.Logger) *Provider {
	def := DefaultConfig()
	if config.DialTimeout == 0 {
		config.DialTimeout = def.DialTimeout
	}
	if config.BreakerFailures == 0 {
		config.BreakerFailures = def.BreakerFailures
	}
	if config.BreakerTimeout == 0 {
		config.BreakerTimeout = def.BreakerTimeout
	}

	return &Provider{
		config: config,
		logger: logger,
		dial: func(ctx context.Context, rpcURL string) (ContractCaller, error) {
			return ethclient.DialContext(ctx, rpcURL)
		},
		clients: make(map[string]*chainSlot),
	}
}

// Family implements scanner.BalanceProvider
func (p *Provider) Family() entities.ChainFamily {
	return entities.ChainFamilyEVM
}

// GetTokenBalance calls balanceOf(owner) on the token contract and scales the
// result by the token decimals
func (p *Provider) GetTokenBalance(ctx context.Context, chain *entities.Chain, owner string, token *entities.SupportedToken) (decimal.Decimal, error) {
	if !common.IsHexAddress(owner) {
		return decimal.Zero, fmt.Errorf("invalid EVM owner address %q", owner)
	}
	if !common.IsHexAddress(token.Address) {
		return decimal.Zero, fmt.Errorf("invalid token contract address %q for %s", token.Address, token.Symbol)
	}

	cc, err := p.client(ctx, chain)
	if err != nil {
		return decimal.Zero, err
	}

	out, err := cc.breaker.Execute(func() (interface{}, error) {
		return balanceOf(ctx, cc.caller, common.HexToAddress(token.Address), common.HexToAddress(owner))
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("balanceOf %s on chain %s failed: %w", token.Symbol, chain.ID, err)
	}

	return decimal.NewFromBigInt(out.(*big.Int), -token.Decimals), nil
}

func balanceOf(ctx context.Context, caller ContractCaller, contract, owner common.Address) (*big.Int, error) {
	data, err := erc20ABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("error packing data for balanceOf: %w", err)
	}

	result, err := caller.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, err
	}

	values, err := erc20ABI.Unpack("balanceOf", result)
	if err != nil {
		return nil, fmt.Errorf("error unpacking balanceOf result: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected balanceOf output count %d", len(values))
	}
	bal, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf output type %T", values[0])
	}
	return bal, nil
}

func (p *Provider) slot(chainID string) *chainSlot {
	p.mu.Lock()
	defer p.mu.Unlock()

	slot, ok := p.clients[chainID]
	if !ok {
		slot = &chainSlot{}
		p.clients[chainID] = slot
	}
	return slot
}

func (p *Provider) client(ctx context.Context, chain *entities.Chain) (*chainClient, error) {
	slot := p.slot(chain.ID)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.cc != nil {
		return slot.cc, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, p.config.DialTimeout)
	defer cancel()

	caller, err := p.dial(dialCtx, chain.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain %s: %w", chain.ID, err)
	}

	failures := p.config.BreakerFailures
	cc := &chainClient{
		caller: caller,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "evm-rpc-" + chain.ID,
			MaxRequests: 1,
			Timeout:     p.config.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				p.logger.Warn("EVM RPC circuit breaker state changed",
					zap.String("name", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		}),
	}
	slot.cc = cc

	p.logger.Info("Connected to EVM chain",
		zap.String("chain_id", chain.ID),
		zap.String("chain", chain.Name))
	return cc, nil
}

// Close releases every dialled client
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, slot := range p.clients {
		slot.mu.Lock()
		if slot.cc != nil {
			if closer, ok := slot.cc.caller.(interface{ Close() }); ok {
				closer.Close()
			}
		}
		slot.mu.Unlock()
		delete(p.clients, id)
	}
}
