//go:build ignore

// Reads one token balance through the same providers the scanner uses, to
// check RPC connectivity for a configured chain.
//
//	CHAIN_ID=solana OWNER=<address> TOKEN_ADDRESS=<mint> TOKEN_DECIMALS=6 go run scripts/probe_balance.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rail-service/deposit_monitor/internal/domain/entities"
	"github.com/rail-service/deposit_monitor/internal/infrastructure/adapters/evm"
	"github.com/rail-service/deposit_monitor/internal/infrastructure/adapters/solana"
	"github.com/rail-service/deposit_monitor/internal/infrastructure/config"
)

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	chainID := mustEnv("CHAIN_ID")
	owner := mustEnv("OWNER")
	decimals, err := strconv.Atoi(getEnv("TOKEN_DECIMALS", "6"))
	if err != nil {
		log.Fatalf("Invalid TOKEN_DECIMALS: %v", err)
	}
	token := &entities.SupportedToken{
		ChainID:  chainID,
		Symbol:   getEnv("TOKEN_SYMBOL", "TOKEN"),
		Address:  mustEnv("TOKEN_ADDRESS"),
		Decimals: int32(decimals),
		IsActive: true,
	}

	var chain *entities.Chain
	for i := range cfg.Chains {
		if cfg.Chains[i].ID == chainID {
			chain = &cfg.Chains[i]
			break
		}
	}
	if chain == nil {
		log.Fatalf("Chain %q is not configured", chainID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	switch chain.Family {
	case entities.ChainFamilySolana:
		balance, err := solana.NewProvider(solana.DefaultConfig(), logger).GetTokenBalance(ctx, chain, owner, token)
		report(chain, token, balance.String(), err, time.Since(start))
	case entities.ChainFamilyEVM:
		provider := evm.NewProvider(evm.DefaultConfig(), logger)
		defer provider.Close()
		balance, err := provider.GetTokenBalance(ctx, chain, owner, token)
		report(chain, token, balance.String(), err, time.Since(start))
	default:
		log.Fatalf("Unsupported chain family %q", chain.Family)
	}
}

func report(chain *entities.Chain, token *entities.SupportedToken, balance string, err error, took time.Duration) {
	if err != nil {
		log.Fatalf("Balance read on %s failed after %s: %v", chain.Name, took, err)
	}
	fmt.Printf("%s %s balance: %s (%s)\n", chain.Name, token.Symbol, balance, took)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("%s environment variable is required", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
