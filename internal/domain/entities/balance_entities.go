package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletBalance is the last known balance of one (wallet, chain, token)
type WalletBalance struct {
	WalletID      uuid.UUID       `json:"wallet_id" db:"wallet_id"`
	ChainID       string          `json:"chain_id" db:"chain_id"`
	TokenAddress  string          `json:"token_address" db:"token_address"`
	TokenSymbol   string          `json:"token_symbol" db:"token_symbol"`
	Balance       decimal.Decimal `json:"balance" db:"balance"`
	LastUpdatedAt time.Time       `json:"last_updated_at" db:"last_updated_at"`
}
