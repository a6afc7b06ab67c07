package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Deposit is an append-only record of a detected balance increase
type Deposit struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	WalletID        uuid.UUID       `json:"wallet_id" db:"wallet_id"`
	UserID          uuid.UUID       `json:"user_id" db:"user_id"`
	ChainID         string          `json:"chain_id" db:"chain_id"`
	TokenSymbol     string          `json:"token_symbol" db:"token_symbol"`
	TokenAddress    string          `json:"token_address" db:"token_address"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	PreviousBalance decimal.Decimal `json:"previous_balance" db:"previous_balance"`
	NewBalance      decimal.Decimal `json:"new_balance" db:"new_balance"`
	TxHash          *string         `json:"tx_hash,omitempty" db:"tx_hash"`
	DetectedAt      time.Time       `json:"detected_at" db:"detected_at"`
	WebhookSent     bool            `json:"webhook_sent" db:"webhook_sent"`
	WebhookSentAt   *time.Time      `json:"webhook_sent_at,omitempty" db:"webhook_sent_at"`
}

// NewDeposit builds a deposit for an increase from previous to current
func NewDeposit(wallet *ManagedWallet, chain *Chain, token *SupportedToken, previous, current decimal.Decimal, detectedAt time.Time) (*Deposit, error) {
	if !current.GreaterThan(previous) {
		return nil, fmt.Errorf("balance did not increase: previous=%s current=%s", previous, current)
	}
	return &Deposit{
		ID:              uuid.New(),
		WalletID:        wallet.ID,
		UserID:          wallet.UserID,
		ChainID:         chain.ID,
		TokenSymbol:     token.Symbol,
		TokenAddress:    token.Address,
		Amount:          current.Sub(previous),
		PreviousBalance: previous,
		NewBalance:      current,
		DetectedAt:      detectedAt,
	}, nil
}

// Validate checks the ledger invariant amount = new - previous > 0
func (d *Deposit) Validate() error {
	if !d.Amount.IsPositive() {
		return fmt.Errorf("deposit amount must be positive, got %s", d.Amount)
	}
	if !d.NewBalance.Sub(d.PreviousBalance).Equal(d.Amount) {
		return fmt.Errorf("deposit amount %s does not match %s - %s", d.Amount, d.NewBalance, d.PreviousBalance)
	}
	return nil
}

// DepositEvent carries everything needed to notify subscribers about a deposit
type DepositEvent struct {
	Deposit *Deposit
	Wallet  *ManagedWallet
	Chain   *Chain
	Token   *SupportedToken
}
