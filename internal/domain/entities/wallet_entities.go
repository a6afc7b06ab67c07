package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChainFamily groups chains that share an address format and balance API
type ChainFamily string

const (
	ChainFamilySolana ChainFamily = "SOLANA"
	ChainFamilyEVM    ChainFamily = "EVM"
)

// IsValid checks if the chain family is supported
func (f ChainFamily) IsValid() bool {
	return f == ChainFamilySolana || f == ChainFamilyEVM
}

// ParseChainFamily normalizes a configured family name
func ParseChainFamily(s string) (ChainFamily, error) {
	f := ChainFamily(strings.ToUpper(strings.TrimSpace(s)))
	if !f.IsValid() {
		return "", fmt.Errorf("unsupported chain family: %q", s)
	}
	return f, nil
}

// ScanPriority controls how often a wallet is polled
type ScanPriority string

const (
	ScanPriorityHigh   ScanPriority = "HIGH"
	ScanPriorityMedium ScanPriority = "MEDIUM"
	ScanPriorityLow    ScanPriority = "LOW"
)

// ScanPriorities lists the tiers from most to least frequent
func ScanPriorities() []ScanPriority {
	return []ScanPriority{ScanPriorityHigh, ScanPriorityMedium, ScanPriorityLow}
}

// IsValid checks if the priority is a known tier
func (p ScanPriority) IsValid() bool {
	return p == ScanPriorityHigh || p == ScanPriorityMedium || p == ScanPriorityLow
}

// Chain is one configured network the scanner reads balances from
type Chain struct {
	ID     string      `json:"chain_id" mapstructure:"id"`
	Name   string      `json:"chain" mapstructure:"name"`
	Family ChainFamily `json:"family" mapstructure:"family"`
	RPCURL string      `json:"-" mapstructure:"rpc_url"`
}

// ManagedWallet is a custodial deposit address. The custody layer owns the row;
// the scanner only reads it and updates ScanPriority and LastActivityAt.
type ManagedWallet struct {
	ID                  uuid.UUID    `json:"id" db:"id"`
	UserID              uuid.UUID    `json:"user_id" db:"user_id"`
	ChainFamily         ChainFamily  `json:"chain_family" db:"chain_family"`
	Address             string       `json:"address" db:"address"`
	EncryptedPrivateKey string       `json:"-" db:"encrypted_private_key"`
	ScanPriority        ScanPriority `json:"scan_priority" db:"scan_priority"`
	LastActivityAt      time.Time    `json:"last_activity_at" db:"last_activity_at"`
	CreatedAt           time.Time    `json:"created_at" db:"created_at"`
}

// WalletCursor marks a position in a priority tier ordered by
// last_activity_at DESC, id DESC
type WalletCursor struct {
	LastActivityAt time.Time
	ID             uuid.UUID
}

// CursorAfter returns the cursor that continues after w
func (w *ManagedWallet) CursorAfter() *WalletCursor {
	return &WalletCursor{LastActivityAt: w.LastActivityAt, ID: w.ID}
}
