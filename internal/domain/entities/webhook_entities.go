package entities

import (
	"time"

	"github.com/google/uuid"
)

// WebhookEventDeposit is the only event type emitted today
const WebhookEventDeposit = "deposit"

// Webhook is an external subscriber for deposit notifications
type Webhook struct {
	ID                  uuid.UUID  `json:"webhook_id" db:"id"`
	URL                 string     `json:"url" db:"url"`
	EncryptedSecret     string     `json:"-" db:"encrypted_secret"`
	IsActive            bool       `json:"is_active" db:"is_active"`
	ConsecutiveFailures int        `json:"consecutive_failures" db:"consecutive_failures"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty" db:"last_failure_at"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at" db:"updated_at"`
}

// RegisterWebhookRequest is the registration input
type RegisterWebhookRequest struct {
	URL    string `json:"url" binding:"required" validate:"required,url,max=2048"`
	Secret string `json:"secret" validate:"omitempty,max=256"`
}

// WebhookResponse is returned by the registration API
type WebhookResponse struct {
	WebhookID           uuid.UUID `json:"webhook_id"`
	URL                 string    `json:"url"`
	IsActive            bool      `json:"is_active"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	CreatedAt           time.Time `json:"created_at"`
	Secret              string    `json:"secret,omitempty"`
}

// WebhookPayload is the signed body POSTed to subscribers
type WebhookPayload struct {
	Event     string           `json:"event"`
	WebhookID uuid.UUID        `json:"webhook_id"`
	Timestamp time.Time        `json:"timestamp"`
	Data      DepositEventData `json:"data"`
	Signature string           `json:"signature,omitempty"`
}

// DepositEventData is the data block of a deposit notification
type DepositEventData struct {
	DepositID       uuid.UUID        `json:"deposit_id"`
	UserID          uuid.UUID        `json:"user_id"`
	WalletID        uuid.UUID        `json:"wallet_id"`
	WalletAddress   string           `json:"wallet_address"`
	Chain           string           `json:"chain"`
	ChainID         string           `json:"chain_id"`
	Token           WebhookTokenInfo `json:"token"`
	Amount          string           `json:"amount"`
	PreviousBalance string           `json:"previous_balance"`
	NewBalance      string           `json:"new_balance"`
	TxHash          *string          `json:"tx_hash"`
	DetectedAt      time.Time        `json:"detected_at"`
}

// WebhookTokenInfo describes the deposited token
type WebhookTokenInfo struct {
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Name     string `json:"name"`
	Decimals int32  `json:"decimals"`
	Icon     string `json:"icon"`
}
