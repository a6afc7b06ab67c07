package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rail-service/deposit_monitor/internal/domain/entities"
)

// BuildPayload maps a deposit event to the webhook body for one subscriber
func BuildPayload(webhookID uuid.UUID, event *entities.DepositEvent, now time.Time) *entities.WebhookPayload {
	d := event.Deposit

	return &entities.WebhookPayload{
		Event:     entities.WebhookEventDeposit,
		WebhookID: webhookID,
		Timestamp: now.UTC(),
		Data: entities.DepositEventData{
			DepositID:     d.ID,
			UserID:        d.UserID,
			WalletID:      d.WalletID,
			WalletAddress: event.Wallet.Address,
			Chain:         event.Chain.Name,
			ChainID:       event.Chain.ID,
			Token: entities.WebhookTokenInfo{
				Symbol:   event.Token.Symbol,
				Address:  event.Token.Address,
				Name:     event.Token.Name,
				Decimals: event.Token.Decimals,
				Icon:     event.Token.IconURL,
			},
			Amount:          d.Amount.String(),
			PreviousBalance: d.PreviousBalance.String(),
			NewBalance:      d.NewBalance.String(),
			TxHash:          d.TxHash,
			DetectedAt:      d.DetectedAt.UTC(),
		},
	}
}

// FormatDepositAlert renders the admin channel message for a deposit
func FormatDepositAlert(event *entities.DepositEvent) string {
	d := event.Deposit

	var b strings.Builder
	b.WriteString("New deposit detected\n\n")
	fmt.Fprintf(&b, "Amount: %s %s\n", d.Amount.String(), event.Token.Symbol)
	fmt.Fprintf(&b, "Chain: %s (%s)\n", event.Chain.Name, event.Chain.ID)
	fmt.Fprintf(&b, "Wallet: %s\n", event.Wallet.Address)
	fmt.Fprintf(&b, "User: %s\n", d.UserID)
	fmt.Fprintf(&b, "Balance: %s -> %s\n", d.PreviousBalance.String(), d.NewBalance.String())
	fmt.Fprintf(&b, "Deposit ID: %s\n", d.ID)
	fmt.Fprintf(&b, "Detected: %s", d.DetectedAt.UTC().Format(time.RFC3339))
	return b.String()
}
