package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rail-service/deposit_monitor/internal/domain/entities"
)

// WalletRepository reads managed wallets and maintains their scan priority
type WalletRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entities.ManagedWallet, error)
	ListByPriority(ctx context.Context, priority entities.ScanPriority, after *entities.WalletCursor, limit int) ([]*entities.ManagedWallet, error)
	DowngradeInactive(ctx context.Context, from, to entities.ScanPriority, inactiveSince time.Time) (int64, error)
}

// TokenRepository reads the supported token whitelist
type TokenRepository interface {
	ListActive(ctx context.Context) ([]*entities.SupportedToken, error)
	GetByAddress(ctx context.Context, chainID, address string) (*entities.SupportedToken, error)
}

// BalanceRepository stores the last known balance snapshots. GetLatest returns
// nil, nil when no snapshot exists yet.
type BalanceRepository interface {
	GetLatest(ctx context.Context, walletID uuid.UUID, chainID, tokenAddress string) (*entities.WalletBalance, error)
	Upsert(ctx context.Context, balance *entities.WalletBalance) error
}

// DepositLedger records deposits together with the balance write and the
// wallet promotion in one transaction
type DepositLedger interface {
	RecordDeposit(ctx context.Context, deposit *entities.Deposit, balance *entities.WalletBalance) error
	MarkWebhookSent(ctx context.Context, depositID uuid.UUID, sentAt time.Time) error
	ListUnsent(ctx context.Context, detectedAfter, detectedBefore time.Time, limit int) ([]*entities.Deposit, error)
}

// WebhookRepository persists webhook subscribers and their failure accounting
type WebhookRepository interface {
	Upsert(ctx context.Context, url, encryptedSecret string) (*entities.Webhook, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Webhook, error)
	ListActive(ctx context.Context) ([]*entities.Webhook, error)
	List(ctx context.Context) ([]*entities.Webhook, error)
	RecordSuccess(ctx context.Context, id uuid.UUID) error
	RecordFailure(ctx context.Context, id uuid.UUID, failedAt time.Time) (int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
