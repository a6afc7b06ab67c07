package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/rail-service/deposit_monitor/internal/domain/entities"
	domainerrors "github.com/rail-service/deposit_monitor/internal/domain/errors"
)

const walletColumns = `id, user_id, chain_family, address, scan_priority, last_activity_at, created_at`

// WalletRepository reads managed wallets owned by the custody layer
type WalletRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(db *sqlx.DB, logger *zap.Logger) *WalletRepository {
	return &WalletRepository{db: db, logger: logger}
}

// GetByID retrieves a wallet by ID
func (r *WalletRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.ManagedWallet, error) {
	query := `SELECT ` + walletColumns + ` FROM managed_wallets WHERE id = $1`

	var wallet entities.ManagedWallet
	if err := r.db.GetContext(ctx, &wallet, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainerrors.NotFoundError("wallet")
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &wallet, nil
}

// ListByPriority returns the next page of a tier ordered by
// last_activity_at DESC, id DESC, starting after the cursor
func (r *WalletRepository) ListByPriority(ctx context.Context, priority entities.ScanPriority, after *entities.WalletCursor, limit int) ([]*entities.ManagedWallet, error) {
	var (
		wallets []*entities.ManagedWallet
		err     error
	)

	if after == nil {
		query := `
			SELECT ` + walletColumns + `
			FROM managed_wallets
			WHERE scan_priority = $1
			ORDER BY last_activity_at DESC, id DESC
			LIMIT $2`
		err = r.db.SelectContext(ctx, &wallets, query, priority, limit)
	} else {
		query := `
			SELECT ` + walletColumns + `
			FROM managed_wallets
			WHERE scan_priority = $1
			  AND (last_activity_at, id) < ($2, $3)
			ORDER BY last_activity_at DESC, id DESC
			LIMIT $4`
		err = r.db.SelectContext(ctx, &wallets, query, priority, after.LastActivityAt, after.ID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s wallets: %w", priority, err)
	}
	return wallets, nil
}

// DowngradeInactive moves wallets of one tier whose last activity is older
// than inactiveSince to another tier
func (r *WalletRepository) DowngradeInactive(ctx context.Context, from, to entities.ScanPriority, inactiveSince time.Time) (int64, error) {
	query := `
		UPDATE managed_wallets
		SET scan_priority = $2
		WHERE scan_priority = $1 AND last_activity_at < $3`

	res, err := r.db.ExecContext(ctx, query, from, to, inactiveSince)
	if err != nil {
		return 0, fmt.Errorf("failed to downgrade wallets: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n > 0 {
		r.logger.Debug("Downgraded inactive wallets",
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.Int64("count", n))
	}
	return n, nil
}
