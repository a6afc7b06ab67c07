package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/rail-service/deposit_monitor/internal/domain/entities"
	domainerrors "github.com/rail-service/deposit_monitor/internal/domain/errors"
	"github.com/rail-service/deposit_monitor/internal/infrastructure/database"
)

const depositColumns = `id, wallet_id, user_id, chain_id, token_symbol, token_address, amount,
	previous_balance, new_balance, tx_hash, detected_at, webhook_sent, webhook_sent_at`

// DepositRepository is the deposit ledger
type DepositRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewDepositRepository creates a new deposit repository
func NewDepositRepository(db *sqlx.DB, logger *zap.Logger) *DepositRepository {
	return &DepositRepository{db: db, logger: logger}
}

// RecordDeposit writes the new balance, appends the deposit and promotes the
// wallet to HIGH priority in a single transaction
func (r *DepositRepository) RecordDeposit(ctx context.Context, deposit *entities.Deposit, balance *entities.WalletBalance) error {
	if err := deposit.Validate(); err != nil {
		return domainerrors.ValidationError("amount", err.Error())
	}

	err := database.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := upsertBalance(ctx, tx, balance); err != nil {
			return err
		}

		insert := `
			INSERT INTO deposits (` + depositColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, false, NULL)`
		if _, err := tx.ExecContext(ctx, insert,
			deposit.ID, deposit.WalletID, deposit.UserID, deposit.ChainID,
			deposit.TokenSymbol, deposit.TokenAddress, deposit.Amount,
			deposit.PreviousBalance, deposit.NewBalance, deposit.TxHash, deposit.DetectedAt,
		); err != nil {
			return fmt.Errorf("failed to insert deposit: %w", err)
		}

		promote := `
			UPDATE managed_wallets
			SET scan_priority = $2, last_activity_at = $3
			WHERE id = $1`
		if _, err := tx.ExecContext(ctx, promote, deposit.WalletID, entities.ScanPriorityHigh, deposit.DetectedAt); err != nil {
			return fmt.Errorf("failed to promote wallet: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record deposit: %w", err)
	}

	r.logger.Debug("Deposit recorded",
		zap.String("deposit_id", deposit.ID.String()),
		zap.String("wallet_id", deposit.WalletID.String()),
		zap.String("amount", deposit.Amount.String()))
	return nil
}

// MarkWebhookSent flags the deposit as notified
func (r *DepositRepository) MarkWebhookSent(ctx context.Context, depositID uuid.UUID, sentAt time.Time) error {
	query := `UPDATE deposits SET webhook_sent = true, webhook_sent_at = $2 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, depositID, sentAt)
	if err != nil {
		return fmt.Errorf("failed to mark deposit notified: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domainerrors.NotFoundError("deposit")
	}
	return nil
}

// ListUnsent returns deposits not yet notified, detected inside the window,
// oldest first
func (r *DepositRepository) ListUnsent(ctx context.Context, detectedAfter, detectedBefore time.Time, limit int) ([]*entities.Deposit, error) {
	query := `
		SELECT ` + depositColumns + `
		FROM deposits
		WHERE webhook_sent = false AND detected_at >= $1 AND detected_at <= $2
		ORDER BY detected_at ASC
		LIMIT $3`

	var deposits []*entities.Deposit
	if err := r.db.SelectContext(ctx, &deposits, query, detectedAfter, detectedBefore, limit); err != nil {
		return nil, fmt.Errorf("failed to list unsent deposits: %w", err)
	}
	return deposits, nil
}
