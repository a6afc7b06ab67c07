package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/rail-service/deposit_monitor/internal/domain/entities"
)

const upsertBalanceQuery = `
	INSERT INTO wallet_balances (wallet_id, chain_id, token_address, token_symbol, balance, last_updated_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (wallet_id, chain_id, token_address) DO UPDATE SET
		token_symbol = EXCLUDED.token_symbol,
		balance = EXCLUDED.balance,
		last_updated_at = EXCLUDED.last_updated_at`

// BalanceRepository stores the last known balance per wallet and token
type BalanceRepository struct {
	db *sqlx.DB
}

// NewBalanceRepository creates a new balance repository
func NewBalanceRepository(db *sqlx.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// GetLatest returns the stored snapshot, or nil when none exists
func (r *BalanceRepository) GetLatest(ctx context.Context, walletID uuid.UUID, chainID, tokenAddress string) (*entities.WalletBalance, error) {
	query := `
		SELECT wallet_id, chain_id, token_address, token_symbol, balance, last_updated_at
		FROM wallet_balances
		WHERE wallet_id = $1 AND chain_id = $2 AND token_address = $3`

	var balance entities.WalletBalance
	if err := r.db.GetContext(ctx, &balance, query, walletID, chainID, tokenAddress); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get wallet balance: %w", err)
	}
	return &balance, nil
}

// Upsert writes the snapshot
func (r *BalanceRepository) Upsert(ctx context.Context, balance *entities.WalletBalance) error {
	return upsertBalance(ctx, r.db, balance)
}

func upsertBalance(ctx context.Context, exec sqlx.ExecerContext, b *entities.WalletBalance) error {
	_, err := exec.ExecContext(ctx, upsertBalanceQuery,
		b.WalletID, b.ChainID, b.TokenAddress, b.TokenSymbol, b.Balance, b.LastUpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert wallet balance: %w", err)
	}
	return nil
}
