package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/rail-service/deposit_monitor/internal/domain/entities"
	domainerrors "github.com/rail-service/deposit_monitor/internal/domain/errors"
)

const tokenColumns = `chain_id, symbol, address, name, decimals, COALESCE(icon_url, '') AS icon_url, is_active`

// TokenRepository reads the supported token whitelist
type TokenRepository struct {
	db *sqlx.DB
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db *sqlx.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// ListActive returns every active token on every chain
func (r *TokenRepository) ListActive(ctx context.Context) ([]*entities.SupportedToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM supported_tokens WHERE is_active ORDER BY chain_id, symbol`

	var tokens []*entities.SupportedToken
	if err := r.db.SelectContext(ctx, &tokens, query); err != nil {
		return nil, fmt.Errorf("failed to list supported tokens: %w", err)
	}
	return tokens, nil
}

// GetByAddress returns a token by chain and contract address, active or not
func (r *TokenRepository) GetByAddress(ctx context.Context, chainID, address string) (*entities.SupportedToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM supported_tokens WHERE chain_id = $1 AND lower(address) = lower($2)`

	var token entities.SupportedToken
	if err := r.db.GetContext(ctx, &token, query, chainID, address); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainerrors.NotFoundError("token")
		}
		return nil, fmt.Errorf("failed to get supported token: %w", err)
	}
	return &token, nil
}
