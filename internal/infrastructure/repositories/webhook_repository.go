package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/rail-service/deposit_monitor/internal/domain/entities"
	domainerrors "github.com/rail-service/deposit_monitor/internal/domain/errors"
)

const webhookColumns = `id, url, encrypted_secret, is_active, consecutive_failures, last_failure_at, created_at, updated_at`

// WebhookRepository persists webhook subscribers
type WebhookRepository struct {
	db *sqlx.DB
}

// NewWebhookRepository creates a new webhook repository
func NewWebhookRepository(db *sqlx.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

// Upsert registers url, or reactivates it with a fresh secret and a zero
// failure count when it already exists
func (r *WebhookRepository) Upsert(ctx context.Context, url, encryptedSecret string) (*entities.Webhook, error) {
	query := `
		INSERT INTO webhooks (id, url, encrypted_secret, is_active, consecutive_failures, created_at, updated_at)
		VALUES ($1, $2, $3, true, 0, $4, $4)
		ON CONFLICT (url) DO UPDATE SET
			encrypted_secret = EXCLUDED.encrypted_secret,
			is_active = true,
			consecutive_failures = 0,
			last_failure_at = NULL,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + webhookColumns

	var hook entities.Webhook
	now := time.Now().UTC()
	if err := r.db.GetContext(ctx, &hook, query, uuid.New(), url, encryptedSecret, now); err != nil {
		return nil, fmt.Errorf("failed to upsert webhook: %w", err)
	}
	return &hook, nil
}

// GetByID retrieves a webhook by ID
func (r *WebhookRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE id = $1`

	var hook entities.Webhook
	if err := r.db.GetContext(ctx, &hook, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainerrors.NotFoundError("webhook")
		}
		return nil, fmt.Errorf("failed to get webhook: %w", err)
	}
	return &hook, nil
}

// ListActive returns the subscribers that receive deliveries
func (r *WebhookRepository) ListActive(ctx context.Context) ([]*entities.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE is_active ORDER BY created_at`

	var hooks []*entities.Webhook
	if err := r.db.SelectContext(ctx, &hooks, query); err != nil {
		return nil, fmt.Errorf("failed to list active webhooks: %w", err)
	}
	return hooks, nil
}

// List returns every subscriber
func (r *WebhookRepository) List(ctx context.Context) ([]*entities.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks ORDER BY created_at`

	var hooks []*entities.Webhook
	if err := r.db.SelectContext(ctx, &hooks, query); err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	return hooks, nil
}

// RecordSuccess resets the failure counter
func (r *WebhookRepository) RecordSuccess(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE webhooks SET consecutive_failures = 0, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to reset webhook failures: %w", err)
	}
	return nil
}

// RecordFailure increments the failure counter and returns the new value
func (r *WebhookRepository) RecordFailure(ctx context.Context, id uuid.UUID, failedAt time.Time) (int, error) {
	query := `
		UPDATE webhooks
		SET consecutive_failures = consecutive_failures + 1, last_failure_at = $2, updated_at = $2
		WHERE id = $1
		RETURNING consecutive_failures`

	var failures int
	if err := r.db.GetContext(ctx, &failures, query, id, failedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domainerrors.NotFoundError("webhook")
		}
		return 0, fmt.Errorf("failed to record webhook failure: %w", err)
	}
	return failures, nil
}

// Delete removes a webhook
func (r *WebhookRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM webhooks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domainerrors.NotFoundError("webhook")
	}
	return nil
}
