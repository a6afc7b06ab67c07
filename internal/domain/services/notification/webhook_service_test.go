package notification

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rail-service/deposit_monitor/internal/domain/entities"
	domainerrors "github.com/rail-service/deposit_monitor/internal/domain/errors"
	"github.com/rail-service/deposit_monitor/pkg/logger"
)

func newTestWebhookService(t *testing.T) (*WebhookService, *memoryWebhookRepo) {
	t.Helper()
	repo := newMemoryWebhookRepo()
	return NewWebhookService(repo, testCipher(t), logger.NewLogger(zap.NewNop())), repo
}

func TestRegister_StoresEncryptedSecret(t *testing.T) {
	svc, repo := newTestWebhookService(t)

	resp, err := svc.Register(context.Background(), &entities.RegisterWebhookRequest{
		URL:    "https://merchant.example.com/hooks",
		Secret: "merchant-secret",
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Secret, "caller supplied secret is not echoed")
	assert.True(t, resp.IsActive)

	stored, err := repo.GetByID(context.Background(), resp.WebhookID)
	require.NoError(t, err)
	assert.NotEqual(t, "merchant-secret", stored.EncryptedSecret)

	plain, err := testCipher(t).DecryptString(stored.EncryptedSecret)
	require.NoError(t, err)
	assert.Equal(t, "merchant-secret", plain)
}

func TestRegister_GeneratesSecretWhenMissing(t *testing.T) {
	svc, repo := newTestWebhookService(t)

	resp, err := svc.Register(context.Background(), &entities.RegisterWebhookRequest{URL: "https://a.example.com/h"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Secret)

	stored, err := repo.GetByID(context.Background(), resp.WebhookID)
	require.NoError(t, err)
	plain, err := testCipher(t).DecryptString(stored.EncryptedSecret)
	require.NoError(t, err)
	assert.Equal(t, resp.Secret, plain)
}

func TestRegister_SameURLIsIdempotent(t *testing.T) {
	svc, repo := newTestWebhookService(t)
	ctx := context.Background()
	req := func() *entities.RegisterWebhookRequest {
		return &entities.RegisterWebhookRequest{URL: "https://b.example.com/h", Secret: "one"}
	}

	first, err := svc.Register(ctx, req())
	require.NoError(t, err)
	_, err = repo.RecordFailure(ctx, first.WebhookID, first.CreatedAt)
	require.NoError(t, err)

	second, err := svc.Register(ctx, &entities.RegisterWebhookRequest{URL: " https://b.example.com/h ", Secret: "two"})
	require.NoError(t, err)

	assert.Equal(t, first.WebhookID, second.WebhookID)
	assert.Equal(t, 0, second.ConsecutiveFailures)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	stored, err := repo.GetByID(ctx, first.WebhookID)
	require.NoError(t, err)
	plain, err := testCipher(t).DecryptString(stored.EncryptedSecret)
	require.NoError(t, err)
	assert.Equal(t, "two", plain)
}

func TestRegister_RejectsInvalidURL(t *testing.T) {
	svc, _ := newTestWebhookService(t)

	tests := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"not a url", "not a url"},
		{"unsupported scheme", "ftp://files.example.com/drop"},
		{"relative", "/webhooks"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), &entities.RegisterWebhookRequest{URL: tt.url})
			require.Error(t, err)
			assert.True(t, domainerrors.IsInvalidInput(err))
		})
	}
}

func TestDelete(t *testing.T) {
	svc, _ := newTestWebhookService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, &entities.RegisterWebhookRequest{URL: "https://c.example.com/h"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, resp.WebhookID))

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	err = svc.Delete(ctx, uuid.New())
	assert.True(t, domainerrors.IsNotFound(err))
}
