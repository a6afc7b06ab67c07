package notification

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/rail-service/deposit_monitor/internal/domain/entities"
	"github.com/rail-service/deposit_monitor/internal/domain/errors"
	"github.com/rail-service/deposit_monitor/internal/domain/repositories"
	"github.com/rail-service/deposit_monitor/pkg/crypto"
	"github.com/rail-service/deposit_monitor/pkg/logger"
	"github.com/rail-service/deposit_monitor/pkg/security"
)

// SecretCipher encrypts webhook secrets at rest
type SecretCipher interface {
	EncryptString(plaintext string) (string, error)
	DecryptString(ciphertext string) (string, error)
}

// WebhookService manages webhook subscribers
type WebhookService struct {
	repo      repositories.WebhookRepository
	cipher    SecretCipher
	validator *validator.Validate
	logger    *logger.Logger
}

// NewWebhookService creates a new webhook service
func NewWebhookService(repo repositories.WebhookRepository, cipher SecretCipher, log *logger.Logger) *WebhookService {
	return &WebhookService{
		repo:      repo,
		cipher:    cipher,
		validator: validator.New(),
		logger:    log,
	}
}

// Register creates or reactivates the subscriber for req.URL. Registering an
// existing URL resets its failure counter and replaces its secret. When no
// secret is supplied one is generated and returned once in the response.
func (s *WebhookService) Register(ctx context.Context, req *entities.RegisterWebhookRequest) (*entities.WebhookResponse, error) {
	req.URL = strings.TrimSpace(req.URL)
	if err := s.validator.Struct(req); err != nil {
		return nil, errors.ValidationError("url", fmt.Sprintf("invalid webhook registration: %v", err))
	}
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.ValidationError("url", "webhook url must be an absolute http or https url")
	}

	secret := req.Secret
	generated := false
	if secret == "" {
		secret, err = crypto.GenerateSecureToken()
		if err != nil {
			return nil, fmt.Errorf("failed to generate webhook secret: %w", err)
		}
		generated = true
	}

	encrypted, err := s.cipher.EncryptString(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt webhook secret: %w", err)
	}

	hook, err := s.repo.Upsert(ctx, req.URL, encrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to register webhook: %w", err)
	}

	s.logger.Info("Webhook registered",
		"webhook_id", hook.ID,
		"url", security.MaskURL(hook.URL),
		"generated_secret", generated)

	resp := toResponse(hook)
	if generated {
		resp.Secret = secret
	}
	return resp, nil
}

// List returns every registered webhook
func (s *WebhookService) List(ctx context.Context) ([]*entities.WebhookResponse, error) {
	hooks, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}

	out := make([]*entities.WebhookResponse, 0, len(hooks))
	for _, h := range hooks {
		out = append(out, toResponse(h))
	}
	return out, nil
}

// Delete unsubscribes a webhook
func (s *WebhookService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	s.logger.Info("Webhook deleted", "webhook_id", id)
	return nil
}

func toResponse(h *entities.Webhook) *entities.WebhookResponse {
	return &entities.WebhookResponse{
		WebhookID:           h.ID,
		URL:                 h.URL,
		IsActive:            h.IsActive,
		ConsecutiveFailures: h.ConsecutiveFailures,
		CreatedAt:           h.CreatedAt,
	}
}
