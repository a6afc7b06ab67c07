package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rail-service/deposit_monitor/internal/domain/entities"
	domainerrors "github.com/rail-service/deposit_monitor/internal/domain/errors"
)

// memoryWebhookRepo is an in-memory WebhookRepository with the same
// upsert-by-url semantics as the SQL repository
type memoryWebhookRepo struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]*entities.Webhook
	byURL map[string]uuid.UUID
}

func newMemoryWebhookRepo() *memoryWebhookRepo {
	return &memoryWebhookRepo{
		byID:  make(map[uuid.UUID]*entities.Webhook),
		byURL: make(map[string]uuid.UUID),
	}
}

func (r *memoryWebhookRepo) Upsert(ctx context.Context, url, encryptedSecret string) (*entities.Webhook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if id, ok := r.byURL[url]; ok {
		h := r.byID[id]
		h.EncryptedSecret = encryptedSecret
		h.IsActive = true
		h.ConsecutiveFailures = 0
		h.LastFailureAt = nil
		h.UpdatedAt = now
		cp := *h
		return &cp, nil
	}

	h := &entities.Webhook{
		ID:              uuid.New(),
		URL:             url,
		EncryptedSecret: encryptedSecret,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	r.byID[h.ID] = h
	r.byURL[url] = h.ID
	cp := *h
	return &cp, nil
}

func (r *memoryWebhookRepo) GetByID(ctx context.Context, id uuid.UUID) (*entities.Webhook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.byID[id]
	if !ok {
		return nil, domainerrors.NotFoundError("webhook")
	}
	cp := *h
	return &cp, nil
}

func (r *memoryWebhookRepo) ListActive(ctx context.Context) ([]*entities.Webhook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.Webhook
	for _, h := range r.byID {
		if h.IsActive {
			cp := *h
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memoryWebhookRepo) List(ctx context.Context) ([]*entities.Webhook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entities.Webhook, 0, len(r.byID))
	for _, h := range r.byID {
		cp := *h
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memoryWebhookRepo) RecordSuccess(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.byID[id]; ok {
		h.ConsecutiveFailures = 0
	}
	return nil
}

func (r *memoryWebhookRepo) RecordFailure(ctx context.Context, id uuid.UUID, failedAt time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.byID[id]
	if !ok {
		return 0, domainerrors.NotFoundError("webhook")
	}
	h.ConsecutiveFailures++
	h.LastFailureAt = &failedAt
	return h.ConsecutiveFailures, nil
}

func (r *memoryWebhookRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.byID[id]; ok {
		delete(r.byURL, h.URL)
		delete(r.byID, id)
	}
	return nil
}

type recordingAdmin struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (a *recordingAdmin) Send(ctx context.Context, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = append(a.messages, message)
	return a.err
}

func (a *recordingAdmin) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.messages)
}

func sampleEvent() *entities.DepositEvent {
	wallet := &entities.ManagedWallet{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		ChainFamily: entities.ChainFamilySolana,
		Address:     "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM",
	}
	chain := &entities.Chain{ID: "solana", Name: "Solana", Family: entities.ChainFamilySolana}
	token := &entities.SupportedToken{
		ChainID:  "solana",
		Symbol:   "USDC",
		Name:     "USD Coin",
		Address:  "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		Decimals: 6,
		IconURL:  "https://example.com/usdc.png",
	}
	deposit, err := entities.NewDeposit(wallet, chain, token, decimal.Zero, decimal.NewFromInt(100), time.Now().UTC())
	if err != nil {
		panic(err)
	}
	return &entities.DepositEvent{Deposit: deposit, Wallet: wallet, Chain: chain, Token: token}
}
