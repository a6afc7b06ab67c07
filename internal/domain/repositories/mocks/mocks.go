// Package mocks provides testify mocks of the repository interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/rail-service/deposit_monitor/internal/domain/entities"
	"github.com/rail-service/deposit_monitor/internal/domain/repositories"
)

var (
	_ repositories.WalletRepository  = (*WalletRepository)(nil)
	_ repositories.TokenRepository   = (*TokenRepository)(nil)
	_ repositories.BalanceRepository = (*BalanceRepository)(nil)
	_ repositories.DepositLedger     = (*DepositLedger)(nil)
	_ repositories.WebhookRepository = (*WebhookRepository)(nil)
)

type WalletRepository struct {
	mock.Mock
}

func (m *WalletRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.ManagedWallet, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ManagedWallet), args.Error(1)
}

func (m *WalletRepository) ListByPriority(ctx context.Context, priority entities.ScanPriority, after *entities.WalletCursor, limit int) ([]*entities.ManagedWallet, error) {
	args := m.Called(ctx, priority, after, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.ManagedWallet), args.Error(1)
}

func (m *WalletRepository) DowngradeInactive(ctx context.Context, from, to entities.ScanPriority, inactiveSince time.Time) (int64, error) {
	args := m.Called(ctx, from, to, inactiveSince)
	return args.Get(0).(int64), args.Error(1)
}

type TokenRepository struct {
	mock.Mock
}

func (m *TokenRepository) ListActive(ctx context.Context) ([]*entities.SupportedToken, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.SupportedToken), args.Error(1)
}

func (m *TokenRepository) GetByAddress(ctx context.Context, chainID, address string) (*entities.SupportedToken, error) {
	args := m.Called(ctx, chainID, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.SupportedToken), args.Error(1)
}

type BalanceRepository struct {
	mock.Mock
}

func (m *BalanceRepository) GetLatest(ctx context.Context, walletID uuid.UUID, chainID, tokenAddress string) (*entities.WalletBalance, error) {
	args := m.Called(ctx, walletID, chainID, tokenAddress)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.WalletBalance), args.Error(1)
}

func (m *BalanceRepository) Upsert(ctx context.Context, balance *entities.WalletBalance) error {
	args := m.Called(ctx, balance)
	return args.Error(0)
}

type DepositLedger struct {
	mock.Mock
}

func (m *DepositLedger) RecordDeposit(ctx context.Context, deposit *entities.Deposit, balance *entities.WalletBalance) error {
	args := m.Called(ctx, deposit, balance)
	return args.Error(0)
}

func (m *DepositLedger) MarkWebhookSent(ctx context.Context, depositID uuid.UUID, sentAt time.Time) error {
	args := m.Called(ctx, depositID, sentAt)
	return args.Error(0)
}

func (m *DepositLedger) ListUnsent(ctx context.Context, detectedAfter, detectedBefore time.Time, limit int) ([]*entities.Deposit, error) {
	args := m.Called(ctx, detectedAfter, detectedBefore, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Deposit), args.Error(1)
}

type WebhookRepository struct {
	mock.Mock
}

func (m *WebhookRepository) Upsert(ctx context.Context, url, encryptedSecret string) (*entities.Webhook, error) {
	args := m.Called(ctx, url, encryptedSecret)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Webhook), args.Error(1)
}

func (m *WebhookRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Webhook, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Webhook), args.Error(1)
}

func (m *WebhookRepository) ListActive(ctx context.Context) ([]*entities.Webhook, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Webhook), args.Error(1)
}

func (m *WebhookRepository) List(ctx context.Context) ([]*entities.Webhook, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Webhook), args.Error(1)
}

func (m *WebhookRepository) RecordSuccess(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *WebhookRepository) RecordFailure(ctx context.Context, id uuid.UUID, failedAt time.Time) (int, error) {
	args := m.Called(ctx, id, failedAt)
	return args.Int(0), args.Error(1)
}

func (m *WebhookRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
