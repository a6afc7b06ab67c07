package repositories_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rail-service/deposit_monitor/internal/domain/entities"
	domainerrors "github.com/rail-service/deposit_monitor/internal/domain/errors"
	"github.com/rail-service/deposit_monitor/internal/infrastructure/config"
	"github.com/rail-service/deposit_monitor/internal/infrastructure/database"
	"github.com/rail-service/deposit_monitor/internal/infrastructure/repositories"
)

// getEnvOrSkip returns environment variable value or skips the test if not found
func getEnvOrSkip(t *testing.T, key string) string {
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("Environment variable %s is required for integration tests", key)
	}
	return value
}

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	url := getEnvOrSkip(t, "TEST_DATABASE_URL")

	db, err := database.NewConnection(config.DatabaseConfig{URL: url})
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(db.DB, "file://../../../migrations"))

	t.Cleanup(func() { db.Close() })
	return db
}

func insertWallet(t *testing.T, db *sqlx.DB, priority entities.ScanPriority, lastActivity time.Time) *entities.ManagedWallet {
	t.Helper()
	w := &entities.ManagedWallet{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		ChainFamily:    entities.ChainFamilySolana,
		Address:        fmt.Sprintf("test-%s", uuid.NewString()),
		ScanPriority:   priority,
		LastActivityAt: lastActivity.UTC().Truncate(time.Microsecond),
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
	_, err := db.Exec(`
		INSERT INTO managed_wallets (id, user_id, chain_family, address, scan_priority, last_activity_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		w.ID, w.UserID, w.ChainFamily, w.Address, w.ScanPriority, w.LastActivityAt, w.CreatedAt)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Exec(`DELETE FROM deposits WHERE wallet_id = $1`, w.ID)
		db.Exec(`DELETE FROM managed_wallets WHERE id = $1`, w.ID)
	})
	return w
}

func TestDepositRepository_RecordDepositPromotesWallet(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	wallet := insertWallet(t, db, entities.ScanPriorityLow, time.Now().Add(-48*time.Hour))
	ledger := repositories.NewDepositRepository(db, zap.NewNop())
	balances := repositories.NewBalanceRepository(db)
	wallets := repositories.NewWalletRepository(db, zap.NewNop())

	detectedAt := time.Now().UTC().Truncate(time.Microsecond)
	deposit := &entities.Deposit{
		ID:              uuid.New(),
		WalletID:        wallet.ID,
		UserID:          wallet.UserID,
		ChainID:         "solana",
		TokenSymbol:     "USDC",
		TokenAddress:    "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		Amount:          decimal.RequireFromString("2.5"),
		PreviousBalance: decimal.RequireFromString("10"),
		NewBalance:      decimal.RequireFromString("12.5"),
		DetectedAt:      detectedAt,
	}
	balance := &entities.WalletBalance{
		WalletID:      wallet.ID,
		ChainID:       "solana",
		TokenAddress:  deposit.TokenAddress,
		TokenSymbol:   "USDC",
		Balance:       deposit.NewBalance,
		LastUpdatedAt: detectedAt,
	}

	require.NoError(t, ledger.RecordDeposit(ctx, deposit, balance))

	stored, err := balances.GetLatest(ctx, wallet.ID, "solana", deposit.TokenAddress)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Balance.Equal(deposit.NewBalance))

	promoted, err := wallets.GetByID(ctx, wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.ScanPriorityHigh, promoted.ScanPriority)
	assert.True(t, promoted.LastActivityAt.Equal(detectedAt))

	unsent, err := ledger.ListUnsent(ctx, detectedAt.Add(-time.Minute), detectedAt.Add(time.Minute), 100)
	require.NoError(t, err)
	assert.Contains(t, depositIDs(unsent), deposit.ID)

	require.NoError(t, ledger.MarkWebhookSent(ctx, deposit.ID, time.Now()))
	unsent, err = ledger.ListUnsent(ctx, detectedAt.Add(-time.Minute), detectedAt.Add(time.Minute), 100)
	require.NoError(t, err)
	assert.NotContains(t, depositIDs(unsent), deposit.ID)

	assert.True(t, domainerrors.IsNotFound(ledger.MarkWebhookSent(ctx, uuid.New(), time.Now())))
}

func TestDepositRepository_RejectsNonIncreasingDeposit(t *testing.T) {
	db := openTestDB(t)
	wallet := insertWallet(t, db, entities.ScanPriorityLow, time.Now())
	ledger := repositories.NewDepositRepository(db, zap.NewNop())

	err := ledger.RecordDeposit(context.Background(), &entities.Deposit{
		ID:              uuid.New(),
		WalletID:        wallet.ID,
		UserID:          wallet.UserID,
		ChainID:         "solana",
		TokenSymbol:     "USDC",
		TokenAddress:    "mint",
		Amount:          decimal.Zero,
		PreviousBalance: decimal.NewFromInt(5),
		NewBalance:      decimal.NewFromInt(5),
		DetectedAt:      time.Now(),
	}, &entities.WalletBalance{WalletID: wallet.ID, ChainID: "solana", TokenAddress: "mint", Balance: decimal.NewFromInt(5)})
	require.Error(t, err)

	promoted, err := repositories.NewWalletRepository(db, zap.NewNop()).GetByID(context.Background(), wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.ScanPriorityLow, promoted.ScanPriority)
}

func TestWalletRepository_KeysetPagingAndDowngrade(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := repositories.NewWalletRepository(db, zap.NewNop())

	// Far in the future so these rows lead the MEDIUM tier regardless of other data.
	base := time.Now().Add(100 * 365 * 24 * time.Hour)
	var created []*entities.ManagedWallet
	for i := 0; i < 5; i++ {
		created = append(created, insertWallet(t, db, entities.ScanPriorityMedium, base.Add(-time.Duration(i)*time.Minute)))
	}

	first, err := repo.ListByPriority(ctx, entities.ScanPriorityMedium, nil, 3)
	require.NoError(t, err)
	require.Len(t, first, 3)
	for i := range first {
		assert.Equal(t, created[i].ID, first[i].ID)
	}

	second, err := repo.ListByPriority(ctx, entities.ScanPriorityMedium, first[2].CursorAfter(), 2)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, created[3].ID, second[0].ID)
	assert.Equal(t, created[4].ID, second[1].ID)

	stale := insertWallet(t, db, entities.ScanPriorityHigh, time.Now().Add(-2*time.Hour))
	n, err := repo.DowngradeInactive(ctx, entities.ScanPriorityHigh, entities.ScanPriorityMedium, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))

	got, err := repo.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.ScanPriorityMedium, got.ScanPriority)
}

func TestWebhookRepository_Lifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := repositories.NewWebhookRepository(db)

	url := fmt.Sprintf("https://%s.example.com/hook", uuid.NewString())
	hook, err := repo.Upsert(ctx, url, "enc-1")
	require.NoError(t, err)
	t.Cleanup(func() { db.Exec(`DELETE FROM webhooks WHERE url = $1`, url) })

	failures, err := repo.RecordFailure(ctx, hook.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, failures)
	failures, err = repo.RecordFailure(ctx, hook.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, failures)

	again, err := repo.Upsert(ctx, url, "enc-2")
	require.NoError(t, err)
	assert.Equal(t, hook.ID, again.ID)
	assert.Equal(t, 0, again.ConsecutiveFailures)
	assert.Equal(t, "enc-2", again.EncryptedSecret)

	require.NoError(t, repo.Delete(ctx, hook.ID))
	_, err = repo.GetByID(ctx, hook.ID)
	assert.True(t, domainerrors.IsNotFound(err))
	assert.True(t, domainerrors.IsNotFound(repo.Delete(ctx, hook.ID)))
}

func depositIDs(deposits []*entities.Deposit) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(deposits))
	for _, d := range deposits {
		ids = append(ids, d.ID)
	}
	return ids
}
