package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rail-service/deposit_monitor/internal/domain/entities"
	domainerrors "github.com/rail-service/deposit_monitor/internal/domain/errors"
	"github.com/rail-service/deposit_monitor/internal/domain/services/reconciliation"
	"github.com/rail-service/deposit_monitor/internal/domain/services/rpcgateway"
	"github.com/rail-service/deposit_monitor/internal/workers/scan_scheduler"
	"github.com/rail-service/deposit_monitor/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockWebhookManager struct{ mock.Mock }

func (m *mockWebhookManager) Register(ctx context.Context, req *entities.RegisterWebhookRequest) (*entities.WebhookResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.WebhookResponse), args.Error(1)
}

func (m *mockWebhookManager) List(ctx context.Context) ([]*entities.WebhookResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.WebhookResponse), args.Error(1)
}

func (m *mockWebhookManager) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type mockWalletScanner struct{ mock.Mock }

func (m *mockWalletScanner) ScanWalletByID(ctx context.Context, id uuid.UUID) (*reconciliation.WalletResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliation.WalletResult), args.Error(1)
}

func (m *mockWalletScanner) InvalidateTokens() {
	m.Called()
}

type fakeGateway struct {
	stats rpcgateway.Stats
	reset int
}

func (f *fakeGateway) Stats() rpcgateway.Stats { return f.stats }
func (f *fakeGateway) ResetStats()             { f.reset++; f.stats = rpcgateway.Stats{MaxPerWindow: f.stats.MaxPerWindow} }

type fakeTierRunner struct {
	result *scan_scheduler.TierResult
	err    error
}

func (f *fakeTierRunner) RunTier(ctx context.Context, p entities.ScanPriority) (*scan_scheduler.TierResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	res := *f.result
	res.Tier = p
	return &res, nil
}

func testLogger() *logger.Logger {
	return logger.NewLogger(zap.NewNop())
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestWebhookHandlers_Register(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		svc := new(mockWebhookManager)
		id := uuid.New()
		svc.On("Register", mock.Anything, mock.MatchedBy(func(req *entities.RegisterWebhookRequest) bool {
			return req.URL == "https://hooks.example.com/deposits"
		})).Return(&entities.WebhookResponse{WebhookID: id, URL: "https://hooks.example.com/deposits", IsActive: true, Secret: "whsec"}, nil)

		router := gin.New()
		router.POST("/webhooks", NewWebhookHandlers(svc, testLogger()).Register)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhooks", strings.NewReader(`{"url":"https://hooks.example.com/deposits"}`))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), id.String())
		svc.AssertExpectations(t)
	})

	t.Run("malformed body", func(t *testing.T) {
		svc := new(mockWebhookManager)
		router := gin.New()
		router.POST("/webhooks", NewWebhookHandlers(svc, testLogger()).Register)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhooks", strings.NewReader(`{"url":`))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, ErrCodeInvalidRequest, decodeError(t, w).Code)
		svc.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
	})

	t.Run("duplicate url", func(t *testing.T) {
		svc := new(mockWebhookManager)
		svc.On("Register", mock.Anything, mock.Anything).
			Return(nil, &domainerrors.DomainError{Err: domainerrors.ErrConflict, Code: "CONFLICT", Message: "webhook already registered"})

		router := gin.New()
		router.POST("/webhooks", NewWebhookHandlers(svc, testLogger()).Register)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhooks", strings.NewReader(`{"url":"https://hooks.example.com/deposits"}`))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "webhook already registered", decodeError(t, w).Message)
	})
}

func TestWebhookHandlers_ListAndDelete(t *testing.T) {
	svc := new(mockWebhookManager)
	id := uuid.New()
	missing := uuid.New()
	svc.On("List", mock.Anything).Return([]*entities.WebhookResponse{{WebhookID: id, URL: "https://a.example.com", IsActive: true}}, nil)
	svc.On("Delete", mock.Anything, id).Return(nil)
	svc.On("Delete", mock.Anything, missing).Return(domainerrors.NotFoundError("webhook"))

	h := NewWebhookHandlers(svc, testLogger())
	router := gin.New()
	router.GET("/webhooks", h.List)
	router.DELETE("/webhooks/:id", h.Delete)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhooks", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Equal(t, 1, listed.Count)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/webhooks/"+id.String(), nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/webhooks/"+missing.String(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/webhooks/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrCodeInvalidID, decodeError(t, w).Code)

	svc.AssertExpectations(t)
}

func TestAdminHandlers_RPCStats(t *testing.T) {
	gw := &fakeGateway{stats: rpcgateway.Stats{QueueDepth: 3, CallsThisWindow: 7, MaxPerWindow: 10, TotalProcessed: 40, TotalErrored: 4, ErrorRate: 0.1}}
	h := NewAdminHandlers(gw, new(mockWalletScanner), &fakeTierRunner{}, testLogger())

	router := gin.New()
	router.GET("/rpc-stats", h.RPCStats)
	router.POST("/rpc-stats/reset", h.ResetRPCStats)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rpc-stats", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var stats rpcgateway.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.QueueDepth)
	assert.Equal(t, 10, stats.MaxPerWindow)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/rpc-stats/reset", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, gw.reset)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Zero(t, stats.TotalProcessed)
}

func TestAdminHandlers_ScanWallet(t *testing.T) {
	walletID := uuid.New()
	busyID := uuid.New()
	missingID := uuid.New()
	depositID := uuid.New()

	scanner := new(mockWalletScanner)
	scanner.On("ScanWalletByID", mock.Anything, walletID).Return(&reconciliation.WalletResult{
		WalletID: walletID,
		Deposits: 1,
		Failures: 1,
		Tokens: []*reconciliation.TokenResult{
			{
				ChainID:     "solana",
				TokenSymbol: "USDC",
				Decision:    reconciliation.Decision{Outcome: reconciliation.OutcomeDeposit},
				Deposit:     &entities.Deposit{ID: depositID, Amount: decimal.RequireFromString("12.5")},
			},
			{ChainID: "ethereum", TokenSymbol: "USDT", Err: errors.New("rpc timeout")},
		},
	}, nil)
	scanner.On("ScanWalletByID", mock.Anything, busyID).Return(&reconciliation.WalletResult{
		WalletID: busyID, Skipped: true, Err: domainerrors.ErrWalletBusy,
	}, nil)
	scanner.On("ScanWalletByID", mock.Anything, missingID).Return(nil, domainerrors.NotFoundError("wallet"))

	h := NewAdminHandlers(&fakeGateway{}, scanner, &fakeTierRunner{}, testLogger())
	router := gin.New()
	router.POST("/wallets/:id/scan", h.ScanWallet)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/wallets/"+walletID.String()+"/scan", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var resp walletScanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Deposits)
	require.Len(t, resp.Tokens, 2)
	assert.Equal(t, "deposit", resp.Tokens[0].Outcome)
	assert.Equal(t, "12.5", resp.Tokens[0].Amount)
	assert.Equal(t, depositID.String(), resp.Tokens[0].DepositID)
	assert.Equal(t, "rpc timeout", resp.Tokens[1].Error)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/wallets/"+busyID.String()+"/scan", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, ErrCodeWalletBusy, decodeError(t, w).Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/wallets/"+missingID.String()+"/scan", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	scanner.AssertExpectations(t)
}

func TestAdminHandlers_RunTier(t *testing.T) {
	runner := &fakeTierRunner{result: &scan_scheduler.TierResult{Batches: 2, Wallets: 30, Deposits: 1, Duration: 1500 * time.Millisecond}}
	h := NewAdminHandlers(&fakeGateway{}, new(mockWalletScanner), runner, testLogger())
	router := gin.New()
	router.POST("/tiers/:priority/scan", h.RunTier)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/tiers/high/scan", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "HIGH", body["tier"])
	assert.EqualValues(t, 30, body["wallets"])
	assert.EqualValues(t, 1500, body["duration_ms"])

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/tiers/urgent/scan", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrCodeInvalidPriority, decodeError(t, w).Code)

	runner.err = scan_scheduler.ErrTierBusy
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/tiers/low/scan", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAdminHandlers_RefreshTokens(t *testing.T) {
	scanner := new(mockWalletScanner)
	scanner.On("InvalidateTokens").Return().Once()

	router := gin.New()
	router.POST("/tokens/refresh", NewAdminHandlers(&fakeGateway{}, scanner, &fakeTierRunner{}, testLogger()).RefreshTokens)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/tokens/refresh", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	scanner.AssertExpectations(t)
}

func TestCoreHandlers_ReadyAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "deposit_monitor_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	dbUp := true
	h := NewCoreHandlers(map[string]CheckFunc{
		"database": func(ctx context.Context) error {
			if !dbUp {
				return errors.New("connection refused")
			}
			return nil
		},
	}, reg, testLogger())

	router := gin.New()
	router.GET("/ready", h.Ready)
	router.GET("/live", h.Live)
	router.GET("/health", h.Health)
	router.GET("/metrics", h.Metrics())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	dbUp = false
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "deposit_monitor_test_total 1")
}
