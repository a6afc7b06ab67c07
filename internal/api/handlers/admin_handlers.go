package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rail-service/deposit_monitor/internal/domain/entities"
	"github.com/rail-service/deposit_monitor/internal/domain/services/reconciliation"
	"github.com/rail-service/deposit_monitor/internal/domain/services/rpcgateway"
	"github.com/rail-service/deposit_monitor/internal/workers/scan_scheduler"
	"github.com/rail-service/deposit_monitor/pkg/logger"
)

// GatewayStats exposes the RPC gateway diagnostics
type GatewayStats interface {
	Stats() rpcgateway.Stats
	ResetStats()
}

// WalletScanner runs an on-demand scan of one wallet and owns the token
// whitelist cache
type WalletScanner interface {
	ScanWalletByID(ctx context.Context, id uuid.UUID) (*reconciliation.WalletResult, error)
	InvalidateTokens()
}

// TierRunner runs one scheduler tier outside its ticker
type TierRunner interface {
	RunTier(ctx context.Context, priority entities.ScanPriority) (*scan_scheduler.TierResult, error)
}

type AdminHandlers struct {
	gateway GatewayStats
	scanner WalletScanner
	tiers   TierRunner
	logger  *logger.Logger
}

func NewAdminHandlers(gateway GatewayStats, scanner WalletScanner, tiers TierRunner, logger *logger.Logger) *AdminHandlers {
	return &AdminHandlers{gateway: gateway, scanner: scanner, tiers: tiers, logger: logger}
}

// RPCStats handles GET /api/v1/admin/rpc-stats
func (h *AdminHandlers) RPCStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.gateway.Stats())
}

// ResetRPCStats handles POST /api/v1/admin/rpc-stats/reset
func (h *AdminHandlers) ResetRPCStats(c *gin.Context) {
	h.gateway.ResetStats()
	h.logger.Info("RPC gateway stats reset", "request_id", c.GetString("request_id"))
	c.JSON(http.StatusOK, h.gateway.Stats())
}

type tokenScanResponse struct {
	ChainID     string `json:"chain_id"`
	TokenSymbol string `json:"token_symbol"`
	Outcome     string `json:"outcome,omitempty"`
	Amount      string `json:"amount,omitempty"`
	DepositID   string `json:"deposit_id,omitempty"`
	Error       string `json:"error,omitempty"`
}

type walletScanResponse struct {
	WalletID uuid.UUID           `json:"wallet_id"`
	Deposits int                 `json:"deposits"`
	Failures int                 `json:"failures"`
	Tokens   []tokenScanResponse `json:"tokens"`
}

// ScanWallet handles POST /api/v1/admin/wallets/:id/scan
func (h *AdminHandlers) ScanWallet(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidID, "Invalid wallet id", nil)
		return
	}

	result, err := h.scanner.ScanWalletByID(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	if result.Err != nil {
		handleServiceError(c, h.logger, result.Err)
		return
	}

	resp := walletScanResponse{
		WalletID: result.WalletID,
		Deposits: result.Deposits,
		Failures: result.Failures,
		Tokens:   make([]tokenScanResponse, 0, len(result.Tokens)),
	}
	for _, tr := range result.Tokens {
		out := tokenScanResponse{ChainID: tr.ChainID, TokenSymbol: tr.TokenSymbol}
		if tr.Err != nil {
			out.Error = tr.Err.Error()
		} else {
			out.Outcome = string(tr.Decision.Outcome)
			if tr.Deposit != nil {
				out.Amount = tr.Deposit.Amount.String()
				out.DepositID = tr.Deposit.ID.String()
			}
		}
		resp.Tokens = append(resp.Tokens, out)
	}

	c.JSON(http.StatusOK, resp)
}

// RefreshTokens handles POST /api/v1/admin/tokens/refresh
func (h *AdminHandlers) RefreshTokens(c *gin.Context) {
	h.scanner.InvalidateTokens()
	h.logger.Info("Supported token cache invalidated", "request_id", c.GetString("request_id"))
	c.Status(http.StatusNoContent)
}

// RunTier handles POST /api/v1/admin/tiers/:priority/scan
func (h *AdminHandlers) RunTier(c *gin.Context) {
	priority := entities.ScanPriority(strings.ToUpper(c.Param("priority")))
	if !priority.IsValid() {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidPriority, "Priority must be HIGH, MEDIUM or LOW", nil)
		return
	}

	result, err := h.tiers.RunTier(c.Request.Context(), priority)
	if err != nil {
		if errors.Is(err, scan_scheduler.ErrTierBusy) {
			respondError(c, http.StatusConflict, ErrCodeConflict, err.Error(), nil)
			return
		}
		handleServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tier":         result.Tier,
		"batches":      result.Batches,
		"wallets":      result.Wallets,
		"deposits":     result.Deposits,
		"failures":     result.Failures,
		"busy_wallets": result.BusyWallets,
		"duration_ms":  result.Duration.Milliseconds(),
	})
}
