package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainerrors "github.com/rail-service/deposit_monitor/internal/domain/errors"
	"github.com/rail-service/deposit_monitor/pkg/logger"
)

// Error codes as constants for consistent error responses across handlers
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeValidationError    = "VALIDATION_ERROR"
	ErrCodeInvalidID          = "INVALID_ID"
	ErrCodeInvalidPriority    = "INVALID_PRIORITY"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeWalletBusy         = "WALLET_BUSY"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

const (
	MsgInvalidRequest = "Invalid request payload"
	MsgInternalError  = "Internal server error"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

func respondError(c *gin.Context, status int, code, message string, details map[string]interface{}) {
	c.JSON(status, ErrorResponse{
		Code:      code,
		Message:   message,
		Details:   details,
		RequestID: c.GetString("request_id"),
	})
}

// handleServiceError maps domain errors onto HTTP responses. Anything
// unrecognised is logged and reported as a 500 without its message.
func handleServiceError(c *gin.Context, log *logger.Logger, err error) {
	msg := err.Error()
	var de *domainerrors.DomainError
	if errors.As(err, &de) && de.Message != "" {
		msg = de.Message
	}

	switch {
	case domainerrors.IsInvalidInput(err):
		respondError(c, http.StatusBadRequest, ErrCodeValidationError, msg, domainerrors.GetErrorDetails(err))
	case domainerrors.IsNotFound(err):
		respondError(c, http.StatusNotFound, ErrCodeNotFound, msg, nil)
	case errors.Is(err, domainerrors.ErrWalletBusy):
		respondError(c, http.StatusConflict, ErrCodeWalletBusy, msg, nil)
	case errors.Is(err, domainerrors.ErrConflict):
		respondError(c, http.StatusConflict, ErrCodeConflict, msg, nil)
	case errors.Is(err, domainerrors.ErrServiceUnavailable):
		respondError(c, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Service temporarily unavailable", nil)
	default:
		log.Error("Request failed",
			"path", c.FullPath(),
			"request_id", c.GetString("request_id"),
			"error", err)
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, MsgInternalError, nil)
	}
}
