package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Wrapping(t *testing.T) {
	err := fmt.Errorf("lookup failed: %w", NotFoundError("WEBHOOK"))

	assert.True(t, IsNotFound(err))
	assert.False(t, IsInvalidInput(err))
	assert.Equal(t, "WEBHOOK_NOT_FOUND", GetErrorCode(err))
	assert.Contains(t, err.Error(), "WEBHOOK not found")
}

func TestValidationError(t *testing.T) {
	err := ValidationError("url", "url must be http or https")

	assert.True(t, IsInvalidInput(err))
	assert.Equal(t, "VALIDATION_ERROR", GetErrorCode(err))
	assert.Equal(t, map[string]interface{}{"field": "url"}, GetErrorDetails(err))
}

func TestServiceUnavailableError(t *testing.T) {
	err := ServiceUnavailableError("solana", errors.New("connection refused"))

	assert.True(t, IsRetryable(err))
	assert.True(t, errors.Is(err, ErrServiceUnavailable))
	assert.Equal(t, "connection refused", GetErrorDetails(err)["cause"])
}

func TestGetErrorCode_PlainError(t *testing.T) {
	assert.Equal(t, "UNKNOWN_ERROR", GetErrorCode(errors.New("x")))
	assert.False(t, IsRetryable(errors.New("x")))
	assert.Nil(t, GetErrorDetails(errors.New("x")))
}
