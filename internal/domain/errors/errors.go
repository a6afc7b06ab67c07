// Package errors holds the domain error vocabulary shared by services and
// the HTTP layer.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal error")
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrUnsupportedChain is returned when no balance provider serves a chain family
	ErrUnsupportedChain = errors.New("unsupported chain")
	// ErrWalletBusy is returned when another scan holds the wallet lock
	ErrWalletBusy = errors.New("wallet scan already in progress")
)

// DomainError carries an API error code and optional details alongside the cause
type DomainError struct {
	Err       error
	Code      string
	Message   string
	Details   map[string]interface{}
	Retryable bool
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NotFoundError creates a not found error for resource
func NotFoundError(resource string) *DomainError {
	return &DomainError{
		Err:     ErrNotFound,
		Code:    fmt.Sprintf("%s_NOT_FOUND", resource),
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// ValidationError creates an invalid input error for field
func ValidationError(field, message string) *DomainError {
	return &DomainError{
		Err:     ErrInvalidInput,
		Code:    "VALIDATION_ERROR",
		Message: message,
		Details: map[string]interface{}{"field": field},
	}
}

// ServiceUnavailableError marks a dependency outage as retryable
func ServiceUnavailableError(service string, err error) *DomainError {
	de := &DomainError{
		Err:       ErrServiceUnavailable,
		Code:      "SERVICE_UNAVAILABLE",
		Message:   fmt.Sprintf("%s service is temporarily unavailable", service),
		Retryable: true,
	}
	if err != nil {
		de.Details = map[string]interface{}{"cause": err.Error()}
	}
	return de
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsRetryable reports whether err is a DomainError flagged retryable
func IsRetryable(err error) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from a domain error
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return "UNKNOWN_ERROR"
}

// GetErrorDetails extracts details from a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Details
	}
	return nil
}
