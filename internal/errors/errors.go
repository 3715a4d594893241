// Package errors defines the gateway's error taxonomy. Every failure that can
// reach a caller is a ServiceError carrying a stable code and HTTP status so
// clients can distinguish "not entitled" from "not found" from "out of
// credits".
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies a failure class.
type ErrorCode string

const (
	CodeUnauthenticated     ErrorCode = "UNAUTHENTICATED"
	CodeForbidden           ErrorCode = "FORBIDDEN"
	CodeServiceNotFound     ErrorCode = "SERVICE_NOT_FOUND"
	CodeServiceInactive     ErrorCode = "SERVICE_INACTIVE"
	CodeInsufficientCredits ErrorCode = "INSUFFICIENT_CREDITS"
	CodeRecordNotFound      ErrorCode = "RECORD_NOT_FOUND"
	CodeProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	CodeLedgerConflict      ErrorCode = "LEDGER_CONFLICT"
	CodeRateLimited         ErrorCode = "RATE_LIMITED"
	CodeInvalidRequest      ErrorCode = "INVALID_REQUEST"
	CodeInternal            ErrorCode = "INTERNAL"
)

// ServiceError is the error type surfaced at the API boundary.
type ServiceError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Is matches two ServiceErrors by code, so sentinel comparisons work with
// errors.Is regardless of message or details.
func (e *ServiceError) Is(target error) bool {
	var other *ServiceError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// WithDetails attaches a key/value detail and returns the error for chaining.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func newError(code ErrorCode, message string, status int, err error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// Unauthenticated means the API key is unknown or inactive.
func Unauthenticated(message string) *ServiceError {
	if message == "" {
		message = "invalid API key"
	}
	return newError(CodeUnauthenticated, message, http.StatusUnauthorized, nil)
}

// Forbidden means the key is valid but not entitled to the service.
func Forbidden(message string) *ServiceError {
	if message == "" {
		message = "access denied"
	}
	return newError(CodeForbidden, message, http.StatusForbidden, nil)
}

// ServiceNotFound means the service identifier is not registered.
func ServiceNotFound(serviceID string) *ServiceError {
	return newError(CodeServiceNotFound,
		fmt.Sprintf("service %q not found", serviceID), http.StatusNotFound, nil)
}

// ServiceInactive means the service exists but is disabled.
func ServiceInactive(serviceID string) *ServiceError {
	return newError(CodeServiceInactive,
		fmt.Sprintf("service %q is inactive", serviceID), http.StatusServiceUnavailable, nil)
}

// InsufficientCredits means the caller's balance cannot cover the service cost.
func InsufficientCredits(required, available int64) *ServiceError {
	e := newError(CodeInsufficientCredits, "insufficient credits", http.StatusPaymentRequired, nil)
	return e.WithDetails("required", required).WithDetails("available", available)
}

// RecordNotFound means neither the local store nor any provider had an answer.
func RecordNotFound(serviceID, key string) *ServiceError {
	e := newError(CodeRecordNotFound, "record not found", http.StatusNotFound, nil)
	return e.WithDetails("service", serviceID).WithDetails("lookup_key", key)
}

// ProviderUnavailable means every provider in the service's fallback chain
// failed. The resolver uses it internally to decide whether a stale local
// record may stand in; callers see RecordNotFound instead.
func ProviderUnavailable(serviceID string) *ServiceError {
	return newError(CodeProviderUnavailable,
		fmt.Sprintf("no provider could serve service %q", serviceID), http.StatusServiceUnavailable, nil)
}

// LedgerConflict signals an optimistic-concurrency clash on a credit account.
// The ledger retries it internally.
func LedgerConflict(callerID string) *ServiceError {
	return newError(CodeLedgerConflict,
		fmt.Sprintf("concurrent update on account %q", callerID), http.StatusConflict, nil)
}

// RateLimited means the caller exceeded its request budget.
func RateLimited(limit int, window string) *ServiceError {
	e := newError(CodeRateLimited, "rate limit exceeded", http.StatusTooManyRequests, nil)
	return e.WithDetails("limit", limit).WithDetails("window", window)
}

// InvalidRequest covers malformed request bodies and missing parameters.
func InvalidRequest(message string) *ServiceError {
	return newError(CodeInvalidRequest, message, http.StatusBadRequest, nil)
}

// Internal wraps unexpected failures.
func Internal(message string, err error) *ServiceError {
	if message == "" {
		message = "internal error"
	}
	return newError(CodeInternal, message, http.StatusInternalServerError, err)
}

// GetServiceError extracts a ServiceError from err, or nil if none is present.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return nil
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	se := GetServiceError(err)
	return se != nil && se.Code == code
}
