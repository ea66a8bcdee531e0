// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Standard sentinel errors
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrOrderRejected    = errors.New("order rejected")
	ErrPositionNotFound = errors.New("position not found")
	ErrSymbolNotFound   = errors.New("symbol not found")
	ErrConnectionFailed = errors.New("connection failed")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrUnknownStrategy  = errors.New("unknown strategy")
	ErrNoClosedCandle   = errors.New("no closed candle available")
)

// RateLimitTimeoutError indicates the rate limiter could not acquire
// capacity within its bounded wait. Callers should back off longer than
// usual before the next attempt.
type RateLimitTimeoutError struct {
	Waited   time.Duration
	InWindow int
}

func (e *RateLimitTimeoutError) Error() string {
	return fmt.Sprintf("rate limit timeout: no capacity after %s (%d requests in window)", e.Waited, e.InWindow)
}

// NewRateLimitTimeoutError creates a new RateLimitTimeoutError.
func NewRateLimitTimeoutError(waited time.Duration, inWindow int) *RateLimitTimeoutError {
	return &RateLimitTimeoutError{Waited: waited, InWindow: inWindow}
}

// APIError represents an exchange call that failed after exhausting the
// retry policy. StatusCode carries the last HTTP status (0 for pure
// connection failures). Overloaded marks the repeated-400 pattern the
// exchange emits on public endpoints when it is busy; callers should apply
// an extended cool-down rather than retrying immediately.
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
	Attempts   int
	Overloaded bool
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("api error [%s] status %d after %d attempts: %s", e.Endpoint, e.StatusCode, e.Attempts, e.Message)
	}
	return fmt.Sprintf("api error [%s] after %d attempts: %s", e.Endpoint, e.Attempts, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewAPIError creates a new APIError.
func NewAPIError(endpoint string, statusCode int, message string, attempts int, err error) *APIError {
	return &APIError{
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Message:    message,
		Attempts:   attempts,
		Overloaded: statusCode == 400,
		Err:        err,
	}
}

// ValidationError represents a validation error. Fatal to the tick that
// produced it, never to the process.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// ReconciliationMismatchError records a divergence between local strategy
// state and the exchange position beyond a plain size difference, e.g. the
// exchange reports a position the strategy never entered. Exchange state
// wins unconditionally; this error is surfaced as a warning, not a fault.
type ReconciliationMismatchError struct {
	Symbol        string
	LocalState    string
	ExchangeState string
}

func (e *ReconciliationMismatchError) Error() string {
	return fmt.Sprintf("reconciliation mismatch [%s]: local %s, exchange %s", e.Symbol, e.LocalState, e.ExchangeState)
}

// NewReconciliationMismatchError creates a new ReconciliationMismatchError.
func NewReconciliationMismatchError(symbol, local, exchange string) *ReconciliationMismatchError {
	return &ReconciliationMismatchError{
		Symbol:        symbol,
		LocalState:    local,
		ExchangeState: exchange,
	}
}

// OrderError represents an error related to order submission. The position
// state is left untouched when one of these is returned.
type OrderError struct {
	Symbol string
	Action string
	Reason string
	Err    error
}

func (e *OrderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("order error %s %s: %s: %v", e.Action, e.Symbol, e.Reason, e.Err)
	}
	return fmt.Sprintf("order error %s %s: %s", e.Action, e.Symbol, e.Reason)
}

func (e *OrderError) Unwrap() error {
	return e.Err
}

// NewOrderError creates a new OrderError.
func NewOrderError(symbol, action, reason string, err error) *OrderError {
	return &OrderError{
		Symbol: symbol,
		Action: action,
		Reason: reason,
		Err:    err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
