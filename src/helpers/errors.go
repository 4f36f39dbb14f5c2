package helpers

import (
	"errors"
	"fmt"
	"time"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type CoinvestError struct {
	Message string
	Cause   error
}

func (e *CoinvestError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CoinvestError) Unwrap() error {
	return e.Cause
}

// Distinct error types for the failure taxonomy. Callers discriminate with
// errors.As via the Is* predicates below.
type UpstreamUnavailableError struct{ CoinvestError }
type InvalidCredentialError struct{ CoinvestError }
type UnauthorizedError struct{ CoinvestError }
type NotFoundError struct{ CoinvestError }
type ValidationError struct{ CoinvestError }

// -----------------------------------------------------------------------------
// Constructors
// -----------------------------------------------------------------------------

func UpstreamUnavailable(msg string, cause error) error {
	return &UpstreamUnavailableError{CoinvestError{Message: msg, Cause: cause}}
}

func InvalidCredential(msg string) error {
	return &InvalidCredentialError{CoinvestError{Message: msg}}
}

func Unauthorized(msg string) error {
	return &UnauthorizedError{CoinvestError{Message: msg}}
}

func NotFound(msg string) error {
	return &NotFoundError{CoinvestError{Message: msg}}
}

func Validation(msg string) error {
	return &ValidationError{CoinvestError{Message: msg}}
}

// -----------------------------------------------------------------------------
// Predicates
// -----------------------------------------------------------------------------

func IsUpstreamUnavailable(err error) bool {
	var target *UpstreamUnavailableError
	return errors.As(err, &target)
}

func IsInvalidCredential(err error) bool {
	var target *InvalidCredentialError
	return errors.As(err, &target)
}

func IsUnauthorized(err error) bool {
	var target *UnauthorizedError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// ErrorCode maps a taxonomy error onto the wire error code sent to clients.
func ErrorCode(err error) string {
	switch {
	case IsUpstreamUnavailable(err):
		return "UPSTREAM_UNAVAILABLE"
	case IsInvalidCredential(err):
		return "INVALID_CREDENTIAL"
	case IsUnauthorized(err):
		return "UNAUTHORIZED"
	case IsNotFound(err):
		return "NOT_FOUND"
	case IsValidation(err):
		return "VALIDATION_ERROR"
	}
	return "INTERNAL"
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff attempts to execute the operation up to maxRetries times with exponential backoff.
func RetryWithBackoff(operation string, maxRetries int, baseDelay time.Duration, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		time.Sleep(delay)
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, maxRetries, lastErr)
}
