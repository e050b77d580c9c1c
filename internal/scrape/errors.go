package scrape

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Error type labels recorded on failed results.
const (
	ErrorTypeNetwork         = "network"
	ErrorTypeHTTP            = "http"
	ErrorTypeValidation      = "validation"
	ErrorTypeRobots          = "robots-disallowed"
	ErrorTypeDuplicate       = "duplicate"
	ErrorTypeMalformedURL    = "malformed-url"
	ErrorTypeCanceled        = "canceled"
	ErrorTypeMisconfigured   = "adapter-misconfigured"
	ErrorTypeUnknown         = "unknown"
)

// Error classifies a scraping failure for retry decisions. Network, HTTP
// 5xx/429 and validation failures are transient; robots denials, malformed
// URLs and duplicates are terminal.
type Error struct {
	Type      string
	Retryable bool
	Err       error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Type
	}
	return fmt.Sprintf("%s: %v", e.Type, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Retryable wraps err as a transient failure.
func Retryable(errType string, err error) error {
	return &Error{Type: errType, Retryable: true, Err: err}
}

// Terminal wraps err as a non-retryable failure.
func Terminal(errType string, err error) error {
	return &Error{Type: errType, Retryable: false, Err: err}
}

// IsRetryable reports whether the failure should be retried. An explicit
// classification wins; otherwise context cancellation is never retryable and
// unclassified errors are treated as transient network-level failures.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Retryable
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// ErrorTypeOf returns the taxonomy label for err.
func ErrorTypeOf(err error) string {
	if err == nil {
		return ""
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Type
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeCanceled
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorTypeNetwork
	}
	return ErrorTypeUnknown
}
