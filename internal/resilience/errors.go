// Package resilience guards calls to unreliable dependencies with a circuit
// breaker and an exponential-backoff retry scheduler.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

var (
	// ErrCircuitOpen is returned when the breaker rejects a call and no fallback is given.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrInvalidRetryConfig is returned by RetryOptions.Validate.
	ErrInvalidRetryConfig = errors.New("invalid retry configuration")
)

// ProviderError is an error from a remote dependency, carrying the HTTP
// status when one was received (0 for transport failures).
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Transient reports whether the status code is worth retrying
func (e *ProviderError) Transient() bool {
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode >= 500
}

// RetryError annotates the last error after retries stop
type RetryError struct {
	Err      error
	Attempts int
	Elapsed  time.Duration
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("failed after %d attempt(s) in %v: %v", e.Attempts, e.Elapsed.Round(time.Millisecond), e.Err)
}

func (e *RetryError) Unwrap() error {
	return e.Err
}

// IsTransient is the default retry condition: network errors, timeouts,
// 5xx and 429 are retried; other 4xx and caller cancellation are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var perr *ProviderError
	if errors.As(err, &perr) {
		if perr.StatusCode > 0 {
			return perr.Transient()
		}
		// Transport failure: fall through to inspect the cause
		if errors.Is(perr.Err, context.Canceled) {
			return false
		}
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return false
}
