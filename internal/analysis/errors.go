package analysis

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRateLimitExceeded is returned before any work when the user's scan
	// window is exhausted. The concrete error is a *RateLimitError.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrProductNotFound is returned when a barcode cannot be resolved. The
	// accompanying result is a placeholder.
	ErrProductNotFound = errors.New("product not found")
)

// RateLimitError carries the time until the user's window resets
type RateLimitError struct {
	UserID  string
	ResetIn time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s: resets in %s", e.UserID, e.ResetIn.Round(time.Second))
}

// Unwrap makes errors.Is(err, ErrRateLimitExceeded) hold
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimitExceeded
}
