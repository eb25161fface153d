package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"
)

// jitterFraction bounds the random perturbation applied to each delay (±10%).
const jitterFraction = 0.1

// RetryOptions configures retry behavior with exponential backoff.
type RetryOptions struct {
	// MaxRetries is the number of retries after the first attempt.
	// Total attempts are MaxRetries+1. Default: 3
	MaxRetries int

	// BaseDelay scales the backoff curve. Default: 1s
	BaseDelay time.Duration

	// MaxDelay caps any single delay. Default: 10s
	MaxDelay time.Duration

	// Multiplier is the exponential growth factor. Default: 2.0
	Multiplier float64

	// Jitter perturbs each delay by up to ±10%.
	Jitter bool

	// AttemptTimeout bounds each attempt independently of the retry loop.
	// Zero leaves attempts bounded only by the caller's context.
	AttemptTimeout time.Duration

	// RetryCondition decides whether an error is retried. Default: IsTransient
	RetryCondition func(error) bool

	// Logger receives one Warn per retry. Optional.
	Logger *slog.Logger
}

// DefaultRetryOptions returns sensible defaults for provider calls.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxRetries:     3,
		BaseDelay:      time.Second,
		MaxDelay:       10 * time.Second,
		Multiplier:     2.0,
		Jitter:         true,
		AttemptTimeout: 15 * time.Second,
		RetryCondition: IsTransient,
	}
}

// Validate checks if the retry options are usable.
func (o RetryOptions) Validate() error {
	if o.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries %d < 0", ErrInvalidRetryConfig, o.MaxRetries)
	}
	if o.BaseDelay < 0 || o.MaxDelay < 0 {
		return fmt.Errorf("%w: negative delay", ErrInvalidRetryConfig)
	}
	if o.MaxDelay > 0 && o.MaxDelay < o.BaseDelay {
		return fmt.Errorf("%w: max delay below base delay", ErrInvalidRetryConfig)
	}
	if o.Multiplier != 0 && o.Multiplier < 1.0 {
		return fmt.Errorf("%w: multiplier %.2f < 1", ErrInvalidRetryConfig, o.Multiplier)
	}
	return nil
}

// RetryResult contains the outcome of a retry operation.
type RetryResult[T any] struct {
	// Value is the successful result (zero on failure).
	Value T

	// Attempts is the number of attempts made.
	Attempts int

	// TotalTime is the total time spent including waits.
	TotalTime time.Duration
}

// Delay returns the un-jittered wait before attempt k (k >= 1):
// min(BaseDelay * Multiplier^k, MaxDelay).
func (o RetryOptions) Delay(k int) time.Duration {
	multiplier := o.Multiplier
	if multiplier == 0 {
		multiplier = 2.0
	}

	d := float64(o.BaseDelay) * math.Pow(multiplier, float64(k))
	if o.MaxDelay > 0 && d > float64(o.MaxDelay) {
		return o.MaxDelay
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// jittered perturbs d by up to ±10%.
func jittered(d time.Duration) time.Duration {
	factor := 1 + (rand.Float64()*2-1)*jitterFraction
	out := time.Duration(float64(d) * factor)
	if out < 0 {
		return 0
	}
	return out
}

// Retry executes fn up to MaxRetries+1 times with exponential backoff.
//
// Retries continue only while RetryCondition holds for the returned error.
// When retries stop, the last error is returned wrapped in a *RetryError
// carrying the attempt count and elapsed time. The caller's context stops
// the loop between attempts.
//
// Example:
//
//	res, err := Retry(ctx, opts, func(ctx context.Context, attempt int) (string, error) {
//	    return provider.Generate(ctx, prompt)
//	})
func Retry[T any](ctx context.Context, opts RetryOptions, fn func(ctx context.Context, attempt int) (T, error)) (RetryResult[T], error) {
	start := time.Now()
	result := RetryResult[T]{}

	condition := opts.RetryCondition
	if condition == nil {
		condition = IsTransient
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var lastErr error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := opts.Delay(attempt)
			if opts.Jitter {
				wait = jittered(wait)
			}

			logger.Warn("retrying after failure",
				"attempt", attempt+1,
				"max_attempts", opts.MaxRetries+1,
				"wait", wait,
				"error", lastErr)

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				result.TotalTime = time.Since(start)
				return result, &RetryError{Err: ctx.Err(), Attempts: result.Attempts, Elapsed: result.TotalTime}
			case <-timer.C:
			}
		}

		if err := ctx.Err(); err != nil {
			result.TotalTime = time.Since(start)
			return result, &RetryError{Err: err, Attempts: result.Attempts, Elapsed: result.TotalTime}
		}

		result.Attempts = attempt + 1
		value, err := runAttempt(ctx, opts.AttemptTimeout, attempt+1, fn)
		if err == nil {
			result.Value = value
			result.TotalTime = time.Since(start)
			return result, nil
		}

		lastErr = err
		if !condition(err) {
			break
		}
	}

	result.TotalTime = time.Since(start)
	return result, &RetryError{Err: lastErr, Attempts: result.Attempts, Elapsed: result.TotalTime}
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, attempt int, fn func(context.Context, int) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx, attempt)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx, attempt)
}
