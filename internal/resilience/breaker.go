package resilience

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// CircuitState represents the circuit breaker state.
type CircuitState int

const (
	// CircuitClosed is normal operation - calls reach the primary.
	CircuitClosed CircuitState = iota
	// CircuitOpen means the dependency is presumed down - calls use the fallback.
	CircuitOpen
	// CircuitHalfOpen admits a single probe after the reset timeout.
	CircuitHalfOpen
)

// String returns a human-readable state name.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "CLOSED"
	case CircuitOpen:
		return "OPEN"
	case CircuitHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the state by name
func (s CircuitState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// BreakerConfig configures the circuit breaker behavior.
type BreakerConfig struct {
	// FailureThreshold is the number of failures before opening (default: 5).
	FailureThreshold int

	// ResetTimeout is how long after the last failure an open circuit
	// admits a probe (default: 60s).
	ResetTimeout time.Duration
}

// DefaultBreakerConfig returns sensible defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     60 * time.Second,
	}
}

// BreakerStatus is the observable state of a breaker
type BreakerStatus struct {
	State            CircuitState  `json:"state"`
	Failures         int           `json:"failures"`
	SinceLastFailure time.Duration `json:"since_last_failure"` // 0 if no failure recorded
}

// CircuitBreaker guards a dependency. It is a pure state machine: it performs
// no I/O of its own and every transition happens under its mutex.
//
// Thread Safety: Safe for concurrent use.
type CircuitBreaker struct {
	config BreakerConfig
	logger *slog.Logger
	now    func() time.Time

	mu            sync.Mutex
	state         CircuitState
	failures      int
	lastFailure   time.Time
	probeInFlight bool

	onStateChange func(from, to CircuitState)
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config BreakerConfig, logger *slog.Logger) *CircuitBreaker {
	defaults := DefaultBreakerConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = defaults.FailureThreshold
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = defaults.ResetTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &CircuitBreaker{
		config: config,
		logger: logger,
		now:    time.Now,
		state:  CircuitClosed,
	}
}

// OnStateChange registers a hook invoked (under the breaker lock) on every
// transition. It must not call back into the breaker.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to CircuitState)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Status returns the observable breaker status.
func (cb *CircuitBreaker) Status() BreakerStatus {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	status := BreakerStatus{
		State:    cb.state,
		Failures: cb.failures,
	}
	if !cb.lastFailure.IsZero() {
		status.SinceLastFailure = cb.now().Sub(cb.lastFailure)
	}
	return status
}

// Allow reports whether the primary may be attempted, and whether this
// attempt is the half-open probe.
func (cb *CircuitBreaker) Allow() (allowed bool, probe bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true, false

	case CircuitOpen:
		if cb.now().Sub(cb.lastFailure) < cb.config.ResetTimeout {
			return false, false
		}
		cb.transitionTo(CircuitHalfOpen)
		cb.probeInFlight = true
		return true, true

	case CircuitHalfOpen:
		// Only one probe at a time
		if cb.probeInFlight {
			return false, false
		}
		cb.probeInFlight = true
		return true, true
	}

	return false, false
}

// RecordSuccess resets the failure counter and closes the circuit.
func (cb *CircuitBreaker) RecordSuccess(probe bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if probe {
		cb.probeInFlight = false
	}
	cb.failures = 0
	if cb.state != CircuitClosed {
		cb.transitionTo(CircuitClosed)
	}
}

// RecordFailure counts a primary failure, opening the circuit at the
// threshold or immediately when the failure was the half-open probe.
func (cb *CircuitBreaker) RecordFailure(probe bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = cb.now()

	if probe {
		cb.probeInFlight = false
		cb.transitionTo(CircuitOpen)
		return
	}

	if cb.state != CircuitOpen && cb.failures >= cb.config.FailureThreshold {
		cb.transitionTo(CircuitOpen)
	}
}

// abandon releases a probe slot without recording an outcome.
func (cb *CircuitBreaker) abandon(probe bool) {
	if !probe {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.probeInFlight = false
}

// Reset returns the breaker to its initial closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.lastFailure = time.Time{}
	cb.probeInFlight = false
	if cb.state != CircuitClosed {
		cb.transitionTo(CircuitClosed)
	}
}

// transitionTo changes state. Must be called with lock held.
func (cb *CircuitBreaker) transitionTo(next CircuitState) {
	prev := cb.state
	if prev == next {
		return
	}
	cb.state = next
	cb.logger.Info("circuit breaker state change",
		"from", prev.String(),
		"to", next.String(),
		"failures", cb.failures)
	if cb.onStateChange != nil {
		cb.onStateChange(prev, next)
	}
}

// Execute runs primary under breaker protection. When the circuit rejects the
// call, or primary fails, fallback supplies the result. A nil fallback turns
// those cases into errors (ErrCircuitOpen or the primary's error).
func Execute[T any](
	ctx context.Context,
	cb *CircuitBreaker,
	primary func(context.Context) (T, error),
	fallback func(context.Context) (T, error),
) (T, error) {
	allowed, probe := cb.Allow()
	if !allowed {
		cb.logger.Debug("circuit open, using fallback")
		if fallback == nil {
			var zero T
			return zero, ErrCircuitOpen
		}
		return fallback(ctx)
	}

	result, err := primary(ctx)
	if err == nil {
		cb.RecordSuccess(probe)
		return result, nil
	}

	if ctx.Err() != nil {
		// The caller gave up; that says nothing about the dependency
		cb.abandon(probe)
	} else {
		cb.RecordFailure(probe)
	}
	cb.logger.Warn("primary call failed", "error", err, "probe", probe)

	if fallback == nil {
		var zero T
		return zero, err
	}
	return fallback(ctx)
}
