// Package ratelimit implements the per-user fixed-window scan gate.
package ratelimit

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Anonymous is the bucket used when no user id is supplied
const Anonymous = "anonymous"

// Status reports a user's standing in the current window
type Status struct {
	Allowed   bool          `json:"allowed"`
	Remaining int           `json:"remaining"`
	ResetIn   time.Duration `json:"reset_in"`
}

// Limiter admits at most maxScans requests per user per window. The window
// opens with a user's first request and resets strictly by time.
type Limiter struct {
	windows  *gocache.Cache
	mu       sync.Mutex
	maxScans int
	window   time.Duration
	now      func() time.Time
}

// NewLimiter creates a new fixed-window limiter
func NewLimiter(maxScans int, window time.Duration) *Limiter {
	if maxScans <= 0 {
		maxScans = 10
	}
	if window <= 0 {
		window = time.Hour
	}

	return &Limiter{
		// Expired windows are dropped on read; the janitor only reclaims memory.
		windows:  gocache.New(window, 2*window),
		maxScans: maxScans,
		window:   window,
		now:      time.Now,
	}
}

type windowState struct {
	count int
	start time.Time
}

// IsAllowed records a scan attempt for the user and reports whether it is
// admitted. Rejected attempts do not consume the window.
func (l *Limiter) IsAllowed(userID string) bool {
	key := bucket(userID)

	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.current(key)
	if !ok {
		l.windows.Set(key, &windowState{count: 1, start: l.now()}, l.window)
		return true
	}

	if state.count >= l.maxScans {
		return false
	}

	state.count++
	return true
}

// TimeUntilReset returns how long until the user's window resets. Zero means
// no window is open.
func (l *Limiter) TimeUntilReset(userID string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.current(bucket(userID))
	if !ok {
		return 0
	}
	return l.remaining(state)
}

// Status reports whether the next scan would be admitted, without consuming it
func (l *Limiter) Status(userID string) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.current(bucket(userID))
	if !ok {
		return Status{Allowed: true, Remaining: l.maxScans}
	}

	remaining := l.maxScans - state.count
	if remaining < 0 {
		remaining = 0
	}

	return Status{
		Allowed:   remaining > 0,
		Remaining: remaining,
		ResetIn:   l.remaining(state),
	}
}

// Reset clears a user's window
func (l *Limiter) Reset(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.windows.Delete(bucket(userID))
}

// current returns the open window for key. Must be called with lock held.
func (l *Limiter) current(key string) (*windowState, bool) {
	val, found := l.windows.Get(key)
	if !found {
		return nil, false
	}

	state := val.(*windowState)
	// go-cache expiry runs on the wall clock; the window itself is judged on l.now
	if l.now().Sub(state.start) >= l.window {
		l.windows.Delete(key)
		return nil, false
	}
	return state, true
}

func (l *Limiter) remaining(state *windowState) time.Duration {
	left := state.start.Add(l.window).Sub(l.now())
	if left < 0 {
		return 0
	}
	return left
}

func bucket(userID string) string {
	if userID == "" {
		return Anonymous
	}
	return userID
}
