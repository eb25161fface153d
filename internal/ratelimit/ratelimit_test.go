package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(maxScans int, window time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLimiter(maxScans, window)
	l.now = clock.Now
	return l, clock
}

func TestNewLimiter_Defaults(t *testing.T) {
	l := NewLimiter(0, 0)
	assert.Equal(t, 10, l.maxScans)
	assert.Equal(t, time.Hour, l.window)
}

func TestLimiter_RejectsEleventhScan(t *testing.T) {
	l, _ := newTestLimiter(10, time.Hour)

	for i := 0; i < 10; i++ {
		require.True(t, l.IsAllowed("user-1"), "scan %d should be admitted", i+1)
	}

	assert.False(t, l.IsAllowed("user-1"))
	assert.Greater(t, l.TimeUntilReset("user-1"), time.Duration(0))
}

func TestLimiter_UsersAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(1, time.Hour)

	assert.True(t, l.IsAllowed("alice"))
	assert.False(t, l.IsAllowed("alice"))
	assert.True(t, l.IsAllowed("bob"))
}

func TestLimiter_AnonymousBucket(t *testing.T) {
	l, _ := newTestLimiter(1, time.Hour)

	assert.True(t, l.IsAllowed(""))
	assert.False(t, l.IsAllowed(Anonymous))
}

func TestLimiter_WindowResetsByTime(t *testing.T) {
	l, clock := newTestLimiter(2, time.Hour)

	assert.True(t, l.IsAllowed("u"))
	assert.True(t, l.IsAllowed("u"))
	assert.False(t, l.IsAllowed("u"))

	clock.Advance(30 * time.Minute)
	assert.Equal(t, 30*time.Minute, l.TimeUntilReset("u"))
	assert.False(t, l.IsAllowed("u"))

	clock.Advance(30 * time.Minute)
	assert.True(t, l.IsAllowed("u"))
	assert.Equal(t, time.Hour, l.TimeUntilReset("u"))
}

func TestLimiter_Status(t *testing.T) {
	l, _ := newTestLimiter(3, time.Hour)

	status := l.Status("u")
	assert.True(t, status.Allowed)
	assert.Equal(t, 3, status.Remaining)
	assert.Zero(t, status.ResetIn)

	l.IsAllowed("u")
	l.IsAllowed("u")
	l.IsAllowed("u")

	status = l.Status("u")
	assert.False(t, status.Allowed)
	assert.Equal(t, 0, status.Remaining)
	assert.Equal(t, time.Hour, status.ResetIn)
}

func TestLimiter_Reset(t *testing.T) {
	l, _ := newTestLimiter(1, time.Hour)

	l.IsAllowed("u")
	require.False(t, l.IsAllowed("u"))

	l.Reset("u")
	assert.True(t, l.IsAllowed("u"))
}

func TestLimiter_ConcurrentSameUser(t *testing.T) {
	l, _ := newTestLimiter(50, time.Hour)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.IsAllowed("same-user") {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, admitted)
}
