package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(clock *fakeClock) *Breaker {
	return New("identity_cache",
		WithFailureThreshold(3),
		WithSuccessThreshold(2),
		WithCooldown(time.Second),
		WithClock(clock.now),
	)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := newTestBreaker(&fakeClock{t: time.Unix(0, 0)})
	assert.Equal(t, "identity_cache", b.Name())
	assert.Equal(t, StateClosed, b.State())

	assert.False(t, b.RecordFailure().Opened)
	assert.False(t, b.RecordFailure().Opened)
	b.RecordSuccess()
	assert.False(t, b.RecordFailure().Opened, "success resets the failure count")
	assert.False(t, b.RecordFailure().Opened)
	assert.True(t, b.RecordFailure().Opened)

	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
	assert.False(t, b.RecordFailure().Opened, "already open")
}

func TestBreakerHalfOpenProbes(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	b := newTestBreaker(clock)
	for range 3 {
		b.RecordFailure()
	}
	require.Equal(t, StateOpen, b.State())

	clock.advance(999 * time.Millisecond)
	assert.False(t, b.Allow())

	clock.advance(time.Millisecond)
	require.True(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())

	t.Run("failure reopens", func(t *testing.T) {
		assert.True(t, b.RecordFailure().Opened)
		assert.False(t, b.Allow(), "cooldown restarts")
	})

	t.Run("successes close", func(t *testing.T) {
		clock.advance(time.Second)
		require.True(t, b.Allow())
		assert.False(t, b.RecordSuccess().Closed)
		assert.True(t, b.RecordSuccess().Closed)
		assert.Equal(t, StateClosed, b.State())
		assert.True(t, b.Allow())
	})
}

func TestBreakerReset(t *testing.T) {
	b := New("x", WithFailureThreshold(1))
	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())
	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
}
