package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTimedImmediate(t *testing.T) {
	q := New[int](4)
	_, outcome := q.GetTimed(0)
	assert.Equal(t, Timeout, outcome)

	q.Put(42)
	time.Sleep(5 * time.Millisecond)
	v, outcome := q.GetTimed(0)
	assert.Equal(t, Msg, outcome)
	assert.Equal(t, 42, v)
}

func TestGetTimedBlocksAndTimesOut(t *testing.T) {
	q := New[int](4)
	start := time.Now()
	_, outcome := q.GetTimed(20 * time.Millisecond)
	assert.Equal(t, Timeout, outcome)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestInstantMsgBypassesDelay(t *testing.T) {
	q := NewDelay[string](4, time.Hour)
	q.Put("delayed")
	q.InstantMsg("instant")

	v, outcome := q.GetTimed(50 * time.Millisecond)
	require.Equal(t, Msg, outcome)
	assert.Equal(t, "instant", v)

	// the delayed message must not be ready for a long time.
	_, outcome = q.GetTimed(20 * time.Millisecond)
	assert.Equal(t, Timeout, outcome)
	q.Drain()
}

func TestReleaseFailsWhenNonEmpty(t *testing.T) {
	q := New[int](4)
	q.Put(1)
	time.Sleep(5 * time.Millisecond)
	err := q.Release()
	assert.ErrorIs(t, err, ErrNonEmpty)

	q.Drain()
	err = q.Release()
	assert.NoError(t, err)
}

func TestReleaseConcurrentWithBlockedGetTimed(t *testing.T) {
	q := New[int](1)
	done := make(chan Outcome, 1)
	go func() {
		_, outcome := q.GetTimed(-1)
		done <- outcome
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Release())

	select {
	case outcome := <-done:
		assert.Equal(t, Shutdown, outcome)
	case <-time.After(time.Second):
		t.Fatal("GetTimed did not unblock on shutdown")
	}
}

func TestRegistryRoundTrip(t *testing.T) {
	r := NewRegistry()
	q := New[string](4)
	h := Register(r, q)

	got, ok := Lookup[string](r, h)
	require.True(t, ok)
	assert.Same(t, q, got)

	_, ok = Lookup[int](r, h)
	assert.False(t, ok)
}
