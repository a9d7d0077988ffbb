package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_BurstThenBlock(t *testing.T) {
	l := New(3, time.Hour)
	defer l.Close()

	for i := 0; i < 3; i++ {
		require.True(t, l.Allow("a"), "attempt %d", i+1)
	}
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "keys are independent")
}

func TestLimiter_Reset(t *testing.T) {
	l := New(1, time.Hour)
	defer l.Close()

	require.True(t, l.Allow("a"))
	require.False(t, l.Allow("a"))
	l.Reset("a")
	assert.True(t, l.Allow("a"))
}

func TestLimiter_Refills(t *testing.T) {
	l := New(2, 100*time.Millisecond)
	defer l.Close()

	require.True(t, l.Allow("a"))
	require.True(t, l.Allow("a"))
	require.False(t, l.Allow("a"))

	time.Sleep(120 * time.Millisecond)
	assert.True(t, l.Allow("a"))
}

func TestLimiter_SweepDropsIdle(t *testing.T) {
	l := New(5, time.Minute)
	defer l.Close()

	l.Allow("old")
	l.Allow("new")
	l.mu.Lock()
	l.buckets["old"].seen = time.Now().Add(-2 * time.Minute)
	l.mu.Unlock()

	l.sweep(time.Now())
	assert.Equal(t, 1, l.Len())
}

func TestLimiter_Concurrent(t *testing.T) {
	l := New(50, time.Hour)
	defer l.Close()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("k") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func TestLoginLimiter(t *testing.T) {
	ll := NewLoginLimiterWithConfig(100, time.Hour, 2, time.Hour)
	defer ll.Close()

	ok, _ := ll.Check("10.0.0.1", "A@Example.com")
	require.True(t, ok)
	ok, _ = ll.Check("10.0.0.2", "a@example.com ")
	require.True(t, ok)
	ok, reason := ll.Check("10.0.0.3", "a@example.com")
	assert.False(t, ok, "email budget is shared across IPs and case")
	assert.Contains(t, reason, "this account")

	ll.ResetEmail("a@example.com")
	ok, _ = ll.Check("10.0.0.3", "a@example.com")
	assert.True(t, ok)
}

func TestLoginLimiter_IPFirst(t *testing.T) {
	ll := NewLoginLimiterWithConfig(1, time.Hour, 100, time.Hour)
	defer ll.Close()

	ok, _ := ll.Check("10.0.0.1", "a@example.com")
	require.True(t, ok)
	ok, reason := ll.Check("10.0.0.1", "b@example.com")
	assert.False(t, ok)
	assert.Contains(t, reason, "wait a minute")
}
