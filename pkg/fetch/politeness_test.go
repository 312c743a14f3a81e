package fetch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_NoDelayOnFirstRequest(t *testing.T) {
	rl := NewRateLimiter(100*time.Millisecond, testLogger())

	start := time.Now()
	require.NoError(t, rl.Wait(context.Background(), "fresh-host.com", 5*time.Second))
	assert.Less(t, time.Since(start), 20*time.Millisecond)
}

func TestRateLimiter_SleepsForRemainingDelay(t *testing.T) {
	rl := NewRateLimiter(100*time.Millisecond, testLogger())
	rl.Touch("example.com")

	start := time.Now()
	require.NoError(t, rl.Wait(context.Background(), "example.com", 100*time.Millisecond))
	elapsed := time.Since(start)

	// Jitter is +/-10%
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 300*time.Millisecond)
}

func TestRateLimiter_FallsBackToDefaultDelay(t *testing.T) {
	rl := NewRateLimiter(80*time.Millisecond, testLogger())
	rl.Touch("example.com")

	start := time.Now()
	require.NoError(t, rl.Wait(context.Background(), "example.com", 0))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestRateLimiter_RespectsContextCancellation(t *testing.T) {
	rl := NewRateLimiter(100*time.Millisecond, testLogger())
	rl.Touch("example.com")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := rl.Wait(ctx, "example.com", 5*time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestHostSemaphorePool_LimitsPerHost(t *testing.T) {
	pool := NewHostSemaphorePool(2, testLogger())

	r1, err := pool.Acquire(context.Background(), "host-a")
	require.NoError(t, err)
	r2, err := pool.Acquire(context.Background(), "host-a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = pool.Acquire(ctx, "host-a")
	assert.Error(t, err, "third permit should not be granted")

	// Other hosts are unaffected
	rb, err := pool.Acquire(context.Background(), "host-b")
	require.NoError(t, err)
	assert.Equal(t, 2, pool.Len())

	r1()
	r1() // idempotent
	r3, err := pool.Acquire(context.Background(), "host-a")
	require.NoError(t, err)

	r2()
	r3()
	rb()
}

func TestHostSemaphorePool_EvictIdle(t *testing.T) {
	pool := NewHostSemaphorePool(1, testLogger())

	idle, err := pool.Acquire(context.Background(), "idle-host")
	require.NoError(t, err)
	idle()

	busy, err := pool.Acquire(context.Background(), "busy-host")
	require.NoError(t, err)
	defer busy()

	time.Sleep(20 * time.Millisecond)
	pool.evictIdle(10 * time.Millisecond)

	assert.Equal(t, 1, pool.Len(), "only the held host should remain")
}

func TestHostSemaphorePool_RunEvictionStopsOnCancel(t *testing.T) {
	pool := NewHostSemaphorePool(1, testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		pool.RunEviction(ctx, 10*time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunEviction did not stop after cancel")
	}
}

func TestHostSemaphorePool_ConcurrentUse(t *testing.T) {
	pool := NewHostSemaphorePool(3, testLogger())
	var wg sync.WaitGroup
	var mu sync.Mutex
	inFlight, peak := 0, 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := pool.Acquire(context.Background(), "shared")
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()
			time.Sleep(2 * time.Millisecond)
			mu.Lock()
			inFlight--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, 3)
}
