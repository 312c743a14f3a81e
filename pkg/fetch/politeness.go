package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// RateLimiter spaces out requests to the same host
type RateLimiter struct {
	mu           sync.Mutex
	last         map[string]time.Time // host -> last request attempt
	defaultDelay time.Duration
	log          *logrus.Entry
}

// NewRateLimiter creates a RateLimiter that falls back to defaultDelay
func NewRateLimiter(defaultDelay time.Duration, log *logrus.Entry) *RateLimiter {
	return &RateLimiter{
		last:         make(map[string]time.Time),
		defaultDelay: defaultDelay,
		log:          log,
	}
}

// Wait blocks until at least minDelay (+/-10% jitter) has passed since the last
// request to host. Returns ctx.Err() if the context ends first.
func (rl *RateLimiter) Wait(ctx context.Context, host string, minDelay time.Duration) error {
	if minDelay <= 0 {
		minDelay = rl.defaultDelay
	}
	if minDelay <= 0 {
		return nil
	}

	rl.mu.Lock()
	prev, seen := rl.last[host]
	rl.mu.Unlock()
	if !seen {
		return nil
	}

	elapsed := time.Since(prev)
	if elapsed >= minDelay {
		return nil
	}
	sleep := jitter(minDelay - elapsed)
	if sleep <= 0 {
		return nil
	}

	rl.log.WithFields(logrus.Fields{"host": host, "sleep": sleep, "required_delay": minDelay}).Debug("Rate limit applying sleep")
	timer := time.NewTimer(sleep)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Touch records now as the last request time for host. Call after each attempt.
func (rl *RateLimiter) Touch(host string) {
	rl.mu.Lock()
	rl.last[host] = time.Now()
	rl.mu.Unlock()
}

type hostSlot struct {
	sem         *semaphore.Weighted
	inUse       int64 // held + waiting permits
	lastRelease time.Time
}

// HostSemaphorePool bounds concurrent requests per host
type HostSemaphorePool struct {
	mu    sync.Mutex
	slots map[string]*hostSlot
	limit int64
	log   *logrus.Entry
}

// NewHostSemaphorePool creates a pool allowing maxPerHost in-flight requests per host
func NewHostSemaphorePool(maxPerHost int, log *logrus.Entry) *HostSemaphorePool {
	limit := int64(maxPerHost)
	if limit <= 0 {
		limit = 2
		log.Warnf("max_requests_per_host invalid or zero, defaulting to %d", limit)
	}
	return &HostSemaphorePool{slots: make(map[string]*hostSlot), limit: limit, log: log}
}

// Acquire takes one permit for host and returns the function that gives it back.
func (p *HostSemaphorePool) Acquire(ctx context.Context, host string) (release func(), err error) {
	p.mu.Lock()
	slot, ok := p.slots[host]
	if !ok {
		slot = &hostSlot{sem: semaphore.NewWeighted(p.limit)}
		p.slots[host] = slot
	}
	slot.inUse++
	p.mu.Unlock()

	if err := slot.sem.Acquire(ctx, 1); err != nil {
		p.mu.Lock()
		slot.inUse--
		p.mu.Unlock()
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			slot.inUse--
			slot.lastRelease = time.Now()
			p.mu.Unlock()
			slot.sem.Release(1)
		})
	}, nil
}

// RunEviction drops idle host slots every interval until ctx is done
func (p *HostSemaphorePool) RunEviction(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.evictIdle(interval)
		case <-ctx.Done():
			return
		}
	}
}

func (p *HostSemaphorePool) evictIdle(maxIdle time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	evicted := 0
	for host, slot := range p.slots {
		if slot.inUse == 0 && !slot.lastRelease.IsZero() && time.Since(slot.lastRelease) >= maxIdle {
			delete(p.slots, host)
			evicted++
		}
	}
	if evicted > 0 {
		p.log.Debugf("Evicted %d idle host semaphores, %d remain", evicted, len(p.slots))
	}
}

// Len returns the number of tracked hosts
func (p *HostSemaphorePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}
