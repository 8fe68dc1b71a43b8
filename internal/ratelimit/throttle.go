package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Throttle spaces outbound messages at least Interval apart across every
// caller sharing it. Callers reserve the next free slot under the lock and
// sleep outside it, so concurrent emitters are served in reservation order.
type Throttle struct {
	interval time.Duration
	mu       sync.Mutex
	next     time.Time
	now      func() time.Time
}

// NewThrottle creates a throttle allowing one emission per interval.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{interval: interval, now: time.Now}
}

// Wait blocks until the caller's slot arrives. It returns how long the
// caller waited. A cancelled context gives up the wait but not the slot.
func (t *Throttle) Wait(ctx context.Context) (time.Duration, error) {
	t.mu.Lock()
	now := t.now()
	slot := t.next
	if slot.Before(now) {
		slot = now
	}
	t.next = slot.Add(t.interval)
	t.mu.Unlock()

	wait := slot.Sub(now)
	if wait <= 0 {
		return 0, nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return wait, ctx.Err()
	case <-timer.C:
		return wait, nil
	}
}
