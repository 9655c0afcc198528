package channels

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SendLimiter throttles outbound platform calls per key (chat or channel ID)
// with a token bucket, so bursts of approvals do not trip platform flood
// limits.
type SendLimiter struct {
	limiters sync.Map   // key → *senderEntry
	r        rate.Limit // refill rate (requests per second)
	burst    int
	done     chan struct{}
	stopOnce sync.Once
}

type senderEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewSendLimiter creates a limiter allowing rpm requests per minute per key.
// If rpm <= 0 the limiter is disabled (never waits).
func NewSendLimiter(rpm, burst int) *SendLimiter {
	if burst <= 0 {
		burst = 3
	}
	r := rate.Limit(0)
	if rpm > 0 {
		r = rate.Limit(float64(rpm) / 60.0)
	}
	sl := &SendLimiter{r: r, burst: burst, done: make(chan struct{})}
	go sl.cleanupLoop()
	return sl
}

// Stop terminates the cleanup goroutine. Safe to call twice.
func (sl *SendLimiter) Stop() {
	sl.stopOnce.Do(func() { close(sl.done) })
}

// Wait blocks until a send to key is allowed or ctx is cancelled.
func (sl *SendLimiter) Wait(ctx context.Context, key string) error {
	if sl.r == 0 {
		return nil
	}
	return sl.getOrCreate(key).limiter.Wait(ctx)
}

func (sl *SendLimiter) getOrCreate(key string) *senderEntry {
	if v, ok := sl.limiters.Load(key); ok {
		entry := v.(*senderEntry)
		entry.lastSeen = time.Now()
		return entry
	}
	entry := &senderEntry{
		limiter:  rate.NewLimiter(sl.r, sl.burst),
		lastSeen: time.Now(),
	}
	actual, _ := sl.limiters.LoadOrStore(key, entry)
	return actual.(*senderEntry)
}

// cleanupLoop drops buckets idle for more than 10 minutes.
func (sl *SendLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-sl.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-10 * time.Minute)
			sl.limiters.Range(func(key, v interface{}) bool {
				if v.(*senderEntry).lastSeen.Before(cutoff) {
					sl.limiters.Delete(key)
				}
				return true
			})
		}
	}
}
