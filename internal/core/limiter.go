package core

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// senderLimiter hands out one token bucket per sender.
type senderLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets map[string]*bucket
	idle    time.Duration
	now     func() time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func newSenderLimiter(perMinute, burst int) *senderLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &senderLimiter{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   burst,
		buckets: make(map[string]*bucket),
		idle:    10 * time.Minute,
		now:     time.Now,
	}
}

// Allow reports whether sender may run another command now. A nil limiter
// allows everything.
func (l *senderLimiter) Allow(sender string) bool {
	if l == nil {
		return true
	}
	key := strings.ToLower(sender)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst), seen: now}
		l.buckets[key] = b
		l.sweep(now)
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// sweep forgets senders idle long enough for their bucket to be full again.
func (l *senderLimiter) sweep(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.seen) > l.idle {
			delete(l.buckets, k)
		}
	}
}
