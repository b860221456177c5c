package security

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when a client exceeds its turn budget.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitConfig bounds how many turns one client may submit.
type RateLimitConfig struct {
	// TurnsPerMinute is the sustained rate. Zero disables limiting.
	TurnsPerMinute int `yaml:"turns_per_minute"`

	// Burst is the bucket size. Defaults to TurnsPerMinute/6, at least 1.
	Burst int `yaml:"burst"`
}

// Enabled reports whether limiting is on.
func (c RateLimitConfig) Enabled() bool {
	return c.TurnsPerMinute > 0
}

// idleClientTTL is how long an untouched client bucket is kept.
const idleClientTTL = 10 * time.Minute

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter keeps one token bucket per client key (device id or
// remote IP). A disabled limiter allows everything.
type ClientLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientBucket
	limit   rate.Limit
	burst   int
	enabled bool

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time
}

// NewClientLimiter creates a limiter from cfg.
func NewClientLimiter(cfg RateLimitConfig) *ClientLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = max(cfg.TurnsPerMinute/6, 1)
	}
	return &ClientLimiter{
		clients: make(map[string]*clientBucket),
		limit:   rate.Limit(float64(cfg.TurnsPerMinute) / 60),
		burst:   burst,
		enabled: cfg.Enabled(),
		now:     time.Now,
	}
}

// Allow consumes one token for key, or returns ErrRateLimited.
func (l *ClientLimiter) Allow(key string) error {
	if !l.enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.clients[key]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = b
	}
	b.lastSeen = now
	if !b.limiter.AllowN(now, 1) {
		return ErrRateLimited
	}
	return nil
}

// Sweep drops buckets idle for longer than the TTL and returns how many
// were dropped. A dropped client starts again with a full bucket.
func (l *ClientLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-idleClientTTL)
	n := 0
	for key, b := range l.clients {
		if b.lastSeen.Before(cutoff) {
			delete(l.clients, key)
			n++
		}
	}
	return n
}

// Len returns the number of tracked clients.
func (l *ClientLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
