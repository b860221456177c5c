package session

import (
	"context"
	"sync"
	"time"
)

// DefaultPruneInterval is the minimum spacing between two TryPrune runs.
const DefaultPruneInterval = time.Minute

// Pruner evicts idle sessions and drops their lanes. Sessions whose lane is
// busy are never evicted, so an in-flight turn keeps its history.
type Pruner struct {
	mu       sync.Mutex
	store    *Store
	lanes    *LaneLock
	maxIdle  time.Duration
	interval time.Duration
	lastRun  time.Time
	now      func() time.Time
}

// NewPruner creates a pruner evicting sessions idle longer than maxIdle.
// A non-positive interval selects DefaultPruneInterval.
func NewPruner(store *Store, lanes *LaneLock, maxIdle, interval time.Duration) *Pruner {
	if interval <= 0 {
		interval = DefaultPruneInterval
	}
	return &Pruner{
		store:    store,
		lanes:    lanes,
		maxIdle:  maxIdle,
		interval: interval,
		now:      time.Now,
	}
}

// TryPrune prunes if at least one interval has passed since the last run.
// It returns the number of sessions evicted, 0 when rate-limited.
func (p *Pruner) TryPrune(ctx context.Context) int {
	p.mu.Lock()
	now := p.now()
	if now.Sub(p.lastRun) < p.interval {
		p.mu.Unlock()
		return 0
	}
	p.lastRun = now
	p.mu.Unlock()

	return p.prune(ctx)
}

// Prune runs immediately, regardless of the rate limit.
func (p *Pruner) Prune(ctx context.Context) int {
	p.mu.Lock()
	p.lastRun = p.now()
	p.mu.Unlock()

	return p.prune(ctx)
}

func (p *Pruner) prune(ctx context.Context) int {
	var skip func(string) bool
	if p.lanes != nil {
		skip = p.lanes.Busy
	}
	n := p.store.Prune(ctx, p.maxIdle, skip)
	if p.lanes != nil {
		p.lanes.Cleanup(p.store.ActiveIDs())
	}
	return n
}
