package session

import (
	"context"
	"sync"
)

// LaneLock serializes work per session id: turns for the same session run
// one at a time, turns for different sessions run in parallel.
//
// A global mutex protects the lane map and is held only to look up or
// create a lane. Each lane is a one-slot semaphore, so waiting can be
// abandoned when the caller's context ends.
type LaneLock struct {
	mu    sync.Mutex
	lanes map[string]*lane
}

// refs counts holders and waiters; stale marks lanes whose session is gone
// so they are dropped once refs reaches zero.
type lane struct {
	sem   chan struct{}
	refs  int
	stale bool
}

// NewLaneLock creates a ready-to-use LaneLock.
func NewLaneLock() *LaneLock {
	return &LaneLock{lanes: make(map[string]*lane)}
}

// Acquire blocks until the lane for id is free or ctx is done. On success
// the caller must call Release(id).
func (l *LaneLock) Acquire(ctx context.Context, id string) error {
	l.mu.Lock()
	ln, ok := l.lanes[id]
	if !ok {
		ln = &lane{sem: make(chan struct{}, 1)}
		l.lanes[id] = ln
	}
	ln.refs++
	ln.stale = false
	l.mu.Unlock()

	select {
	case ln.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.unref(id, ln)
		return ctx.Err()
	}
}

// Release frees the lane for id. The caller must hold it.
func (l *LaneLock) Release(id string) {
	l.mu.Lock()
	ln, ok := l.lanes[id]
	l.mu.Unlock()
	if !ok {
		return
	}
	<-ln.sem
	l.unref(id, ln)
}

func (l *LaneLock) unref(id string, ln *lane) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ln.refs--
	if ln.refs == 0 && ln.stale {
		delete(l.lanes, id)
	}
}

// Busy reports whether a turn currently holds or waits for id's lane.
func (l *LaneLock) Busy(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	ln, ok := l.lanes[id]
	return ok && ln.refs > 0
}

// Cleanup drops lanes for sessions that no longer exist. Lanes still in
// use are marked stale and dropped on their last release.
func (l *LaneLock) Cleanup(active map[string]struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, ln := range l.lanes {
		if _, ok := active[id]; ok {
			ln.stale = false
			continue
		}
		ln.stale = true
		if ln.refs == 0 {
			delete(l.lanes, id)
		}
	}
}

// Len returns the number of tracked lanes.
func (l *LaneLock) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lanes)
}
