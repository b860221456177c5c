package session

import (
	"context"
	"testing"
	"time"
)

func TestPruner_RateLimited(t *testing.T) {
	t.Parallel()

	store, clock := newTestStore(5)
	ctx := context.Background()
	p := NewPruner(store, NewLaneLock(), time.Minute, 10*time.Minute)
	p.now = clock.Now

	store.GetOrCreate(ctx, "a")
	clock.Advance(11 * time.Minute)

	if n := p.TryPrune(ctx); n != 1 {
		t.Fatalf("first TryPrune = %d, want 1", n)
	}

	store.GetOrCreate(ctx, "b")
	clock.Advance(2 * time.Minute)
	if n := p.TryPrune(ctx); n != 0 {
		t.Errorf("TryPrune inside interval = %d, want 0", n)
	}
	if n := p.Prune(ctx); n != 1 {
		t.Errorf("forced Prune = %d, want 1", n)
	}
}

func TestPruner_KeepsBusySessions(t *testing.T) {
	t.Parallel()

	store, clock := newTestStore(5)
	ctx := context.Background()
	lanes := NewLaneLock()
	p := NewPruner(store, lanes, time.Minute, 0)
	p.now = clock.Now

	store.GetOrCreate(ctx, "in-flight")
	if err := lanes.Acquire(ctx, "in-flight"); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Hour)

	if n := p.Prune(ctx); n != 0 {
		t.Errorf("pruned = %d, want 0 while the lane is held", n)
	}
	lanes.Release("in-flight")

	if n := p.Prune(ctx); n != 1 {
		t.Errorf("pruned = %d, want 1 once idle", n)
	}
	if lanes.Len() != 0 {
		t.Errorf("lanes = %d, want 0 after cleanup", lanes.Len())
	}
}
