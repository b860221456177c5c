// Package crontest provides test doubles for cron jobs.
package crontest

import (
	"context"
	"sync"
	"time"
)

// MockPruner counts Prune calls and reports a fixed eviction count.
type MockPruner struct {
	Evicted int

	mu    sync.Mutex
	calls int
}

// Prune records the call.
func (m *MockPruner) Prune(context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.Evicted
}

// Calls returns how many times Prune ran.
func (m *MockPruner) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// FixedCount reports a constant session count.
type FixedCount int

// Len returns the count.
func (c FixedCount) Len() int { return int(c) }

// MockGauge remembers the last active-session value.
type MockGauge struct {
	mu   sync.Mutex
	last int
}

// SetActiveSessions records n.
func (g *MockGauge) SetActiveSessions(n int) {
	g.mu.Lock()
	g.last = n
	g.mu.Unlock()
}

// Last returns the most recent value.
func (g *MockGauge) Last() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

// MockSweeper records the cutoffs it was asked to sweep.
type MockSweeper struct {
	Removed int
	Err     error

	mu      sync.Mutex
	maxAges []time.Duration
}

// Sweep records maxAge.
func (m *MockSweeper) Sweep(maxAge time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxAges = append(m.maxAges, maxAge)
	return m.Removed, m.Err
}

// MaxAges returns every cutoff seen so far.
func (m *MockSweeper) MaxAges() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.maxAges...)
}

// MockLimiter counts Sweep calls.
type MockLimiter struct {
	Dropped int

	mu    sync.Mutex
	calls int
}

// Sweep records the call.
func (m *MockLimiter) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.Dropped
}

// Calls returns how many times Sweep ran.
func (m *MockLimiter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
