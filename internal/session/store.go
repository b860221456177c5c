package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/echomate/echomate/internal/provider"
)

// persistTimeout bounds each write-behind call to the Persister.
const persistTimeout = 5 * time.Second

type entry struct {
	id           string
	createdAt    time.Time
	lastActiveAt time.Time
	restored     bool
	history      []provider.LLMMessage
}

func (e *entry) view() Session {
	return Session{
		ID:           e.id,
		CreatedAt:    e.createdAt,
		LastActiveAt: e.lastActiveAt,
		Pairs:        len(e.history) / 2,
		Restored:     e.restored,
	}
}

// Store is a concurrency-safe, keyed session memory. Histories are only
// ever exposed as copies.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	maxPairs      int
	persister     Persister
	restoreWindow time.Duration
	logger        *slog.Logger

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithPersister mirrors history to p and restores it when a session is
// recreated after a restart.
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

// WithRestoreWindow skips restoring persisted history that was last
// updated longer ago than d. Zero restores regardless of age.
func WithRestoreWindow(d time.Duration) Option {
	return func(s *Store) { s.restoreWindow = d }
}

// WithLogger sets the logger used for persistence warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a store keeping at most maxPairs exchanges per session.
// It panics if maxPairs is not positive.
func NewStore(maxPairs int, opts ...Option) *Store {
	if maxPairs <= 0 {
		panic(fmt.Sprintf("session: maxPairs must be positive, got %d", maxPairs))
	}
	s := &Store{
		sessions: make(map[string]*entry),
		maxPairs: maxPairs,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxPairs returns the per-session history cap.
func (s *Store) MaxPairs() int {
	return s.maxPairs
}

// GetOrCreate returns the session for id, creating it with empty history
// (or restored history, when a Persister is set) if it does not exist.
// The session is marked active. The bool reports whether it was created.
func (s *Store) GetOrCreate(ctx context.Context, id string) (Session, bool) {
	s.mu.Lock()
	if e, ok := s.sessions[id]; ok {
		e.lastActiveAt = s.now()
		v := e.view()
		s.mu.Unlock()
		return v, false
	}
	s.mu.Unlock()

	// Load outside the lock; storage latency must not block other sessions.
	restored := s.restore(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another caller may have created it while we were loading.
	if e, ok := s.sessions[id]; ok {
		e.lastActiveAt = s.now()
		return e.view(), false
	}

	now := s.now()
	e := &entry{
		id:           id,
		createdAt:    now,
		lastActiveAt: now,
		restored:     len(restored) > 0,
		history:      restored,
	}
	s.sessions[id] = e
	return e.view(), true
}

func (s *Store) restore(ctx context.Context, id string) []provider.LLMMessage {
	if s.persister == nil {
		return nil
	}
	h, err := s.persister.Load(ctx, id, 2*s.maxPairs)
	if err != nil {
		s.logger.Warn("session: restoring history failed", "session_id", id, "error", err)
		return nil
	}
	if len(h.Messages) == 0 {
		return nil
	}
	if s.restoreWindow > 0 && s.now().Sub(h.UpdatedAt) > s.restoreWindow {
		s.purge(ctx, id)
		return nil
	}
	msgs := wellFormedPairs(h.Messages)
	if over := len(msgs) - 2*s.maxPairs; over > 0 {
		msgs = msgs[over:]
	}
	return msgs
}

// wellFormedPairs keeps only consecutive (user, assistant) pairs, so a
// history torn by a crash between two writes cannot break the even-length
// invariant.
func wellFormedPairs(msgs []provider.LLMMessage) []provider.LLMMessage {
	out := make([]provider.LLMMessage, 0, len(msgs))
	for i := 0; i+1 < len(msgs); {
		if msgs[i].Role == provider.MessageRoleUser && msgs[i+1].Role == provider.MessageRoleAssistant {
			out = append(out, msgs[i], msgs[i+1])
			i += 2
			continue
		}
		i++
	}
	return out
}

// AppendPair appends one exchange to id's history, evicting the oldest
// pair when the cap is exceeded. The history is never left half-updated.
func (s *Store) AppendPair(ctx context.Context, id string, user, assistant provider.LLMMessage) error {
	if user.Role != provider.MessageRoleUser || assistant.Role != provider.MessageRoleAssistant {
		return ErrInvalidPair
	}

	s.mu.Lock()
	e, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("append to %q: %w", id, ErrSessionNotFound)
	}
	e.history = append(e.history, user, assistant)
	if over := len(e.history) - 2*s.maxPairs; over > 0 {
		e.history = slices.Delete(e.history, 0, over)
	}
	e.lastActiveAt = s.now()
	s.mu.Unlock()

	if s.persister != nil {
		pctx, cancel := persistContext(ctx)
		defer cancel()
		if err := s.persister.Append(pctx, id, user, assistant); err != nil {
			s.logger.Warn("session: persisting pair failed", "session_id", id, "error", err)
		}
	}
	return nil
}

// Clear discards id's history. The session itself stays alive.
func (s *Store) Clear(ctx context.Context, id string) error {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("clear %q: %w", id, ErrSessionNotFound)
	}
	e.history = nil
	e.lastActiveAt = s.now()
	s.mu.Unlock()

	s.purge(ctx, id)
	return nil
}

// Snapshot returns a copy of id's history, oldest first.
func (s *Store) Snapshot(id string) ([]provider.LLMMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("snapshot %q: %w", id, ErrSessionNotFound)
	}
	return slices.Clone(e.history), nil
}

// Get returns the session for id.
func (s *Store) Get(id string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	return e.view(), true
}

// Touch marks id as active now. It is a no-op for unknown ids.
func (s *Store) Touch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[id]; ok {
		e.lastActiveAt = s.now()
	}
}

// Delete removes id and its persisted history. It reports whether the
// session existed.
func (s *Store) Delete(ctx context.Context, id string) bool {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		s.purge(ctx, id)
	}
	return ok
}

// Prune evicts sessions idle for longer than maxIdle and returns how many
// were removed. An expired session's persisted history is purged too, so
// the device starts over on its next turn. Sessions for which skip returns true are kept regardless;
// pass nil to consider every session.
func (s *Store) Prune(ctx context.Context, maxIdle time.Duration, skip func(id string) bool) int {
	s.mu.Lock()
	now := s.now()
	var evicted []string
	for id, e := range s.sessions {
		if now.Sub(e.lastActiveAt) <= maxIdle {
			continue
		}
		if skip != nil && skip(id) {
			continue
		}
		delete(s.sessions, id)
		evicted = append(evicted, id)
	}
	s.mu.Unlock()

	for _, id := range evicted {
		s.purge(ctx, id)
	}
	return len(evicted)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Range calls fn for each session until fn returns false. The store is
// read-locked for the whole iteration; keep fn fast.
func (s *Store) Range(fn func(Session) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.sessions {
		if !fn(e.view()) {
			return
		}
	}
}

// ActiveIDs returns a snapshot of live session ids.
func (s *Store) ActiveIDs() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make(map[string]struct{}, len(s.sessions))
	for id := range s.sessions {
		ids[id] = struct{}{}
	}
	return ids
}

func (s *Store) purge(ctx context.Context, id string) {
	if s.persister == nil {
		return
	}
	pctx, cancel := persistContext(ctx)
	defer cancel()
	if err := s.persister.Purge(pctx, id); err != nil {
		s.logger.Warn("session: purging history failed", "session_id", id, "error", err)
	}
}

// persistContext detaches write-behind calls from the caller's cancellation
// so a client hanging up right after a commit does not lose the write.
func persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
}
