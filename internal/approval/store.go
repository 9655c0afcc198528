package approval

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweep interval floor. Short TTLs still get frequent-enough sweeps without
// waking up excessively for long ones.
const minSweepInterval = 30 * time.Second

// ExpiryFunc is invoked by the sweep for each entry removed on TTL. It is
// called outside the store lock; a panicking callback is recovered per entry
// and never stops the sweep.
type ExpiryFunc func(p *Pending)

// Store tracks pending approvals. All operations are total: absent keys
// yield false/nil, never errors. A background sweep removes entries older
// than the TTL and reports them through the expiry callback.
type Store struct {
	mu        sync.Mutex
	entries   map[string]*Pending
	processed int64

	ttl      time.Duration
	onExpire ExpiryFunc
	now      func() time.Time

	running bool
	cancel  context.CancelFunc
}

// NewStore creates a store with the given TTL and expiry callback.
// onExpire may be nil.
func NewStore(ttl time.Duration, onExpire ExpiryFunc) *Store {
	return &Store{
		entries:  make(map[string]*Pending),
		ttl:      ttl,
		onExpire: onExpire,
		now:      time.Now,
	}
}

// Add inserts a pending entry. No uniqueness check is performed: adding an
// existing ID overwrites silently, duplicate suppression is the caller's
// responsibility (the bridge checks Has first).
func (s *Store) Add(id, channel string, handle Handle, info Info) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = &Pending{
		Channel: channel,
		Handle:  handle,
		Info:    info,
		SentAt:  s.now(),
	}
}

// Has reports whether an entry with the given ID is pending.
func (s *Store) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[id]
	return ok
}

// Get returns the pending entry for id, or nil.
func (s *Store) Get(id string) *Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[id]
}

// Resolve removes the entry for id and returns it so the caller can edit the
// delivered message. Returns nil and leaves counters untouched if absent.
func (s *Store) Resolve(id string) *Pending {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.entries[id]
	if !ok {
		return nil
	}
	delete(s.entries, id)
	s.processed++
	return p
}

// Entries returns a snapshot of the pending set keyed by ID. The map is a
// copy; mutating it does not affect the store.
func (s *Store) Entries() map[string]*Pending {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]*Pending, len(s.entries))
	for id, p := range s.entries {
		out[id] = p
	}
	return out
}

// PendingCount returns the number of pending entries.
func (s *Store) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// ProcessedCount returns how many entries were resolved over the store's
// lifetime. Expiry does not count as processing.
func (s *Store) ProcessedCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed
}

// CleanStale removes every entry older than the TTL and invokes the expiry
// callback for each. Removal is unconditional; only the notification can
// fail, and a failing callback does not affect the removal count or the
// remaining entries. Returns the number removed.
func (s *Store) CleanStale() int {
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	var expired []*Pending
	for id, p := range s.entries {
		if p.SentAt.Before(cutoff) {
			expired = append(expired, p)
			delete(s.entries, id)
		}
	}
	s.mu.Unlock()

	for _, p := range expired {
		s.notifyExpired(p)
	}
	return len(expired)
}

func (s *Store) notifyExpired(p *Pending) {
	if s.onExpire == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("approval expiry callback panicked", "id", p.Info.ID, "panic", r)
		}
	}()
	s.onExpire(p)
}

// Start launches the periodic sweep. Idempotent: a second Start while
// running is a no-op.
func (s *Store) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true

	go s.sweepLoop(ctx)
	slog.Info("approval store sweep started", "ttl", s.ttl, "interval", s.sweepInterval())
}

// Stop cancels the sweep. Safe to call when never started, and safe to call
// twice. Pending deliveries in flight are not waited for.
func (s *Store) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cancel()
	s.running = false
	slog.Info("approval store sweep stopped")
}

func (s *Store) sweepInterval() time.Duration {
	interval := s.ttl / 2
	if interval < minSweepInterval {
		interval = minSweepInterval
	}
	return interval
}

func (s *Store) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.CleanStale(); n > 0 {
				slog.Info("approval store sweep removed stale entries", "count", n)
			}
		}
	}
}
