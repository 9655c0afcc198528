package approval

import (
	"testing"
	"time"
)

func TestStore_AddResolve(t *testing.T) {
	s := NewStore(2*time.Minute, nil)

	s.Add("x", "telegram", TelegramHandle{ChatID: 42, MessageID: 5}, Info{ID: "x"})
	if got := s.PendingCount(); got != 1 {
		t.Fatalf("PendingCount = %d, want 1", got)
	}
	if !s.Has("x") {
		t.Fatal("Has('x') = false after Add")
	}

	p := s.Resolve("x")
	if p == nil {
		t.Fatal("Resolve('x') returned nil")
	}
	h, ok := p.Handle.(TelegramHandle)
	if !ok {
		t.Fatalf("Handle type = %T, want TelegramHandle", p.Handle)
	}
	if h.MessageID != 5 {
		t.Errorf("MessageID = %d, want 5", h.MessageID)
	}

	if s.Has("x") {
		t.Error("Has('x') = true after Resolve")
	}
	if got := s.PendingCount(); got != 0 {
		t.Errorf("PendingCount = %d, want 0", got)
	}
	if got := s.ProcessedCount(); got != 1 {
		t.Errorf("ProcessedCount = %d, want 1", got)
	}

	// Resolving again is a no-op and does not touch the counter.
	if p := s.Resolve("x"); p != nil {
		t.Errorf("second Resolve returned %+v, want nil", p)
	}
	if got := s.ProcessedCount(); got != 1 {
		t.Errorf("ProcessedCount after double resolve = %d, want 1", got)
	}
}

func TestStore_EntriesSnapshot(t *testing.T) {
	s := NewStore(time.Minute, nil)
	s.Add("a", "slack", SlackHandle{Channel: "C1", Timestamp: "1.2"}, Info{ID: "a"})

	entries := s.Entries()
	if len(entries) != 1 {
		t.Fatalf("len(Entries) = %d, want 1", len(entries))
	}

	// Mutating the snapshot must not affect the store.
	delete(entries, "a")
	if !s.Has("a") {
		t.Error("deleting from the snapshot removed the entry from the store")
	}
}

func TestStore_CleanStaleTTLBoundary(t *testing.T) {
	var expired []*Pending
	s := NewStore(time.Minute, func(p *Pending) { expired = append(expired, p) })

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	s.Add("young", "telegram", TelegramHandle{MessageID: 1}, Info{ID: "young"})

	// Just under the TTL: nothing removed.
	s.now = func() time.Time { return base.Add(time.Minute - time.Second) }
	if n := s.CleanStale(); n != 0 {
		t.Fatalf("CleanStale before TTL = %d, want 0", n)
	}

	// Just past the TTL: removed and reported.
	s.now = func() time.Time { return base.Add(time.Minute + time.Second) }
	if n := s.CleanStale(); n != 1 {
		t.Fatalf("CleanStale past TTL = %d, want 1", n)
	}
	if s.PendingCount() != 0 {
		t.Errorf("PendingCount = %d, want 0", s.PendingCount())
	}
	if len(expired) != 1 || expired[0].Info.ID != "young" {
		t.Errorf("expiry callback got %+v, want the removed entry", expired)
	}
	if got := s.ProcessedCount(); got != 0 {
		t.Errorf("ProcessedCount = %d, want 0 (expiry is not processing)", got)
	}

	// Idempotent on an empty store.
	if n := s.CleanStale(); n != 0 {
		t.Errorf("CleanStale on empty store = %d, want 0", n)
	}
}

func TestStore_SweepSurvivesPanickingCallback(t *testing.T) {
	var notified []string
	s := NewStore(time.Minute, func(p *Pending) {
		if p.Info.ID == "a" {
			panic("boom")
		}
		notified = append(notified, p.Info.ID)
	})

	base := time.Now()
	s.now = func() time.Time { return base }
	s.Add("a", "telegram", TelegramHandle{MessageID: 1}, Info{ID: "a"})
	s.Add("b", "telegram", TelegramHandle{MessageID: 2}, Info{ID: "b"})

	s.now = func() time.Time { return base.Add(2 * time.Minute) }
	if n := s.CleanStale(); n != 2 {
		t.Errorf("CleanStale = %d, want 2 (count includes the panicked entry)", n)
	}
	if s.PendingCount() != 0 {
		t.Errorf("PendingCount = %d, want 0 (removal is unconditional)", s.PendingCount())
	}
	if len(notified) != 1 || notified[0] != "b" {
		t.Errorf("notified = %v, want [b]", notified)
	}
}

func TestStore_SweepInterval(t *testing.T) {
	tests := []struct {
		ttl  time.Duration
		want time.Duration
	}{
		{10 * time.Second, 30 * time.Second}, // floor applies
		{time.Minute, 30 * time.Second},
		{10 * time.Minute, 5 * time.Minute},
	}
	for _, tt := range tests {
		s := NewStore(tt.ttl, nil)
		if got := s.sweepInterval(); got != tt.want {
			t.Errorf("sweepInterval(ttl=%v) = %v, want %v", tt.ttl, got, tt.want)
		}
	}
}

func TestStore_StartStopIdempotent(t *testing.T) {
	s := NewStore(time.Minute, nil)

	// Stop before Start must be safe.
	s.Stop()

	s.Start()
	s.Start() // second Start must not spawn a second sweep
	if !s.running {
		t.Fatal("store not running after Start")
	}

	s.Stop()
	s.Stop()
	if s.running {
		t.Error("store still running after Stop")
	}
}
