package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/meowerlab/meower/core"
)

// MemoryStore is a fixed window counter per identity kept in process memory.
// A window opens on the first request of an identity and lasts for window.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
	window  time.Duration
	max     int
	now     func() time.Time
}

type windowEntry struct {
	start time.Time
	count int
}

type MemoryStoreOption func(*MemoryStore)

// WithClock replaces time.Now
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) { s.now = now }
}

func NewMemoryStore(window time.Duration, max int, opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*windowEntry),
		window:  window,
		max:     max,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allow implements core.RateLimiter
func (s *MemoryStore) Allow(_ context.Context, identity string) (core.RateLimitDecision, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[identity]
	if !ok || !now.Before(ent.start.Add(s.window)) {
		ent = &windowEntry{start: now}
		s.entries[identity] = ent
	}

	if ent.count >= s.max {
		return core.RateLimitDecision{Allowed: false, RetryAfter: ent.start.Add(s.window).Sub(now)}, nil
	}

	ent.count++
	return core.RateLimitDecision{Allowed: true}, nil
}

// Cleanup drops every identity whose window has ended
func (s *MemoryStore) Cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if !now.Before(ent.start.Add(s.window)) {
			delete(s.entries, k)
		}
	}
}

// Len returns the number of tracked identities
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
