package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/meowerlab/meower/core"
)

// TokenStore is a token bucket per identity, refilling max tokens per window.
// With max 1 it never admits a second request within window of the previous one.
type TokenStore struct {
	mu      sync.Mutex
	entries map[string]*tokenEntry
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
}

type tokenEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type TokenStoreOption func(*TokenStore)

// WithTokenClock replaces time.Now
func WithTokenClock(now func() time.Time) TokenStoreOption {
	return func(s *TokenStore) { s.now = now }
}

func NewTokenStore(window time.Duration, max int, opts ...TokenStoreOption) *TokenStore {
	s := &TokenStore{
		entries: make(map[string]*tokenEntry),
		limit:   rate.Every(window / time.Duration(max)),
		burst:   max,
		idleTTL: window,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allow implements core.RateLimiter
func (s *TokenStore) Allow(_ context.Context, identity string) (core.RateLimitDecision, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[identity]
	if !ok {
		ent = &tokenEntry{lim: rate.NewLimiter(s.limit, s.burst)}
		s.entries[identity] = ent
	}
	ent.lastSeen = now

	if ent.lim.AllowN(now, 1) {
		return core.RateLimitDecision{Allowed: true}, nil
	}

	r := ent.lim.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	r.CancelAt(now)

	return core.RateLimitDecision{Allowed: false, RetryAfter: delay}, nil
}

// Cleanup drops identities idle long enough for their bucket to be full again
func (s *TokenStore) Cleanup() {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// Len returns the number of tracked identities
func (s *TokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
