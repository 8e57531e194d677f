//go:generate go run go.uber.org/mock/mockgen -source=interfaces.go -destination=mock/services.go
package core

import (
	"context"
	"time"
)

// Moderator replaces disallowed words in a text.
// Clean must be deterministic and never fail.
type Moderator interface {
	Clean(text string) string
}

// RateLimitDecision is the outcome of a single rate limit check
type RateLimitDecision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// RateLimiter bounds how often one client identity may pass.
// Allow must count and decide atomically per identity.
type RateLimiter interface {
	Allow(ctx context.Context, identity string) (RateLimitDecision, error)
}
