// Package ratelimit throttles how often a single client identity may create mews
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/meowerlab/meower/core"
	"github.com/meowerlab/meower/x/util"
)

var tracer = otel.Tracer("ratelimit")

var decisions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "meower_ratelimit_decisions_total",
		Help: "rate limit decisions",
	},
	[]string{"backend", "result"},
)

// Collectors returns the prometheus collectors of this package
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{decisions}
}

// sweeper is implemented by backends holding per identity state in process memory
type sweeper interface {
	Cleanup()
}

// Limiter decorates a backend with tracing and metrics
type Limiter struct {
	backend core.RateLimiter
	name    string
}

// NewLimiter wraps backend; name labels its metrics
func NewLimiter(backend core.RateLimiter, name string) *Limiter {
	return &Limiter{backend: backend, name: name}
}

// NewFromConfig builds the backend selected by the configuration
func NewFromConfig(rdb *redis.Client, config util.Config) (*Limiter, error) {
	rc := config.RateLimit
	window := rc.Window()
	if window <= 0 {
		return nil, fmt.Errorf("rate limit window must be positive, got %s", window)
	}
	if rc.Max <= 0 {
		return nil, fmt.Errorf("rate limit max must be positive, got %d", rc.Max)
	}

	switch rc.Backend {
	case "", "memory":
		return NewLimiter(NewMemoryStore(window, rc.Max), "memory"), nil
	case "token":
		return NewLimiter(NewTokenStore(window, rc.Max), "token"), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("rate limit backend redis requires server.redisAddr")
		}
		return NewLimiter(NewRedisStore(rdb, rc.RedisPrefix, window, rc.Max), "redis"), nil
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q", rc.Backend)
	}
}

// Allow implements core.RateLimiter
func (l *Limiter) Allow(ctx context.Context, identity string) (core.RateLimitDecision, error) {
	ctx, span := tracer.Start(ctx, "RateLimit.Limiter.Allow")
	defer span.End()

	decision, err := l.backend.Allow(ctx, identity)
	if err != nil {
		span.RecordError(err)
		return decision, err
	}

	span.SetAttributes(
		attribute.String("ratelimit.backend", l.name),
		attribute.Bool("ratelimit.allowed", decision.Allowed),
	)

	result := "allowed"
	if !decision.Allowed {
		result = "denied"
		slog.DebugContext(
			ctx, "rate limited",
			slog.String("module", "ratelimit"),
			slog.String("identity", identity),
			slog.Duration("retryAfter", decision.RetryAfter),
		)
	}
	decisions.WithLabelValues(l.name, result).Inc()

	return decision, nil
}

// Sweep drops expired identities.
// Backends without process local state need no sweeping.
func (l *Limiter) Sweep() {
	s, ok := l.backend.(sweeper)
	if !ok {
		return
	}
	s.Cleanup()
}
