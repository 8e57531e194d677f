// Package agent runs some scheduled tasks
package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"

	"github.com/meowerlab/meower/x/util"
)

var tracer = otel.Tracer("agent")

const metricsInterval = 15 * time.Second

var resourceCountMetrics = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "meower_resources_count",
		Help: "resources count",
	},
	[]string{"type"},
)

// Collectors returns the prometheus collectors of this package
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{resourceCountMetrics}
}

// Counter reports the number of stored mews
type Counter interface {
	Count(ctx context.Context) (int64, error)
}

// Sweeper drops expired rate limit state
type Sweeper interface {
	Sweep()
}

// Agent runs background maintenance until its context ends
type Agent interface {
	Boot(ctx context.Context)
}

type agent struct {
	mews            Counter
	limiter         Sweeper
	sweepInterval   time.Duration
	metricsInterval time.Duration
}

// NewAgent creates a new agent
func NewAgent(mews Counter, limiter Sweeper, config util.Config) Agent {
	return &agent{
		mews:            mews,
		limiter:         limiter,
		sweepInterval:   config.RateLimit.CleanupEvery(),
		metricsInterval: metricsInterval,
	}
}

// Boot starts agent
func (a *agent) Boot(ctx context.Context) {
	slog.Info("agent start!", slog.String("module", "agent"))

	if a.sweepInterval > 0 {
		go a.every(ctx, a.sweepInterval, "Agent.Boot.SweepRateLimits", a.sweepRateLimits)
	}
	go a.every(ctx, a.metricsInterval, "Agent.Boot.RefreshMetrics", a.refreshMetrics)
}

func (a *agent) every(ctx context.Context, interval time.Duration, name string, task func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ctx, span := tracer.Start(ctx, name)
			task(ctx)
			span.End()
		}
	}
}

func (a *agent) sweepRateLimits(ctx context.Context) {
	_, span := tracer.Start(ctx, "Agent.SweepRateLimits")
	defer span.End()

	a.limiter.Sweep()
}

func (a *agent) refreshMetrics(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "Agent.RefreshMetrics")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	count, err := a.mews.Count(ctx)
	if err != nil {
		span.RecordError(err)
		slog.ErrorContext(
			ctx, "failed to count mews",
			slog.String("error", err.Error()),
			slog.String("module", "agent"),
		)
		return
	}
	resourceCountMetrics.WithLabelValues("mew").Set(float64(count))
}
