package mew

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/meowerlab/meower/core"
	"github.com/meowerlab/meower/x/paging"
)

// Service is the request pipeline of mews
type Service interface {
	List(ctx context.Context) ([]core.Mew, error)
	ListPage(ctx context.Context, query PageQuery) (core.Page, error)
	Create(ctx context.Context, identity string, input CreateInput) (core.Mew, error)
	Count(ctx context.Context) (int64, error)
}

type service struct {
	repo      Repository
	limiter   core.RateLimiter
	moderator core.Moderator
	now       func() time.Time
}

// NewService creates a new mew service
func NewService(repo Repository, limiter core.RateLimiter, moderator core.Moderator) Service {
	return &service{repo, limiter, moderator, time.Now}
}

// List returns every mew in insertion order
func (s *service) List(ctx context.Context) ([]core.Mew, error) {
	ctx, span := tracer.Start(ctx, "Mew.Service.List")
	defer span.End()

	return s.repo.List(ctx)
}

// ListPage returns one window of mews and its metadata.
// The count and the window are two independent reads.
func (s *service) ListPage(ctx context.Context, query PageQuery) (core.Page, error) {
	ctx, span := tracer.Start(ctx, "Mew.Service.ListPage")
	defer span.End()

	plan := paging.NewPlan(query.Skip, query.Limit, query.Sort)
	span.SetAttributes(
		attribute.Int64("skip", plan.Skip),
		attribute.Int64("limit", plan.Limit),
		attribute.String("sort", plan.Sort.String()),
	)

	total, err := s.repo.Count(ctx)
	if err != nil {
		span.RecordError(err)
		return core.Page{}, err
	}

	mews, err := s.repo.Range(ctx, plan.Skip, plan.Limit, plan.Sort)
	if err != nil {
		span.RecordError(err)
		return core.Page{}, err
	}

	return core.Page{Mews: mews, Meta: plan.Meta(total)}, nil
}

// Create throttles, validates, moderates and persists a new mew
func (s *service) Create(ctx context.Context, identity string, input CreateInput) (core.Mew, error) {
	ctx, span := tracer.Start(ctx, "Mew.Service.Create")
	defer span.End()

	decision, err := s.limiter.Allow(ctx, identity)
	if err != nil {
		span.RecordError(err)
		return core.Mew{}, err
	}
	if !decision.Allowed {
		return core.Mew{}, core.NewErrorRateLimited(decision.RetryAfter)
	}

	name := input.Name.Trimmed()
	content := input.Content.Trimmed()
	if err := Validate(name, content); err != nil {
		return core.Mew{}, err
	}

	mew := core.Mew{
		Name:    s.moderator.Clean(name),
		Content: s.moderator.Clean(content),
		Created: s.now().UTC().Truncate(time.Millisecond),
	}

	created, err := s.repo.Create(ctx, mew)
	if err != nil {
		span.RecordError(err)
		return core.Mew{}, err
	}

	slog.InfoContext(
		ctx, "mew created",
		slog.String("id", created.ID),
		slog.String("module", "mew"),
	)

	return created, nil
}

// Count returns the total number of mews
func (s *service) Count(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "Mew.Service.Count")
	defer span.End()

	return s.repo.Count(ctx)
}
