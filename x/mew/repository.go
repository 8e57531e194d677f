//go:generate go run go.uber.org/mock/mockgen -source=repository.go -destination=mock/repository.go
package mew

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/pkg/errors"
	"github.com/rs/xid"
	"gorm.io/gorm"

	"github.com/meowerlab/meower/core"
)

const countCacheKey = "mew_count"

// countCacheTTL bounds how long a drifted count can survive
const countCacheTTL = 60

// Repository is the ordered collection of persisted mews
type Repository interface {
	Create(ctx context.Context, mew core.Mew) (core.Mew, error)
	List(ctx context.Context) ([]core.Mew, error)
	Range(ctx context.Context, skip, limit int64, sort core.SortDirection) ([]core.Mew, error)
	Count(ctx context.Context) (int64, error)
}

type repository struct {
	db *gorm.DB
	mc *memcache.Client
}

// NewRepository creates a new mew repository.
// mc may be nil, in which case every count hits the database.
func NewRepository(db *gorm.DB, mc *memcache.Client) Repository {
	r := &repository{db, mc}

	count, err := r.countFromDB(context.Background())
	if err != nil {
		slog.Error(
			"failed to count mews",
			slog.String("error", err.Error()),
			slog.String("module", "mew"),
		)
	} else {
		r.setCachedCount(count)
	}

	return r
}

// Create inserts a mew and assigns its id
func (r *repository) Create(ctx context.Context, mew core.Mew) (core.Mew, error) {
	ctx, span := tracer.Start(ctx, "Mew.Repository.Create")
	defer span.End()

	mew.ID = xid.New().String()

	err := r.db.WithContext(ctx).Create(&mew).Error
	if err != nil {
		span.RecordError(err)
		return core.Mew{}, errors.Wrap(err, "failed to create mew")
	}

	if r.mc != nil {
		_, err = r.mc.Increment(countCacheKey, 1)
		if err != nil {
			r.refreshCachedCount(ctx)
		}
	}

	return mew, nil
}

// List returns every mew in insertion order
func (r *repository) List(ctx context.Context) ([]core.Mew, error) {
	ctx, span := tracer.Start(ctx, "Mew.Repository.List")
	defer span.End()

	mews := []core.Mew{}
	err := r.db.WithContext(ctx).Order("seq ASC").Find(&mews).Error
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "failed to list mews")
	}

	return mews, nil
}

// Range returns the window [skip, skip+limit) of mews ordered by creation time
func (r *repository) Range(ctx context.Context, skip, limit int64, sort core.SortDirection) ([]core.Mew, error) {
	ctx, span := tracer.Start(ctx, "Mew.Repository.Range")
	defer span.End()

	order := "created DESC, seq DESC"
	if sort == core.SortAscending {
		order = "created ASC, seq ASC"
	}

	mews := []core.Mew{}
	err := r.db.WithContext(ctx).
		Order(order).
		Offset(int(skip)).
		Limit(int(limit)).
		Find(&mews).Error
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "failed to range mews")
	}

	return mews, nil
}

// Count returns the total number of mews, served from memcache when possible
func (r *repository) Count(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "Mew.Repository.Count")
	defer span.End()

	if r.mc != nil {
		item, err := r.mc.Get(countCacheKey)
		if err == nil {
			count, err := strconv.ParseInt(string(item.Value), 10, 64)
			if err == nil {
				return count, nil
			}
		}
	}

	count, err := r.countFromDB(ctx)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	// a create may have stored a newer count since the read above
	r.addCachedCount(count)

	return count, nil
}

func (r *repository) countFromDB(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&core.Mew{}).Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "failed to count mews")
	}
	return count, nil
}

func (r *repository) refreshCachedCount(ctx context.Context) {
	count, err := r.countFromDB(ctx)
	if err != nil {
		slog.ErrorContext(
			ctx, "failed to refresh mew count",
			slog.String("error", err.Error()),
			slog.String("module", "mew"),
		)
		return
	}
	r.setCachedCount(count)
}

func countItem(count int64) *memcache.Item {
	return &memcache.Item{
		Key:        countCacheKey,
		Value:      []byte(strconv.FormatInt(count, 10)),
		Expiration: countCacheTTL,
	}
}

func (r *repository) setCachedCount(count int64) {
	if r.mc == nil {
		return
	}
	err := r.mc.Set(countItem(count))
	if err != nil {
		slog.Warn(
			"failed to cache mew count",
			slog.String("error", err.Error()),
			slog.String("module", "mew"),
		)
	}
}

// addCachedCount stores count only when no entry exists
func (r *repository) addCachedCount(count int64) {
	if r.mc == nil {
		return
	}
	err := r.mc.Add(countItem(count))
	if err != nil && !errors.Is(err, memcache.ErrNotStored) {
		slog.Warn(
			"failed to cache mew count",
			slog.String("error", err.Error()),
			slog.String("module", "mew"),
		)
	}
}
