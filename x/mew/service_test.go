package mew

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/meowerlab/meower/core"
	"github.com/meowerlab/meower/core/mock"
	"github.com/meowerlab/meower/x/mew/mock"
	"github.com/meowerlab/meower/x/moderation"
	"github.com/meowerlab/meower/x/ratelimit"
)

// memoryRepository keeps mews in a slice and mimics the ordering of the database
type memoryRepository struct {
	mu   sync.Mutex
	mews []core.Mew
	seq  int64
	err  error
}

func (r *memoryRepository) Create(_ context.Context, mew core.Mew) (core.Mew, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return core.Mew{}, r.err
	}
	r.seq++
	mew.Seq = r.seq
	mew.ID = fmt.Sprintf("mew%017d", r.seq)
	r.mews = append(r.mews, mew)
	return mew, nil
}

func (r *memoryRepository) List(_ context.Context) ([]core.Mew, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return append([]core.Mew{}, r.mews...), nil
}

func (r *memoryRepository) Range(_ context.Context, skip, limit int64, direction core.SortDirection) ([]core.Mew, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}

	sorted := append([]core.Mew{}, r.mews...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.Created.Equal(b.Created) {
			if direction == core.SortAscending {
				return a.Created.Before(b.Created)
			}
			return a.Created.After(b.Created)
		}
		if direction == core.SortAscending {
			return a.Seq < b.Seq
		}
		return a.Seq > b.Seq
	})

	if skip >= int64(len(sorted)) {
		return []core.Mew{}, nil
	}
	end := int64(len(sorted))
	if limit < end-skip {
		end = skip + limit
	}
	return sorted[skip:end], nil
}

func (r *memoryRepository) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	return int64(len(r.mews)), nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func text(s string) Text {
	return Text{Value: s, Present: s != ""}
}

func TestServiceCreate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	stamp := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.FixedZone("JST", 9*60*60))

	mockLimiter := mock_core.NewMockRateLimiter(ctrl)
	mockLimiter.EXPECT().Allow(gomock.Any(), "10.0.0.1").Return(core.RateLimitDecision{Allowed: true}, nil)

	mockModerator := mock_core.NewMockModerator(ctrl)
	mockModerator.EXPECT().Clean("Ann").Return("Ann")
	mockModerator.EXPECT().Clean("hello there").Return("hello there")

	mockRepo := mock_mew.NewMockRepository(ctrl)
	mockRepo.EXPECT().
		Create(gomock.Any(), core.Mew{
			Name:    "Ann",
			Content: "hello there",
			Created: stamp.UTC().Truncate(time.Millisecond),
		}).
		DoAndReturn(func(_ context.Context, mew core.Mew) (core.Mew, error) {
			mew.ID = "cnk7aopq1bvmkpkfgdo0"
			return mew, nil
		})

	s := &service{mockRepo, mockLimiter, mockModerator, func() time.Time { return stamp }}

	created, err := s.Create(context.Background(), "10.0.0.1", CreateInput{
		Name:    text("  Ann "),
		Content: text("\thello there\n"),
	})
	if !assert.NoError(t, err) {
		return
	}

	assert.Equal(t, "cnk7aopq1bvmkpkfgdo0", created.ID)
	assert.Equal(t, "Ann", created.Name)
	assert.Equal(t, "hello there", created.Content)
	assert.Equal(t, time.UTC, created.Created.Location())
	assert.Equal(t, 123000000, created.Created.Nanosecond())
}

func TestServiceCreateThrottled(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLimiter := mock_core.NewMockRateLimiter(ctrl)
	mockLimiter.EXPECT().
		Allow(gomock.Any(), "10.0.0.1").
		Return(core.RateLimitDecision{Allowed: false, RetryAfter: 20 * time.Second}, nil)

	// neither the moderator nor the repository may be touched
	mockModerator := mock_core.NewMockModerator(ctrl)
	mockRepo := mock_mew.NewMockRepository(ctrl)

	s := NewService(mockRepo, mockLimiter, mockModerator)

	_, err := s.Create(context.Background(), "10.0.0.1", CreateInput{Name: text("Ann"), Content: text("hi")})

	var limited core.ErrorRateLimited
	if assert.ErrorAs(t, err, &limited) {
		assert.Equal(t, 20*time.Second, limited.RetryAfter)
	}
}

func TestServiceCreateInvalid(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLimiter := mock_core.NewMockRateLimiter(ctrl)
	mockLimiter.EXPECT().Allow(gomock.Any(), gomock.Any()).Return(core.RateLimitDecision{Allowed: true}, nil).AnyTimes()
	mockModerator := mock_core.NewMockModerator(ctrl)
	mockRepo := mock_mew.NewMockRepository(ctrl)

	s := NewService(mockRepo, mockLimiter, mockModerator)

	inputs := []CreateInput{
		{},
		{Name: text("Ann")},
		{Content: text("hi")},
		{Name: text("   "), Content: text("hi")},
		{Name: text("Ann"), Content: text(fmt.Sprintf("%0141d", 0))},
	}
	for _, input := range inputs {
		_, err := s.Create(context.Background(), "10.0.0.1", input)
		assert.ErrorIs(t, err, core.NewErrorInvalidMew())
	}
}

func TestServiceCreateLimiterFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLimiter := mock_core.NewMockRateLimiter(ctrl)
	mockLimiter.EXPECT().Allow(gomock.Any(), gomock.Any()).Return(core.RateLimitDecision{}, errors.New("redis down"))

	s := NewService(mock_mew.NewMockRepository(ctrl), mockLimiter, mock_core.NewMockModerator(ctrl))

	_, err := s.Create(context.Background(), "10.0.0.1", CreateInput{Name: text("Ann"), Content: text("hi")})
	assert.EqualError(t, err, "redis down")
}

func TestServiceCreateRateLimitWindow(t *testing.T) {
	clock := newTestClock()
	repo := &memoryRepository{}
	moderator, err := moderation.NewDefaultModerator(nil, '*')
	if !assert.NoError(t, err) {
		return
	}
	limiter := ratelimit.NewMemoryStore(30*time.Second, 1, ratelimit.WithClock(clock.Now))

	s := &service{repo, limiter, moderator, clock.Now}
	ctx := context.Background()
	input := CreateInput{Name: text("Ann"), Content: text("hi")}

	_, err = s.Create(ctx, "10.0.0.1", input)
	assert.NoError(t, err)

	clock.Advance(10 * time.Second)
	_, err = s.Create(ctx, "10.0.0.1", input)
	assert.ErrorAs(t, err, &core.ErrorRateLimited{})

	// other clients are unaffected
	_, err = s.Create(ctx, "10.0.0.2", input)
	assert.NoError(t, err)

	clock.Advance(21 * time.Second)
	_, err = s.Create(ctx, "10.0.0.1", input)
	assert.NoError(t, err)

	count, err := s.Count(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestServiceCreateModerates(t *testing.T) {
	moderator, err := moderation.NewDefaultModerator(nil, '*')
	if !assert.NoError(t, err) {
		return
	}
	repo := &memoryRepository{}
	s := NewService(repo, ratelimit.NewMemoryStore(30*time.Second, 1), moderator)

	content := "well damn, " + fmt.Sprintf("%0129d", 0)
	created, err := s.Create(context.Background(), "10.0.0.1", CreateInput{
		Name:    text("Ann"),
		Content: text(content),
	})
	if !assert.NoError(t, err) {
		return
	}

	assert.Equal(t, "well ****, "+fmt.Sprintf("%0129d", 0), created.Content)
	assert.Len(t, []rune(created.Content), 140)
	assert.NoError(t, Validate(created.Name, created.Content))

	stored, err := repo.List(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []core.Mew{created}, stored)
}

func TestServiceListPage(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mews := []core.Mew{{ID: "a"}, {ID: "b"}}

	mockRepo := mock_mew.NewMockRepository(ctrl)
	mockRepo.EXPECT().Count(gomock.Any()).Return(int64(12), nil).Times(3)
	mockRepo.EXPECT().Range(gomock.Any(), int64(10), int64(5), core.SortDescending).Return(mews, nil)
	mockRepo.EXPECT().Range(gomock.Any(), int64(0), int64(50), core.SortAscending).Return(mews, nil)
	mockRepo.EXPECT().Range(gomock.Any(), int64(2), int64(1), core.SortDescending).Return(mews[:1], nil)

	s := NewService(mockRepo, mock_core.NewMockRateLimiter(ctrl), mock_core.NewMockModerator(ctrl))
	ctx := context.Background()

	page, err := s.ListPage(ctx, PageQuery{Skip: "10"})
	assert.NoError(t, err)
	assert.Equal(t, mews, page.Mews)
	assert.Equal(t, core.PageMeta{Total: 12, Skip: 10, Limit: 5, HasMore: false}, page.Meta)

	page, err = s.ListPage(ctx, PageQuery{Skip: "-5", Limit: "100", Sort: "asc"})
	assert.NoError(t, err)
	assert.Equal(t, core.PageMeta{Total: 12, Skip: 0, Limit: 50, HasMore: false}, page.Meta)

	page, err = s.ListPage(ctx, PageQuery{Skip: "2", Limit: "0", Sort: "desc"})
	assert.NoError(t, err)
	assert.Equal(t, core.PageMeta{Total: 12, Skip: 2, Limit: 1, HasMore: true}, page.Meta)
}

func TestServiceListPageCountFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mock_mew.NewMockRepository(ctrl)
	mockRepo.EXPECT().Count(gomock.Any()).Return(int64(0), errors.New("db down"))

	s := NewService(mockRepo, mock_core.NewMockRateLimiter(ctrl), mock_core.NewMockModerator(ctrl))

	_, err := s.ListPage(context.Background(), PageQuery{})
	assert.EqualError(t, err, "db down")
}

func TestServiceListIdempotent(t *testing.T) {
	repo := &memoryRepository{}
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := repo.Create(ctx, core.Mew{Name: "Ann", Content: fmt.Sprint(i)})
		assert.NoError(t, err)
	}

	s := NewService(repo, ratelimit.NewMemoryStore(30*time.Second, 1), nil)

	first, err := s.List(ctx)
	assert.NoError(t, err)
	second, err := s.List(ctx)
	assert.NoError(t, err)

	assert.Len(t, first, 3)
	assert.Equal(t, first, second)
	assert.Equal(t, "0", first[0].Content)
	assert.Equal(t, "2", first[2].Content)
}
