package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-lesson-api/internal/models"
	appErrors "github.com/noah-isme/sma-lesson-api/pkg/errors"
)

type cacheRepoStub struct {
	values   map[string]models.DaySchedule
	deleted  []string
	patterns []string
	getErr   error
}

func (r *cacheRepoStub) Get(ctx context.Context, key string, dest interface{}) error {
	if r.getErr != nil {
		return r.getErr
	}
	v, ok := r.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	*(dest.(*models.DaySchedule)) = v
	return nil
}

func (r *cacheRepoStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	r.values[key] = *(value.(*models.DaySchedule))
	return nil
}

func (r *cacheRepoStub) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		r.deleted = append(r.deleted, key)
		delete(r.values, key)
	}
	return nil
}

func (r *cacheRepoStub) DeleteByPattern(ctx context.Context, pattern string) error {
	r.patterns = append(r.patterns, pattern)
	return nil
}

func TestCacheServiceDayScheduleRoundTrip(t *testing.T) {
	repo := &cacheRepoStub{values: map[string]models.DaySchedule{}}
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, time.Minute, nil, true)
	ctx := context.Background()

	var dest models.DaySchedule
	hit, err := svc.Get(ctx, "bookings:day:2024-01-15", &dest)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, "bookings:day:2024-01-15", &models.DaySchedule{Date: jan(15)}, 0))
	hit, err = svc.Get(ctx, "bookings:day:2024-01-15", &dest)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "2024-01-15", dest.Date.String())

	require.NoError(t, svc.Invalidate(ctx, "bookings:day:2024-01-15"))
	assert.Equal(t, []string{"bookings:day:2024-01-15"}, repo.deleted)
	require.NoError(t, svc.Invalidate(ctx, "bookings:day:*"))
	assert.Equal(t, []string{"bookings:day:*"}, repo.patterns)

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.CacheHits)
	assert.Equal(t, uint64(1), snapshot.CacheMisses)
}

func TestCacheServiceDisabledAndErrors(t *testing.T) {
	repo := &cacheRepoStub{values: map[string]models.DaySchedule{}, getErr: errors.New("redis down")}
	disabled := NewCacheService(repo, nil, 0, nil, false)
	var dest models.DaySchedule
	hit, err := disabled.Get(context.Background(), "k", &dest)
	require.NoError(t, err)
	assert.False(t, hit)

	enabled := NewCacheService(repo, nil, 0, nil, true)
	hit, err = enabled.Get(context.Background(), "k", &dest)
	assert.Error(t, err)
	assert.False(t, hit)
}
