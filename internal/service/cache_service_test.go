package service

import (
	"context"
	"encoding/json"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aulago/aula-api/internal/models"
	appErrors "github.com/aulago/aula-api/pkg/errors"
)

// fakeCacheStore keeps entries in a map and matches delete patterns with
// redis-style globs.
type fakeCacheStore struct {
	entries map[string][]byte
}

func newFakeCacheStore() *fakeCacheStore {
	return &fakeCacheStore{entries: make(map[string][]byte)}
}

func (f *fakeCacheStore) Get(ctx context.Context, key string, dest interface{}) error {
	data, ok := f.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (f *fakeCacheStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.entries[key] = data
	return nil
}

func (f *fakeCacheStore) DeleteByPattern(ctx context.Context, pattern string) error {
	for key := range f.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(f.entries, key)
		}
	}
	return nil
}

func TestInvalidateGroupDropsGroupAndPerformanceKeys(t *testing.T) {
	store := newFakeCacheStore()
	svc := NewCacheService(store, nil, time.Minute, zap.NewNop(), true)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, makeReportCacheKey("attendance", "g1", "2025-03-01", "2025-03-31", "UTC"), []string{"row"}, 0))
	require.NoError(t, svc.Set(ctx, makeReportCacheKey("performance", "teacher-1", "2025-03-01", "2025-03-31", "UTC"), []string{"row"}, 0))
	require.NoError(t, svc.Set(ctx, makeReportCacheKey("attendance", "g2", "2025-03-01", "2025-03-31", "UTC"), []string{"row"}, 0))

	require.NoError(t, svc.InvalidateGroup(ctx, "g1"))

	// The mutated group's reports and every teacher-keyed performance
	// composite are gone; other groups' reports survive.
	_, remaining := store.entries[makeReportCacheKey("attendance", "g2", "2025-03-01", "2025-03-31", "UTC")]
	assert.True(t, remaining)
	assert.Len(t, store.entries, 1)
}

func TestPerformanceOverviewRecomputedAfterInvalidation(t *testing.T) {
	groups, tasks, sessions := performanceFixture()
	store := newFakeCacheStore()
	cacheSvc := NewCacheService(store, nil, time.Minute, zap.NewNop(), true)
	svc := NewPerformanceReportService(groups, tasks, sessions, cacheSvc, nil, zap.NewNop(), "UTC")
	ctx := context.Background()

	req := PerformanceReportRequest{TeacherID: "teacher-1", StartDate: "2025-03-01", EndDate: "2025-03-31"}

	report, err := svc.Overview(ctx, req)
	require.NoError(t, err)
	require.Equal(t, "80.00", report.Groups[0].GroupAverage)
	require.NotEmpty(t, store.entries)

	// A grade review changed group g1's average. Until the mutation's
	// invalidation runs the cached composite is served as-is.
	tasks.submissions["t1"] = []models.Submission{
		{TaskID: "t1", StudentID: "s1", Status: models.SubmissionStatusReviewed, SubmittedAt: instant("2025-03-09T10:00:00Z"), Grade: gradePtr(100)},
	}
	report, err = svc.Overview(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "80.00", report.Groups[0].GroupAverage)

	require.NoError(t, cacheSvc.InvalidateGroup(ctx, "g1"))
	assert.Empty(t, store.entries)

	report, err = svc.Overview(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "100.00", report.Groups[0].GroupAverage)
	for _, pair := range report.Dispersion {
		assert.Equal(t, "5.00", pair.StandardDeviation)
	}
}
