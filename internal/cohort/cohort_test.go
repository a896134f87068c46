package cohort

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covergrid/portfolio-cli/internal/config"
	"github.com/covergrid/portfolio-cli/internal/model"
	"github.com/covergrid/portfolio-cli/internal/tips"
)

// memReader is an in-memory SnapshotReader for engine tests.
type memReader struct {
	profiles  map[string]model.UserProfile
	snapshots map[string]model.PerformanceSnapshot
}

func (m *memReader) GetProfile(_ context.Context, userID string) (*model.UserProfile, error) {
	p, ok := m.profiles[userID]
	if !ok {
		return nil, eris.Errorf("profile not found: %s", userID)
	}
	return &p, nil
}

func (m *memReader) ListProfiles(_ context.Context, userIDs []string) (map[string]model.UserProfile, error) {
	out := make(map[string]model.UserProfile)
	for _, id := range userIDs {
		if p, ok := m.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *memReader) LatestSnapshotPerUser(_ context.Context) (map[string]model.PerformanceSnapshot, error) {
	return m.snapshots, nil
}

// staticTips returns a fixed string so engine tests don't depend on the
// generator.
type staticTips string

func (s staticTips) Generate(context.Context, string) string { return string(s) }

func testEngine(r *memReader) *Engine {
	e := NewEngine(r, staticTips("tip text"), config.CohortConfig{AgeSpread: 5, MinCohortSize: 5})
	e.now = func() time.Time { return time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC) }
	return e
}

func dob(age int) time.Time {
	// Born January 1st, so the birthday has passed by mid-June.
	return time.Date(2026-age, 1, 1, 0, 0, 0, 0, time.UTC)
}

func populate(count int, baseAge int, scores []int) *memReader {
	r := &memReader{
		profiles:  map[string]model.UserProfile{},
		snapshots: map[string]model.PerformanceSnapshot{},
	}
	for i := 0; i < count; i++ {
		id := "u" + string(rune('a'+i))
		r.profiles[id] = model.UserProfile{UserID: id, DateOfBirth: dob(baseAge)}
		r.snapshots[id] = model.PerformanceSnapshot{UserID: id, Score: scores[i]}
	}
	return r
}

func TestPercentile(t *testing.T) {
	tests := []struct {
		name      string
		scores    []int
		userScore int
		want      int
	}{
		{"middle of pack", []int{10, 20, 30, 40, 50}, 30, 40},
		{"top", []int{10, 20, 30, 40, 50}, 50, 80},
		{"bottom is zero", []int{10, 20, 30, 40, 50}, 10, 0},
		{"ties excluded", []int{50, 50, 50, 40}, 50, 25},
		{"all tied", []int{60, 60, 60}, 60, 0},
		{"empty cohort", nil, 80, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Percentile(tt.scores, tt.userScore))
		})
	}
}

func TestPercentileBoundsProperty(t *testing.T) {
	scores := []int{0, 13, 27, 41, 55, 68, 81, 94, 100}
	for user := 0; user <= 100; user += 7 {
		p := Percentile(scores, user)
		require.GreaterOrEqual(t, p, 0)
		require.LessOrEqual(t, p, 100)
	}
}

func TestHistogramFixedBins(t *testing.T) {
	scores := []int{0, 20, 21, 40, 41, 60, 61, 80, 81, 100}
	bins := Histogram(scores)

	require.Len(t, bins, 5)
	assert.Equal(t, "0-20", bins[0].Range)
	assert.Equal(t, "81-100", bins[4].Range)
	for _, b := range bins {
		assert.Equal(t, 2, b.Count, "bin %s", b.Range)
	}
}

func TestHistogramCompleteness(t *testing.T) {
	scores := []int{5, 17, 23, 23, 44, 59, 60, 61, 77, 85, 99, 100, 0}
	bins := Histogram(scores)

	total := 0
	for _, b := range bins {
		total += b.Count
	}
	assert.Equal(t, len(scores), total)
}

func TestSummarize(t *testing.T) {
	t.Run("odd length", func(t *testing.T) {
		stats := Summarize([]int{30, 10, 50, 20, 40})
		assert.Equal(t, 30, stats.Mean)
		assert.Equal(t, 30, stats.Median)
		assert.Equal(t, 50, stats.Max)
		assert.Equal(t, 10, stats.Min)
		assert.Equal(t, 5, stats.CohortSize)
	})

	t.Run("even length takes lower middle", func(t *testing.T) {
		stats := Summarize([]int{10, 20, 30, 40})
		assert.Equal(t, 20, stats.Median)
		assert.Equal(t, 25, stats.Mean)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, Statistics{}, Summarize(nil))
	})
}

func TestBenchmarkNarrowCohort(t *testing.T) {
	// Six users aged 30; requester "ua" scores 70 against 50/55/60/65/75.
	r := populate(6, 30, []int{70, 50, 55, 60, 65, 75})
	e := testEngine(r)

	res, err := e.Benchmark(context.Background(), "ua")
	require.NoError(t, err)

	assert.Equal(t, 30, res.Age)
	assert.Equal(t, 70, res.UserScore)
	assert.False(t, res.WidenedToAll)
	assert.Equal(t, 6, res.Statistics.CohortSize)
	// 4 of 6 below 70.
	assert.Equal(t, 67, res.Percentile)
	assert.Equal(t, "tip text", res.Tips)
}

func TestBenchmarkAgeSpreadInclusive(t *testing.T) {
	r := &memReader{
		profiles: map[string]model.UserProfile{
			"me":   {UserID: "me", DateOfBirth: dob(40)},
			"edge": {UserID: "edge", DateOfBirth: dob(45)}, // +5, inclusive
			"out":  {UserID: "out", DateOfBirth: dob(46)},  // +6, excluded
			"low":  {UserID: "low", DateOfBirth: dob(35)},  // -5, inclusive
			"u4":   {UserID: "u4", DateOfBirth: dob(41)},
			"u5":   {UserID: "u5", DateOfBirth: dob(39)},
		},
		snapshots: map[string]model.PerformanceSnapshot{
			"me":   {UserID: "me", Score: 60},
			"edge": {UserID: "edge", Score: 50},
			"out":  {UserID: "out", Score: 90},
			"low":  {UserID: "low", Score: 40},
			"u4":   {UserID: "u4", Score: 55},
			"u5":   {UserID: "u5", Score: 70},
		},
	}
	e := testEngine(r)

	res, err := e.Benchmark(context.Background(), "me")
	require.NoError(t, err)

	// "out" is excluded: cohort is the other five.
	// "out" is one year past the spread, so its 90 never becomes the max.
	assert.False(t, res.WidenedToAll)
	assert.Equal(t, 5, res.Statistics.CohortSize)
	assert.Equal(t, 70, res.Statistics.Max)
}

func TestBenchmarkSmallCohortWidensToPopulation(t *testing.T) {
	// Requester's age band holds only four users; population has nine.
	r := populate(4, 25, []int{70, 50, 60, 65})
	for i := 0; i < 5; i++ {
		id := "old" + string(rune('a'+i))
		r.profiles[id] = model.UserProfile{UserID: id, DateOfBirth: dob(55)}
		r.snapshots[id] = model.PerformanceSnapshot{UserID: id, Score: 30 + i}
	}
	e := testEngine(r)

	res, err := e.Benchmark(context.Background(), "ua")
	require.NoError(t, err)

	assert.True(t, res.WidenedToAll)
	assert.Equal(t, 9, res.Statistics.CohortSize)
}

func TestBenchmarkComparisonDeltasUnrounded(t *testing.T) {
	// Cohort scores 70/50/55/60/65/75: mean 62.5, median (lower middle) 60.
	r := populate(6, 30, []int{70, 50, 55, 60, 65, 75})
	e := testEngine(r)

	res, err := e.Benchmark(context.Background(), "ua")
	require.NoError(t, err)

	assert.Equal(t, 63, res.Statistics.Mean) // 62.5 rounded for display
	assert.InDelta(t, 7.5, res.Comparison.VsMean, 0.001)
	assert.InDelta(t, 10, res.Comparison.VsMedian, 0.001)
}

func TestBenchmarkNoSnapshotForUser(t *testing.T) {
	r := populate(5, 30, []int{50, 55, 60, 65, 70})
	r.profiles["new"] = model.UserProfile{UserID: "new", DateOfBirth: dob(30)}
	e := testEngine(r)

	_, err := e.Benchmark(context.Background(), "new")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no snapshot")
}

func TestBenchmarkNilGeneratorUsesFallback(t *testing.T) {
	r := populate(5, 30, []int{50, 55, 60, 65, 70})
	e := NewEngine(r, nil, config.CohortConfig{AgeSpread: 5, MinCohortSize: 5})
	e.now = func() time.Time { return time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC) }

	res, err := e.Benchmark(context.Background(), "ua")
	require.NoError(t, err)
	assert.Equal(t, tips.Fallback, res.Tips)
}
