// Package cohort computes a user's percentile standing, score distribution,
// and summary statistics against their age cohort. The read path is
// stateless: every request re-queries the latest-per-user snapshot set, so
// results may trail an in-flight batch write by a few seconds at most.
package cohort

import (
	"context"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/covergrid/portfolio-cli/internal/config"
	"github.com/covergrid/portfolio-cli/internal/model"
	"github.com/covergrid/portfolio-cli/internal/tips"
)

// SnapshotReader is the slice of the store the engine reads from.
type SnapshotReader interface {
	GetProfile(ctx context.Context, userID string) (*model.UserProfile, error)
	ListProfiles(ctx context.Context, userIDs []string) (map[string]model.UserProfile, error)
	LatestSnapshotPerUser(ctx context.Context) (map[string]model.PerformanceSnapshot, error)
}

// Bin is one fixed histogram bucket.
type Bin struct {
	Range string `json:"range"`
	Min   int    `json:"min"`
	Max   int    `json:"max"`
	Count int    `json:"count"`
}

// Statistics summarizes the cohort's score distribution.
type Statistics struct {
	Mean       int `json:"mean"` // arithmetic mean, rounded
	Median     int `json:"median"`
	Max        int `json:"max"`
	Min        int `json:"min"`
	CohortSize int `json:"cohort_size"`
}

// Comparison holds the requester's signed, unrounded deltas.
type Comparison struct {
	VsMean   float64 `json:"vs_mean"`
	VsMedian float64 `json:"vs_median"`
}

// Result is the benchmark payload returned to the caller.
type Result struct {
	UserID       string     `json:"user_id"`
	Age          int        `json:"age"`
	UserScore    int        `json:"user_score"`
	Percentile   int        `json:"percentile"`
	Distribution []Bin      `json:"distribution"`
	Statistics   Statistics `json:"statistics"`
	Comparison   Comparison `json:"comparison"`
	WidenedToAll bool       `json:"widened_to_all"` // cohort was too small, full population used
	Tips         string     `json:"tips"`
}

// Engine serves on-demand cohort benchmarking requests.
type Engine struct {
	store SnapshotReader
	tips  tips.Generator
	cfg   config.CohortConfig
	now   func() time.Time
}

// NewEngine creates an Engine. generator may be nil; the static fallback tip
// is used then.
func NewEngine(store SnapshotReader, generator tips.Generator, cfg config.CohortConfig) *Engine {
	return &Engine{store: store, tips: generator, cfg: cfg, now: time.Now}
}

// Benchmark computes the requester's standing against their age cohort.
// Cohort membership uses each member's current recomputed age, not the age
// at snapshot time.
func (e *Engine) Benchmark(ctx context.Context, userID string) (*Result, error) {
	now := e.now().UTC()

	profile, err := e.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, eris.Wrapf(err, "cohort: profile for %s", userID)
	}
	age := model.AgeAt(profile.DateOfBirth, now)

	latest, err := e.store.LatestSnapshotPerUser(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "cohort: latest snapshots")
	}

	userSnap, ok := latest[userID]
	if !ok {
		return nil, eris.Errorf("cohort: no snapshot for user %s", userID)
	}

	memberIDs := make([]string, 0, len(latest))
	for id := range latest {
		memberIDs = append(memberIDs, id)
	}
	profiles, err := e.store.ListProfiles(ctx, memberIDs)
	if err != nil {
		return nil, eris.Wrap(err, "cohort: member profiles")
	}

	var scores []int
	for id, snap := range latest {
		p, ok := profiles[id]
		if !ok {
			continue
		}
		memberAge := model.AgeAt(p.DateOfBirth, now)
		if memberAge >= age-e.cfg.AgeSpread && memberAge <= age+e.cfg.AgeSpread {
			scores = append(scores, snap.Score)
		}
	}

	// A handful of near-in-age users makes for degenerate statistics;
	// widen to everyone with a snapshot instead.
	widened := false
	if len(scores) < e.cfg.MinCohortSize {
		widened = true
		scores = scores[:0]
		for _, snap := range latest {
			scores = append(scores, snap.Score)
		}
	}

	result := &Result{
		UserID:       userID,
		Age:          age,
		UserScore:    userSnap.Score,
		Percentile:   Percentile(scores, userSnap.Score),
		Distribution: Histogram(scores),
		Statistics:   Summarize(scores),
		WidenedToAll: widened,
	}
	mean := meanOf(scores)
	result.Comparison = Comparison{
		VsMean:   float64(userSnap.Score) - mean,
		VsMedian: float64(userSnap.Score - result.Statistics.Median),
	}

	if e.tips != nil {
		result.Tips = e.tips.Generate(ctx, tips.BuildPrompt(age, userSnap.Score, result.Percentile, mean))
	} else {
		result.Tips = tips.Fallback
	}

	zap.L().Debug("cohort: benchmark computed",
		zap.String("user_id", userID),
		zap.Int("age", age),
		zap.Int("cohort_size", len(scores)),
		zap.Bool("widened", widened),
	)

	return result, nil
}

// Percentile returns the share of cohort scores strictly below userScore,
// rounded to an integer percent. Ties do not count as below.
func Percentile(scores []int, userScore int) int {
	if len(scores) == 0 {
		return 0
	}
	below := 0
	for _, s := range scores {
		if s < userScore {
			below++
		}
	}
	return int(math.Round(100 * float64(below) / float64(len(scores))))
}

// histogramBounds are the five fixed bins; boundaries never move with the
// data.
var histogramBounds = [5][2]int{{0, 20}, {21, 40}, {41, 60}, {61, 80}, {81, 100}}

// Histogram buckets the scores into the five fixed bins.
func Histogram(scores []int) []Bin {
	bins := make([]Bin, len(histogramBounds))
	for i, b := range histogramBounds {
		bins[i] = Bin{
			Range: binLabel(b[0], b[1]),
			Min:   b[0],
			Max:   b[1],
		}
	}
	for _, s := range scores {
		for i, b := range histogramBounds {
			if s >= b[0] && s <= b[1] {
				bins[i].Count++
				break
			}
		}
	}
	return bins
}

func binLabel(lo, hi int) string {
	return strconv.Itoa(lo) + "-" + strconv.Itoa(hi)
}

// Summarize computes mean (rounded), median (lower-middle for even-length
// lists), max, min, and size for the cohort scores.
func Summarize(scores []int) Statistics {
	if len(scores) == 0 {
		return Statistics{}
	}

	sorted := make([]int, len(scores))
	copy(sorted, scores)
	sort.Ints(sorted)

	return Statistics{
		Mean:       int(math.Round(meanOf(scores))),
		Median:     sorted[(len(sorted)-1)/2],
		Max:        sorted[len(sorted)-1],
		Min:        sorted[0],
		CohortSize: len(scores),
	}
}

func meanOf(scores []int) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	return float64(sum) / float64(len(scores))
}
