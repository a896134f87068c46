// Package batch runs the nightly scoring pass: every user with policies is
// scored against their age benchmark, a snapshot is appended, and trend
// notifications are emitted. Users are processed concurrently with a bounded
// limit; one user's failure never aborts the pass.
package batch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/covergrid/portfolio-cli/internal/benchmark"
	"github.com/covergrid/portfolio-cli/internal/config"
	"github.com/covergrid/portfolio-cli/internal/model"
	"github.com/covergrid/portfolio-cli/internal/notify"
	"github.com/covergrid/portfolio-cli/internal/scorer"
	"github.com/covergrid/portfolio-cli/internal/trend"
)

// Store is the slice of the persistence layer the orchestrator needs.
type Store interface {
	ListScoringUserIDs(ctx context.Context) ([]string, error)
	ListActivePolicies(ctx context.Context, userID string) ([]model.PolicyRecord, error)
	GetProfile(ctx context.Context, userID string) (*model.UserProfile, error)
	AppendSnapshot(ctx context.Context, snap *model.PerformanceSnapshot) error
	LatestSnapshotBefore(ctx context.Context, userID string, before time.Time) (*model.PerformanceSnapshot, error)
	StartRun(ctx context.Context) (int64, error)
	CompleteRun(ctx context.Context, runID int64, result model.BatchResult) error
	FailRun(ctx context.Context, runID int64, cause error) error
}

// errNoActivePolicies marks a user skipped because every policy is expired or
// cancelled. No snapshot is written for them.
var errNoActivePolicies = eris.New("no active policies")

// Orchestrator wires the scoring pipeline for one batch pass.
type Orchestrator struct {
	store      Store
	benchmarks *benchmark.Provider
	detector   *trend.Detector
	emitter    *notify.Emitter
	cfg        config.BatchConfig
	now        func() time.Time
}

func NewOrchestrator(st Store, benchmarks *benchmark.Provider, detector *trend.Detector, emitter *notify.Emitter, cfg config.BatchConfig) *Orchestrator {
	return &Orchestrator{
		store:      st,
		benchmarks: benchmarks,
		detector:   detector,
		emitter:    emitter,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Run executes one full scoring pass and records it in the run log. The
// returned result is also persisted via CompleteRun.
func (o *Orchestrator) Run(ctx context.Context) (model.BatchResult, error) {
	runID, err := o.store.StartRun(ctx)
	if err != nil {
		return model.BatchResult{}, eris.Wrap(err, "batch: start run")
	}

	result, err := o.process(ctx)
	if err != nil {
		if fErr := o.store.FailRun(ctx, runID, err); fErr != nil {
			zap.L().Warn("batch: failed to record run failure", zap.Int64("run_id", runID), zap.Error(fErr))
		}
		return result, err
	}

	if err := o.store.CompleteRun(ctx, runID, result); err != nil {
		return result, eris.Wrapf(err, "batch: complete run %d", runID)
	}
	return result, nil
}

// process scores every eligible user with bounded concurrency. Individual
// user failures are counted, logged, and swallowed so the rest of the pass
// proceeds.
func (o *Orchestrator) process(ctx context.Context) (model.BatchResult, error) {
	userIDs, err := o.store.ListScoringUserIDs(ctx)
	if err != nil {
		return model.BatchResult{}, eris.Wrap(err, "batch: list users")
	}
	if len(userIDs) == 0 {
		zap.L().Info("batch: no users to score")
		return model.BatchResult{}, nil
	}

	zap.L().Info("batch: scoring pass started",
		zap.Int("users", len(userIDs)),
		zap.Int("concurrency", o.cfg.MaxConcurrentUsers),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.MaxConcurrentUsers)

	var processed, alerts, skipped, failed atomic.Int64

	for _, userID := range userIDs {
		g.Go(func() error {
			log := zap.L().With(zap.String("user_id", userID))

			uctx := gctx
			if o.cfg.UserTimeoutSecs > 0 {
				var cancel context.CancelFunc
				uctx, cancel = context.WithTimeout(gctx, time.Duration(o.cfg.UserTimeoutSecs)*time.Second)
				defer cancel()
			}

			created, err := o.scoreUser(uctx, userID)
			switch {
			case eris.Is(err, errNoActivePolicies):
				skipped.Add(1)
				log.Debug("batch: user skipped, no active policies")
			case err != nil:
				failed.Add(1)
				log.Error("batch: user scoring failed", zap.Error(err))
			default:
				processed.Add(1)
				alerts.Add(int64(created))
			}
			return nil // don't abort the pass on an individual failure
		})
	}

	if err := g.Wait(); err != nil {
		return model.BatchResult{}, eris.Wrap(err, "batch: scoring pass")
	}

	result := model.BatchResult{
		UsersProcessed: int(processed.Load()),
		AlertsCreated:  int(alerts.Load()),
		UsersSkipped:   int(skipped.Load()),
		UsersFailed:    int(failed.Load()),
	}

	zap.L().Info("batch: scoring pass complete",
		zap.Int("processed", result.UsersProcessed),
		zap.Int("alerts", result.AlertsCreated),
		zap.Int("skipped", result.UsersSkipped),
		zap.Int("failed", result.UsersFailed),
	)
	return result, nil
}

// scoreUser runs the fetch, compute, persist, notify sequence for one user
// and returns how many notifications were created.
func (o *Orchestrator) scoreUser(ctx context.Context, userID string) (int, error) {
	policies, err := o.store.ListActivePolicies(ctx, userID)
	if err != nil {
		return 0, eris.Wrapf(err, "batch: policies for %s", userID)
	}
	agg := scorer.Aggregate(policies)
	if agg.PolicyCount == 0 {
		return 0, errNoActivePolicies
	}

	profile, err := o.store.GetProfile(ctx, userID)
	if err != nil {
		return 0, eris.Wrapf(err, "batch: profile for %s", userID)
	}

	now := o.now().UTC()
	age := model.AgeAt(profile.DateOfBirth, now)
	res := scorer.Compute(agg, o.benchmarks.ForAge(age))

	// Read the prior snapshot before appending the new one so trend
	// detection compares against the previous run.
	prior, err := o.store.LatestSnapshotBefore(ctx, userID, now)
	if err != nil {
		return 0, eris.Wrapf(err, "batch: prior snapshot for %s", userID)
	}

	snap := &model.PerformanceSnapshot{
		UserID:        userID,
		Score:         res.Score,
		Rating:        res.Rating,
		PremiumScore:  res.PremiumScore,
		CoverageScore: res.CoverageScore,
		PolicyScore:   res.PolicyScore,
		TotalPremium:  agg.TotalPremium,
		TotalCoverage: agg.TotalCoverage,
		PolicyCount:   agg.PolicyCount,
		CreatedAt:     now,
	}
	if err := o.store.AppendSnapshot(ctx, snap); err != nil {
		return 0, eris.Wrapf(err, "batch: append snapshot for %s", userID)
	}

	triggers := o.detector.Detect(snap, prior, res.Deviations)
	created, err := o.emitter.EmitAll(ctx, userID, triggers)
	if err != nil {
		return created, eris.Wrapf(err, "batch: notifications for %s", userID)
	}
	return created, nil
}
