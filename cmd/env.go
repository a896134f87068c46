package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/covergrid/portfolio-cli/internal/batch"
	"github.com/covergrid/portfolio-cli/internal/benchmark"
	"github.com/covergrid/portfolio-cli/internal/cohort"
	"github.com/covergrid/portfolio-cli/internal/notify"
	"github.com/covergrid/portfolio-cli/internal/store"
	"github.com/covergrid/portfolio-cli/internal/tips"
	"github.com/covergrid/portfolio-cli/internal/trend"
)

// scoringEnv holds the store and engines shared by the batch, score, and
// serve commands.
type scoringEnv struct {
	Store        store.Store
	Benchmarks   *benchmark.Provider
	Orchestrator *batch.Orchestrator
	Cohort       *cohort.Engine
}

// Close releases resources held by the environment.
func (se *scoringEnv) Close() {
	if se.Store != nil {
		_ = se.Store.Close()
	}
}

// initEnv validates config, connects the store, runs migrations, and wires
// the scoring, trend, notification, and cohort engines. Callers should defer
// env.Close().
func initEnv(ctx context.Context) (*scoringEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}

	st, err := store.NewPostgres(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "connect store")
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	benchmarks := benchmark.NewProvider(cfg.Benchmark)
	detector := trend.NewDetector(cfg.Trend)
	emitter := notify.NewEmitter(st, cfg.Notify)

	generator := tips.NewAnthropic(cfg.Tips)
	if generator == nil {
		zap.L().Debug("PORTFOLIO_TIPS_API_KEY not set, tip generation uses the static fallback")
	}

	return &scoringEnv{
		Store:        st,
		Benchmarks:   benchmarks,
		Orchestrator: batch.NewOrchestrator(st, benchmarks, detector, emitter, cfg.Batch),
		Cohort:       cohort.NewEngine(st, generator, cfg.Cohort),
	}, nil
}
