// Package trend detects significant score and rating transitions between
// consecutive snapshots and portfolio gaps against the benchmark.
package trend

import (
	"fmt"

	"github.com/covergrid/portfolio-cli/internal/config"
	"github.com/covergrid/portfolio-cli/internal/model"
	"github.com/covergrid/portfolio-cli/internal/scorer"
)

// Trigger is a detected condition that causes a notification to be
// considered. The message carries the exact numeric deltas for display.
type Trigger struct {
	Type       model.NotificationType
	Priority   model.NotificationPriority
	Title      string
	Message    string
	TargetLink string
	DedupKey   string
}

// Detector evaluates trend and gap rules for one user per batch run.
type Detector struct {
	cfg config.TrendConfig
}

func NewDetector(cfg config.TrendConfig) *Detector {
	return &Detector{cfg: cfg}
}

// Detect returns the triggers for the current snapshot. prior may be nil on
// a user's first-ever computation, in which case no trend rule fires. The
// three trend rules form a single if/else-if chain so at most one of them
// fires per run even when several are numerically true; the gap rules are
// evaluated independently every run.
func (d *Detector) Detect(current *model.PerformanceSnapshot, prior *model.PerformanceSnapshot, dev scorer.Deviations) []Trigger {
	var triggers []Trigger

	if prior != nil {
		scoreDelta := current.Score - prior.Score
		switch {
		case float64(scoreDelta) <= -d.cfg.DropThreshold:
			triggers = append(triggers, Trigger{
				Type:     model.NotificationScoreDrop,
				Priority: model.PriorityHigh,
				Title:    "Portfolio score dropped",
				Message: fmt.Sprintf("Your portfolio score fell from %d to %d (%+d points).",
					prior.Score, current.Score, scoreDelta),
				TargetLink: "/portfolio/score",
				DedupKey:   string(model.NotificationScoreDrop),
			})
		case model.RatingRank(current.Rating) > model.RatingRank(prior.Rating):
			triggers = append(triggers, Trigger{
				Type:     model.NotificationRatingDowngrade,
				Priority: model.PriorityMedium,
				Title:    "Portfolio rating downgraded",
				Message: fmt.Sprintf("Your portfolio rating changed from %q to %q (score %d to %d).",
					prior.Rating, current.Rating, prior.Score, current.Score),
				TargetLink: "/portfolio/score",
				DedupKey:   string(model.NotificationRatingDowngrade),
			})
		case float64(scoreDelta) >= d.cfg.ImprovementThreshold:
			triggers = append(triggers, Trigger{
				Type:     model.NotificationScoreImprovement,
				Priority: model.PriorityLow,
				Title:    "Portfolio score improved",
				Message: fmt.Sprintf("Your portfolio score rose from %d to %d (%+d points). Keep it up!",
					prior.Score, current.Score, scoreDelta),
				TargetLink: "/portfolio/score",
				DedupKey:   string(model.NotificationScoreImprovement),
			})
		}
	}

	if dev.PremiumDiffPct > d.cfg.PremiumGapPct {
		triggers = append(triggers, Trigger{
			Type:     model.NotificationHighPremiumGap,
			Priority: model.PriorityHigh,
			Title:    "Premiums above market average",
			Message: fmt.Sprintf("Your average premium is %.1f%% above the market benchmark for your age group.",
				dev.PremiumDiffPct),
			TargetLink: "/portfolio/policies",
			DedupKey:   string(model.NotificationHighPremiumGap),
		})
	}
	if dev.CoverageDiffPct < -d.cfg.CoverageGapPct {
		triggers = append(triggers, Trigger{
			Type:     model.NotificationLowCoverageGap,
			Priority: model.PriorityHigh,
			Title:    "Coverage below market average",
			Message: fmt.Sprintf("Your average coverage is %.1f%% below the market benchmark for your age group.",
				-dev.CoverageDiffPct),
			TargetLink: "/portfolio/policies",
			DedupKey:   string(model.NotificationLowCoverageGap),
		})
	}

	return triggers
}
