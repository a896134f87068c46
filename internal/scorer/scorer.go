// Package scorer computes the composite 0-100 portfolio performance score
// against the age-banded market benchmark.
package scorer

import (
	"math"

	"github.com/covergrid/portfolio-cli/internal/benchmark"
	"github.com/covergrid/portfolio-cli/internal/model"
)

// Aggregates holds a user's active-policy portfolio totals. Callers must
// exclude users with zero active policies before scoring; PolicyCount is the
// denominator of both per-policy averages.
type Aggregates struct {
	TotalPremium  float64 `json:"total_premium"`
	TotalCoverage float64 `json:"total_coverage"`
	PolicyCount   int     `json:"policy_count"`
}

// Aggregate sums the active policies in the given slice. Non-active policies
// are ignored.
func Aggregate(policies []model.PolicyRecord) Aggregates {
	var agg Aggregates
	for _, p := range policies {
		if p.Status != model.PolicyStatusActive {
			continue
		}
		agg.TotalPremium += p.Premium
		agg.TotalCoverage += p.Coverage
		agg.PolicyCount++
	}
	return agg
}

// Deviations are the signed percent deviations of the portfolio from the
// benchmark. They feed both the sub-scores and the gap trigger rules, and
// are formatted verbatim into notification messages.
type Deviations struct {
	PremiumDiffPct  float64 `json:"premium_diff_pct"`
	CoverageDiffPct float64 `json:"coverage_diff_pct"`
	PoliciesDiffPct float64 `json:"policies_diff_pct"`
}

// Result is the outcome of scoring one portfolio.
type Result struct {
	Score         int          `json:"score"` // composite, 0-100
	Rating        model.Rating `json:"rating"`
	PremiumScore  float64      `json:"premium_score"`  // 0-40
	CoverageScore float64      `json:"coverage_score"` // 0-40
	PolicyScore   float64      `json:"policy_score"`   // 0-20
	Deviations    Deviations   `json:"deviations"`
	Aggregates    Aggregates   `json:"aggregates"`
}

// Compute scores a portfolio against a benchmark. The per-term clamps
// guarantee the composite stays in [0,100]. PolicyCount must be >= 1.
func Compute(agg Aggregates, bench benchmark.Reference) Result {
	n := float64(agg.PolicyCount)
	avgPremium := agg.TotalPremium / n
	avgCoverage := agg.TotalCoverage / n

	dev := Deviations{
		PremiumDiffPct:  (avgPremium - bench.AvgPremium) / bench.AvgPremium * 100,
		CoverageDiffPct: (avgCoverage - bench.AvgCoverage) / bench.AvgCoverage * 100,
		PoliciesDiffPct: (n - bench.AvgPoliciesPerPerson) / bench.AvgPoliciesPerPerson * 100,
	}

	// Cheaper than benchmark is better; more coverage is better; policy
	// count is scored on closeness to the benchmark in either direction.
	premiumScore := clamp(40-dev.PremiumDiffPct*0.5, 0, 40)
	coverageScore := clamp(40+dev.CoverageDiffPct*0.3, 0, 40)
	policyScore := clamp(20-math.Abs(dev.PoliciesDiffPct)*0.3, 0, 20)

	composite := int(math.Round(premiumScore + coverageScore + policyScore))

	return Result{
		Score:         composite,
		Rating:        RatingFor(composite),
		PremiumScore:  premiumScore,
		CoverageScore: coverageScore,
		PolicyScore:   policyScore,
		Deviations:    dev,
		Aggregates:    agg,
	}
}

// RatingFor maps a composite score to its qualitative label. Thresholds are
// evaluated top-down; first match wins.
func RatingFor(score int) model.Rating {
	switch {
	case score >= 85:
		return model.RatingExcellent
	case score >= 70:
		return model.RatingVeryGood
	case score >= 55:
		return model.RatingGood
	case score < 40:
		return model.RatingNeedsImprovement
	default:
		return model.RatingSatisfactory
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
