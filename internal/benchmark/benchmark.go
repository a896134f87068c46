// Package benchmark provides the age-banded market reference lookup.
package benchmark

import (
	"github.com/covergrid/portfolio-cli/internal/config"
)

// Reference holds the market averages for one age band.
type Reference struct {
	AvgPremium           float64 `json:"avg_premium"`
	AvgCoverage          float64 `json:"avg_coverage"`
	AvgPoliciesPerPerson float64 `json:"avg_policies_per_person"`
}

// Provider resolves an age to its market benchmark. Lookup is deterministic
// and total: the first band whose upper bound exceeds the age wins, and the
// open-ended last band catches all higher ages.
type Provider struct {
	bands []config.AgeBand
}

// NewProvider creates a Provider from the configured band table. Band order
// is validated at config load time.
func NewProvider(cfg config.BenchmarkConfig) *Provider {
	bands := cfg.Bands
	if len(bands) == 0 {
		bands = config.DefaultBands()
	}
	return &Provider{bands: bands}
}

// ForAge returns the benchmark for the given age.
func (p *Provider) ForAge(age int) Reference {
	for _, b := range p.bands {
		if b.MaxAge > 0 && age < b.MaxAge {
			return Reference{
				AvgPremium:           b.AvgPremium,
				AvgCoverage:          b.AvgCoverage,
				AvgPoliciesPerPerson: b.AvgPoliciesPerPerson,
			}
		}
	}
	last := p.bands[len(p.bands)-1]
	return Reference{
		AvgPremium:           last.AvgPremium,
		AvgCoverage:          last.AvgCoverage,
		AvgPoliciesPerPerson: last.AvgPoliciesPerPerson,
	}
}
