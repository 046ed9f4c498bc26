package montecarlo

import (
	"fmt"

	"github.com/inference-sim/tam-sim/sim/dist"
	"github.com/inference-sim/tam-sim/sim/tam"
)

// TrialResult is the output of one trial. Never mutated after creation.
type TrialResult struct {
	Index               int
	Sample              dist.TrialSample
	GlobalTAM           float64
	RiskAdjustedTAM     float64
	GlobalCustomers     float64
	GlobalBandwidthMbps float64
	// CountryTAM maps country code to annual revenue.
	CountryTAM map[string]float64
}

// TrialError identifies the trial and sampled values that made the formula fail.
type TrialError struct {
	Index  int
	Sample dist.TrialSample
	Err    error
}

func (e *TrialError) Error() string {
	return fmt.Sprintf("trial %d failed with parameters {%s}: %v", e.Index, e.Sample, e.Err)
}

func (e *TrialError) Unwrap() error { return e.Err }

// runTrial draws the trial's sample from its own RNG stream and evaluates it.
func (r *Runner) runTrial(index int) (TrialResult, error) {
	rng := r.rng.ForTrial(index)
	sample := r.gen.Generate(rng)

	a, err := tam.AssumptionsFromSample(sample)
	if err != nil {
		return TrialResult{}, &TrialError{Index: index, Sample: sample, Err: err}
	}
	res, err := r.model.Evaluate(a, r.countries)
	if err != nil {
		return TrialResult{}, &TrialError{Index: index, Sample: sample, Err: err}
	}

	perCountry := make(map[string]float64, len(res.Countries))
	for _, c := range res.Countries {
		perCountry[c.Code] = c.AnnualRevenue
	}
	return TrialResult{
		Index:               index,
		Sample:              sample,
		GlobalTAM:           res.TotalRevenue,
		RiskAdjustedTAM:     res.RiskAdjustedRevenue,
		GlobalCustomers:     res.TotalCustomers,
		GlobalBandwidthMbps: res.TotalBandwidthMbps,
		CountryTAM:          perCountry,
	}, nil
}
