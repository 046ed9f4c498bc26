package montecarlo

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/inference-sim/tam-sim/sim"
	"github.com/inference-sim/tam-sim/sim/dist"
)

// Statistics describes one output over the trial dimension.
type Statistics struct {
	Mean   float64 `json:"mean" yaml:"mean"`
	Std    float64 `json:"std" yaml:"std"`
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
	Median float64 `json:"median" yaml:"median"`
	// Percentiles keyed "p5", "p50", ... by linear interpolation.
	Percentiles map[string]float64 `json:"percentiles" yaml:"percentiles"`
	Skewness    float64            `json:"skewness" yaml:"skewness"`
	Kurtosis    float64            `json:"excess_kurtosis" yaml:"excess_kurtosis"`
}

// RiskMetrics is the downside of global TAM at one confidence level.
type RiskMetrics struct {
	ConfidenceLevel float64 `json:"confidence_level" yaml:"confidence_level"`
	// Threshold is the (1-c) quantile of global TAM.
	Threshold         float64 `json:"threshold" yaml:"threshold"`
	VaR               float64 `json:"value_at_risk" yaml:"value_at_risk"`
	ExpectedShortfall float64 `json:"expected_shortfall" yaml:"expected_shortfall"`
	// TailMean is the mean TAM of trials at or below the threshold.
	TailMean float64 `json:"tail_mean" yaml:"tail_mean"`
}

// CountryStatistics is the TAM distribution of one market.
type CountryStatistics struct {
	Code string     `json:"country_code" yaml:"country_code"`
	TAM  Statistics `json:"tam" yaml:"tam"`
}

// Sensitivity is the Pearson correlation between a sampled parameter and
// global TAM across trials.
type Sensitivity struct {
	Parameter   string  `json:"parameter" yaml:"parameter"`
	Correlation float64 `json:"correlation" yaml:"correlation"`
}

// Scenario is one representative trial.
type Scenario struct {
	Trial     int              `json:"trial" yaml:"trial"`
	GlobalTAM float64          `json:"global_tam" yaml:"global_tam"`
	Sample    dist.TrialSample `json:"parameters" yaml:"parameters"`
}

// Scenarios holds the worst, median and best trials by global TAM.
type Scenarios struct {
	Worst  Scenario `json:"worst" yaml:"worst"`
	Median Scenario `json:"median" yaml:"median"`
	Best   Scenario `json:"best" yaml:"best"`
}

// Summary is the terminal artifact of a run. It is created once and not
// modified afterwards.
type Summary struct {
	Trials          int    `json:"trials" yaml:"trials"`
	CompletedTrials int    `json:"completed_trials" yaml:"completed_trials"`
	Partial         bool   `json:"partial" yaml:"partial"`
	StopReason      string `json:"stop_reason,omitempty" yaml:"stop_reason,omitempty"`
	Seed            int64  `json:"seed" yaml:"seed"`
	Workers         int    `json:"workers" yaml:"workers"`
	Correlated      bool   `json:"correlated" yaml:"correlated"`

	ReferenceTAM      float64 `json:"reference_tam" yaml:"reference_tam"`
	ProbabilityOfLoss float64 `json:"probability_of_loss" yaml:"probability_of_loss"`

	GlobalTAM           Statistics    `json:"global_tam" yaml:"global_tam"`
	RiskAdjustedTAM     Statistics    `json:"risk_adjusted_tam" yaml:"risk_adjusted_tam"`
	GlobalCustomers     Statistics    `json:"global_customers" yaml:"global_customers"`
	GlobalBandwidthMbps Statistics    `json:"global_bandwidth_mbps" yaml:"global_bandwidth_mbps"`
	Risk                []RiskMetrics `json:"risk" yaml:"risk"`

	// Countries sorted by mean TAM, largest first.
	Countries   []CountryStatistics `json:"countries" yaml:"countries"`
	Sensitivity []Sensitivity       `json:"sensitivity" yaml:"sensitivity"`
	Scenarios   Scenarios           `json:"scenarios" yaml:"scenarios"`
	History     []float64           `json:"history,omitempty" yaml:"history,omitempty"`
}

// RiskAt returns the metrics for a confidence level, if it was requested.
func (s *Summary) RiskAt(level float64) (RiskMetrics, bool) {
	for _, r := range s.Risk {
		if r.ConfidenceLevel == level {
			return r, true
		}
	}
	return RiskMetrics{}, false
}

// AggregateOptions selects what Aggregate reports.
type AggregateOptions struct {
	ConfidenceLevels []float64
	Percentiles      []float64
	ReferenceTAM     *float64
	SaveHistory      bool
	MaxHistory       int
}

// Aggregate reduces trial results to a Summary. Statistics are computed over
// the trial dimension only and do not depend on the order of results beyond
// history and scenario tie-breaking, which follow slice order.
func Aggregate(results []TrialResult, opts AggregateOptions) (*Summary, error) {
	n := len(results)
	if n == 0 {
		return nil, fmt.Errorf("aggregating zero trials: %w", sim.ErrEmptyResults)
	}

	tam := make([]float64, n)
	riskAdj := make([]float64, n)
	customers := make([]float64, n)
	bandwidth := make([]float64, n)
	for i := range results {
		tam[i] = results[i].GlobalTAM
		riskAdj[i] = results[i].RiskAdjustedTAM
		customers[i] = results[i].GlobalCustomers
		bandwidth[i] = results[i].GlobalBandwidthMbps
	}

	s := &Summary{Trials: n, CompletedTrials: n}
	var err error
	if s.GlobalTAM, err = computeStatistics(tam, opts.Percentiles); err != nil {
		return nil, err
	}
	if s.RiskAdjustedTAM, err = computeStatistics(riskAdj, opts.Percentiles); err != nil {
		return nil, err
	}
	if s.GlobalCustomers, err = computeStatistics(customers, opts.Percentiles); err != nil {
		return nil, err
	}
	if s.GlobalBandwidthMbps, err = computeStatistics(bandwidth, opts.Percentiles); err != nil {
		return nil, err
	}

	s.ReferenceTAM = s.GlobalTAM.Mean
	if opts.ReferenceTAM != nil {
		s.ReferenceTAM = *opts.ReferenceTAM
	}
	losses := 0
	for _, v := range tam {
		if v < s.ReferenceTAM {
			losses++
		}
	}
	s.ProbabilityOfLoss = float64(losses) / float64(n)

	sorted := sim.SortedCopy(tam)
	for _, c := range opts.ConfidenceLevels {
		rm, err := riskMetrics(sorted, c, s.ReferenceTAM)
		if err != nil {
			return nil, err
		}
		s.Risk = append(s.Risk, rm)
	}

	if s.Countries, err = countryStatistics(results, opts.Percentiles); err != nil {
		return nil, err
	}
	s.Sensitivity = sensitivity(results, tam)
	s.Scenarios = scenarios(results)

	if opts.SaveHistory {
		keep := n
		if opts.MaxHistory > 0 && opts.MaxHistory < keep {
			keep = opts.MaxHistory
		}
		s.History = append([]float64(nil), tam[:keep]...)
	}
	return s, nil
}

// computeStatistics never returns NaN: moments that are undefined for small
// or constant samples are reported as 0.
func computeStatistics(values []float64, percentiles []float64) (Statistics, error) {
	sorted := sim.SortedCopy(values)
	n := len(sorted)
	st := Statistics{
		Min:         sorted[0],
		Max:         sorted[n-1],
		Percentiles: make(map[string]float64, len(percentiles)),
	}
	if n > 1 {
		st.Mean, st.Std = stat.MeanStdDev(values, nil)
	} else {
		st.Mean = values[0]
	}
	if st.Std > 0 {
		if n > 2 {
			st.Skewness = stat.Skew(values, nil)
		}
		if n > 3 {
			st.Kurtosis = stat.ExKurtosis(values, nil)
		}
	}

	var err error
	if st.Median, err = sim.CalculatePercentile(sorted, 50); err != nil {
		return Statistics{}, err
	}
	for _, p := range percentiles {
		v, err := sim.CalculatePercentile(sorted, p)
		if err != nil {
			return Statistics{}, err
		}
		st.Percentiles[sim.PercentileKey(p)] = v
	}
	return st, nil
}

// riskMetrics treats shortfall below reference as the loss.
func riskMetrics(sorted []float64, confidence, reference float64) (RiskMetrics, error) {
	if math.IsNaN(confidence) || confidence <= 0 || confidence >= 1 {
		return RiskMetrics{}, fmt.Errorf("confidence level %v must be in (0, 1): %w", confidence, sim.ErrInvalidConfiguration)
	}
	threshold, err := sim.CalculatePercentile(sorted, (1-confidence)*100)
	if err != nil {
		return RiskMetrics{}, err
	}
	sum, count := 0.0, 0
	for _, v := range sorted {
		if v > threshold {
			break
		}
		sum += v
		count++
	}
	// The interpolated threshold is never below the minimum, so count >= 1.
	tail := sum / float64(count)
	return RiskMetrics{
		ConfidenceLevel:   confidence,
		Threshold:         threshold,
		VaR:               reference - threshold,
		ExpectedShortfall: reference - tail,
		TailMean:          tail,
	}, nil
}

func countryStatistics(results []TrialResult, percentiles []float64) ([]CountryStatistics, error) {
	codes := make([]string, 0, len(results[0].CountryTAM))
	for code := range results[0].CountryTAM {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	out := make([]CountryStatistics, 0, len(codes))
	values := make([]float64, len(results))
	for _, code := range codes {
		for i := range results {
			values[i] = results[i].CountryTAM[code]
		}
		st, err := computeStatistics(values, percentiles)
		if err != nil {
			return nil, err
		}
		out = append(out, CountryStatistics{Code: code, TAM: st})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TAM.Mean > out[j].TAM.Mean })
	return out, nil
}

// sensitivity skips parameters that never varied; their correlation is undefined.
func sensitivity(results []TrialResult, tam []float64) []Sensitivity {
	if len(results) < 2 {
		return nil
	}
	_, tamStd := stat.MeanStdDev(tam, nil)
	if tamStd == 0 {
		return nil
	}
	out := []Sensitivity{}
	values := make([]float64, len(results))
	for _, name := range results[0].Sample.Names() {
		for i := range results {
			values[i] = results[i].Sample[name]
		}
		if _, std := stat.MeanStdDev(values, nil); std == 0 {
			continue
		}
		out = append(out, Sensitivity{Parameter: name, Correlation: stat.Correlation(values, tam, nil)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Correlation) > math.Abs(out[j].Correlation)
	})
	return out
}

func scenarios(results []TrialResult) Scenarios {
	idx := make([]int, len(results))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return results[idx[a]].GlobalTAM < results[idx[b]].GlobalTAM })
	pick := func(i int) Scenario {
		r := &results[i]
		return Scenario{Trial: r.Index, GlobalTAM: r.GlobalTAM, Sample: r.Sample}
	}
	return Scenarios{
		Worst:  pick(idx[0]),
		Median: pick(idx[(len(idx)-1)/2]),
		Best:   pick(idx[len(idx)-1]),
	}
}
