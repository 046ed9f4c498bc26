package tam

import (
	"fmt"
	"sort"
	"strings"

	"github.com/inference-sim/tam-sim/sim"
	"github.com/inference-sim/tam-sim/sim/country"
)

// Analysis is a deterministic run of the formula over one parameter set.
type Analysis struct {
	Assumptions       Assumptions `json:"assumptions" yaml:"assumptions"`
	GlobalLandAreaKm2 float64     `json:"global_land_area_km2" yaml:"global_land_area_km2"`

	TotalRevenue        float64 `json:"total_revenue_usd" yaml:"total_revenue_usd"`
	RiskAdjustedRevenue float64 `json:"risk_adjusted_revenue_usd" yaml:"risk_adjusted_revenue_usd"`
	TotalCustomers      float64 `json:"total_customers" yaml:"total_customers"`
	TotalBandwidthGbps  float64 `json:"total_bandwidth_gbps" yaml:"total_bandwidth_gbps"`
	TotalPopulation     int64   `json:"total_population" yaml:"total_population"`
	// PopulationPenetration is customers over population across all markets.
	PopulationPenetration float64 `json:"population_penetration" yaml:"population_penetration"`

	// Countries sorted by annual revenue, largest first.
	Countries []CountryResult `json:"countries" yaml:"countries"`
}

// Analyze evaluates a single parameter set and ranks countries by revenue.
func (m Model) Analyze(a Assumptions, countries []country.Record) (*Analysis, error) {
	res, err := m.Evaluate(a, countries)
	if err != nil {
		return nil, err
	}
	ranked := append([]CountryResult(nil), res.Countries...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].AnnualRevenue > ranked[j].AnnualRevenue
	})

	pop := country.TotalPopulation(countries)
	an := &Analysis{
		Assumptions:         a,
		GlobalLandAreaKm2:   m.GlobalLandAreaKm2,
		TotalRevenue:        res.TotalRevenue,
		RiskAdjustedRevenue: res.RiskAdjustedRevenue,
		TotalCustomers:      res.TotalCustomers,
		TotalBandwidthGbps:  res.TotalBandwidthMbps / 1000,
		TotalPopulation:     pop,
		Countries:           ranked,
	}
	if pop > 0 {
		an.PopulationPenetration = res.TotalCustomers / float64(pop)
	}
	return an, nil
}

// Metric selects the value markets are ranked by.
type Metric string

const (
	MetricTAM          Metric = "tam"
	MetricRiskAdjusted Metric = "risk_adjusted"
	MetricCustomers    Metric = "customers"
)

var validMetrics = map[Metric]bool{MetricTAM: true, MetricRiskAdjusted: true, MetricCustomers: true}

// ParseMetric accepts a metric name case-insensitively.
func ParseMetric(s string) (Metric, error) {
	m := Metric(strings.ToLower(strings.TrimSpace(s)))
	if !validMetrics[m] {
		return "", fmt.Errorf("unknown metric %q (want tam, risk_adjusted or customers): %w", s, sim.ErrInvalidConfiguration)
	}
	return m, nil
}

func (m Metric) value(c *CountryResult) float64 {
	switch m {
	case MetricRiskAdjusted:
		return c.RiskAdjustedRevenue
	case MetricCustomers:
		return c.Customers
	default:
		return c.AnnualRevenue
	}
}

// MarketRank is one row of a top-markets table.
type MarketRank struct {
	Rank  int     `json:"rank" yaml:"rank"`
	Code  string  `json:"country_code" yaml:"country_code"`
	Name  string  `json:"country_name,omitempty" yaml:"country_name,omitempty"`
	Value float64 `json:"value" yaml:"value"`
	// Share of the metric's total over all markets, in [0, 1].
	Share float64 `json:"share" yaml:"share"`
}

// TopMarkets ranks countries by metric, largest first, and returns at most n
// rows (all rows when n <= 0). Ties keep input order.
func TopMarkets(countries []CountryResult, n int, metric Metric) ([]MarketRank, error) {
	if !validMetrics[metric] {
		return nil, fmt.Errorf("unknown metric %q: %w", metric, sim.ErrInvalidConfiguration)
	}
	total := 0.0
	rows := make([]MarketRank, len(countries))
	for i := range countries {
		v := metric.value(&countries[i])
		total += v
		rows[i] = MarketRank{Code: countries[i].Code, Name: countries[i].Name, Value: v}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Value > rows[j].Value })
	if n > 0 && n < len(rows) {
		rows = rows[:n]
	}
	for i := range rows {
		rows[i].Rank = i + 1
		if total > 0 {
			rows[i].Share = rows[i].Value / total
		}
	}
	return rows, nil
}
