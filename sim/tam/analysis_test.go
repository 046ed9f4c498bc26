package tam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/tam-sim/sim"
	"github.com/inference-sim/tam-sim/sim/country"
	"github.com/inference-sim/tam-sim/sim/internal/testutil"
)

func TestRegulatoryRisk(t *testing.T) {
	score := func(v float64) *float64 { return &v }
	tests := []struct {
		name  string
		score *float64
		want  float64
	}{
		{"best", score(2.5), 0},
		{"worst", score(-2.5), 10},
		{"midpoint", score(0), 5},
		{"missing is neutral", nil, 5},
		{"US", score(1.21), 2.58},
		{"clamped high", score(4), 0},
		{"clamped low", score(-4), 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, RegulatoryRisk(tt.score), 1e-12)
		})
	}
}

func TestRiskAdjustedRevenue(t *testing.T) {
	assert.Equal(t, 100.0, RiskAdjustedRevenue(100, 0))
	assert.Equal(t, 75.0, RiskAdjustedRevenue(100, 5))
	assert.Equal(t, 50.0, RiskAdjustedRevenue(100, 10))
}

func TestAnalyze_SortedByRevenueWithTotals(t *testing.T) {
	// GIVEN the sample markets and baseline assumptions
	countries := country.Sample()

	// WHEN analyzing
	an, err := DefaultModel().Analyze(baseline(), countries)
	require.NoError(t, err)

	// THEN countries are ranked by revenue, largest first
	require.Len(t, an.Countries, len(countries))
	for i := 1; i < len(an.Countries); i++ {
		assert.GreaterOrEqual(t, an.Countries[i-1].AnnualRevenue, an.Countries[i].AnnualRevenue)
	}
	assert.Equal(t, "US", an.Countries[0].Code)

	// AND totals agree with the per-country rows
	sum := 0.0
	for _, c := range an.Countries {
		sum += c.AnnualRevenue
	}
	testutil.AssertFloat64Equal(t, "total", sum, an.TotalRevenue, 1e-12)
	assert.Less(t, an.RiskAdjustedRevenue, an.TotalRevenue)
	assert.Equal(t, country.TotalPopulation(countries), an.TotalPopulation)
	assert.InDelta(t, an.TotalCustomers/float64(an.TotalPopulation), an.PopulationPenetration, 1e-15)
	assert.Equal(t, float64(DefaultGlobalLandAreaKm2), an.GlobalLandAreaKm2)

	// AND the input slice is untouched
	assert.Equal(t, "US", countries[0].Code)
	assert.Equal(t, "CN", countries[1].Code)
}

func TestAnalyze_PropagatesEvaluateError(t *testing.T) {
	a := baseline()
	a.MinBandwidthPerUserMbps = 0
	_, err := DefaultModel().Analyze(a, testutil.TwoMarkets())
	assert.ErrorIs(t, err, sim.ErrInvalidInput)
}

func TestTopMarkets(t *testing.T) {
	rows := []CountryResult{
		{Code: "A", AnnualRevenue: 10, RiskAdjustedRevenue: 9, Customers: 300},
		{Code: "B", AnnualRevenue: 30, RiskAdjustedRevenue: 15, Customers: 100},
		{Code: "C", AnnualRevenue: 60, RiskAdjustedRevenue: 36, Customers: 200},
	}

	got, err := TopMarkets(rows, 2, MetricTAM)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, MarketRank{Rank: 1, Code: "C", Value: 60, Share: 0.6}, got[0])
	assert.Equal(t, MarketRank{Rank: 2, Code: "B", Value: 30, Share: 0.3}, got[1])

	got, err = TopMarkets(rows, 0, MetricCustomers)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"A", "C", "B"}, []string{got[0].Code, got[1].Code, got[2].Code})

	got, err = TopMarkets(rows, 10, MetricRiskAdjusted)
	require.NoError(t, err)
	assert.Equal(t, "C", got[0].Code)
	assert.InDelta(t, 36.0/60, got[0].Share, 1e-12)

	_, err = TopMarkets(rows, 1, Metric("gdp"))
	assert.ErrorIs(t, err, sim.ErrInvalidConfiguration)
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric(" Risk_Adjusted ")
	require.NoError(t, err)
	assert.Equal(t, MetricRiskAdjusted, m)

	_, err = ParseMetric("revenue")
	assert.ErrorIs(t, err, sim.ErrInvalidConfiguration)
}
