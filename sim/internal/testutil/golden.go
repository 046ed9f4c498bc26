// Package testutil provides shared test infrastructure for the TAM simulator:
// the golden analysis dataset, fixture markets and float assertions used
// across the sim/ test packages.
package testutil

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/inference-sim/tam-sim/sim/country"
)

// GoldenDataset represents the structure of testdata/goldendataset.json.
type GoldenDataset struct {
	Tests []GoldenTestCase `json:"tests"`
}

// GoldenTestCase is one deterministic analysis of the built-in sample markets.
type GoldenTestCase struct {
	Name                        string        `json:"name"`
	GlobalLandAreaKm2           float64       `json:"global_land_area_km2"`
	SatellitesTotal             float64       `json:"satellites_total"`
	BandwidthPerSatelliteMbps   float64       `json:"bandwidth_per_satellite_mbps"`
	OversubscriptionRatio       float64       `json:"oversubscription_ratio"`
	MinBandwidthPerUserMbps     float64       `json:"minimum_bandwidth_per_user_mbps"`
	GDPFractionWillingnessToPay float64       `json:"gdp_fraction_willingness_to_pay"`
	Metrics                     GoldenMetrics `json:"metrics"`
}

// GoldenMetrics represents the expected outputs of a golden test case.
type GoldenMetrics struct {
	TotalRevenue        float64 `json:"total_revenue_usd"`
	TotalCustomers      float64 `json:"total_customers"`
	RiskAdjustedRevenue float64 `json:"risk_adjusted_revenue_usd"`
	TotalBandwidthMbps  float64 `json:"total_bandwidth_mbps"`

	// Countries whose customer count hit the population cap
	CappedCountries []string `json:"capped_countries"`

	CountryRevenue map[string]float64 `json:"country_revenue_usd"`
}

// LoadGoldenDataset loads the golden dataset from the testdata directory.
// The path is resolved relative to this source file: sim/internal/testutil/ → testdata/.
func LoadGoldenDataset(t *testing.T) *GoldenDataset {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", "goldendataset.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read golden dataset: %v", err)
	}

	var dataset GoldenDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("Failed to parse golden dataset: %v", err)
	}
	if len(dataset.Tests) == 0 {
		t.Fatal("golden dataset has no test cases")
	}
	return &dataset
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// Market returns a minimal valid record. Speed and regulatory score are left
// unset so the formula falls back to the configured minimum bandwidth and a
// neutral risk.
func Market(code string, population int64, landAreaKm2, gdpPerCapitaUSD float64) country.Record {
	return country.Record{
		Code:            code,
		Name:            code,
		Population:      population,
		LandAreaKm2:     landAreaKm2,
		GDPPerCapitaUSD: gdpPerCapitaUSD,
	}
}

// TwoMarkets is a small fixture: one large rich market and one small poor one.
func TwoMarkets() []country.Record {
	return []country.Record{
		Market("AAA", 100_000_000, 5_000_000, 48_000),
		Market("BBB", 2_000_000, 100_000, 2_400),
	}
}
