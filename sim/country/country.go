// Package country holds the static economic and geographic attributes of each
// market and loads them from CSV, YAML or JSON feeds.
package country

import (
	"fmt"
	"math"
	"strings"

	"github.com/inference-sim/tam-sim/sim"
)

// Regulatory quality scores follow the World Bank governance indicator range.
const (
	MinRegulatoryScore = -2.5
	MaxRegulatoryScore = 2.5
)

// Record is one market. Records are loaded once per run and shared read-only
// across all trials.
type Record struct {
	Code        string `yaml:"country_code" json:"country_code"`
	Name        string `yaml:"country_name,omitempty" json:"country_name,omitempty"`
	Region      string `yaml:"region,omitempty" json:"region,omitempty"`
	IncomeGroup string `yaml:"income_group,omitempty" json:"income_group,omitempty"`

	Population  int64   `yaml:"population_total" json:"population_total"`
	LandAreaKm2 float64 `yaml:"land_area_km2" json:"land_area_km2"`

	GDPPerCapitaUSD float64 `yaml:"gdp_per_capita_usd" json:"gdp_per_capita_usd"`

	// Zero means derive from the annual figure.
	GDPPerCapitaMonthlyUSD float64 `yaml:"gdp_per_capita_monthly,omitempty" json:"gdp_per_capita_monthly,omitempty"`

	AvgBroadbandSpeedMbps  *float64 `yaml:"avg_broadband_speed_mbps,omitempty" json:"avg_broadband_speed_mbps,omitempty"`
	RuralFraction          float64  `yaml:"rural_fraction" json:"rural_fraction"`
	RegulatoryQualityScore *float64 `yaml:"regulatory_quality_score,omitempty" json:"regulatory_quality_score,omitempty"`
}

// MonthlyGDPPerCapita returns the monthly figure, deriving it as annual/12
// when the feed leaves it empty.
func (r *Record) MonthlyGDPPerCapita() float64 {
	if r.GDPPerCapitaMonthlyUSD > 0 {
		return r.GDPPerCapitaMonthlyUSD
	}
	return r.GDPPerCapitaUSD / 12
}

// AvgSpeedMbps returns the measured broadband speed, or 0 when unknown.
func (r *Record) AvgSpeedMbps() float64 {
	if r.AvgBroadbandSpeedMbps == nil {
		return 0
	}
	return *r.AvgBroadbandSpeedMbps
}

// Label returns "Name (CODE)", or just the code when the name is empty.
func (r *Record) Label() string {
	if r.Name == "" {
		return r.Code
	}
	return fmt.Sprintf("%s (%s)", r.Name, r.Code)
}

// Validate checks ranges. Every failure wraps sim.ErrInvalidInput.
func (r *Record) Validate() error {
	if n := len(r.Code); n < 2 || n > 3 {
		return fmt.Errorf("country code %q must be 2-3 characters: %w", r.Code, sim.ErrInvalidInput)
	}
	if r.Population <= 0 {
		return fmt.Errorf("%s: population_total must be > 0, got %d: %w", r.Code, r.Population, sim.ErrInvalidInput)
	}
	if err := validatePositive(r.Code, "land_area_km2", r.LandAreaKm2); err != nil {
		return err
	}
	if err := validatePositive(r.Code, "gdp_per_capita_usd", r.GDPPerCapitaUSD); err != nil {
		return err
	}
	if r.GDPPerCapitaMonthlyUSD < 0 || math.IsNaN(r.GDPPerCapitaMonthlyUSD) || math.IsInf(r.GDPPerCapitaMonthlyUSD, 0) {
		return fmt.Errorf("%s: gdp_per_capita_monthly must be a finite value >= 0, got %v: %w",
			r.Code, r.GDPPerCapitaMonthlyUSD, sim.ErrInvalidInput)
	}
	if math.IsNaN(r.RuralFraction) || r.RuralFraction < 0 || r.RuralFraction > 1 {
		return fmt.Errorf("%s: rural_fraction must be in [0, 1], got %v: %w", r.Code, r.RuralFraction, sim.ErrInvalidInput)
	}
	if s := r.AvgBroadbandSpeedMbps; s != nil && (*s < 0 || math.IsNaN(*s) || math.IsInf(*s, 0)) {
		return fmt.Errorf("%s: avg_broadband_speed_mbps must be a finite value >= 0, got %v: %w", r.Code, *s, sim.ErrInvalidInput)
	}
	if s := r.RegulatoryQualityScore; s != nil && (math.IsNaN(*s) || *s < MinRegulatoryScore || *s > MaxRegulatoryScore) {
		return fmt.Errorf("%s: regulatory_quality_score must be in [%g, %g], got %v: %w",
			r.Code, MinRegulatoryScore, MaxRegulatoryScore, *s, sim.ErrInvalidInput)
	}
	return nil
}

func validatePositive(code, field string, v float64) error {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%s: %s must be a finite value > 0, got %v: %w", code, field, v, sim.ErrInvalidInput)
	}
	return nil
}

// ValidateAll validates every record and rejects duplicate codes.
func ValidateAll(records []Record) error {
	if len(records) == 0 {
		return fmt.Errorf("no countries: %w", sim.ErrInvalidInput)
	}
	seen := make(map[string]int, len(records))
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return fmt.Errorf("country %d: %w", i+1, err)
		}
		key := strings.ToUpper(records[i].Code)
		if prev, dup := seen[key]; dup {
			return fmt.Errorf("country %d: duplicate code %q (first seen at %d): %w", i+1, records[i].Code, prev, sim.ErrInvalidInput)
		}
		seen[key] = i + 1
	}
	return nil
}

// Filter returns the records whose code matches one of codes (case-insensitive),
// in the order of records. An empty codes list returns all records. A code that
// matches nothing is an error.
func Filter(records []Record, codes []string) ([]Record, error) {
	if len(codes) == 0 {
		return records, nil
	}
	want := make(map[string]bool, len(codes))
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c != "" {
			want[c] = false
		}
	}
	var out []Record
	for _, r := range records {
		key := strings.ToUpper(r.Code)
		if _, ok := want[key]; ok {
			out = append(out, r)
			want[key] = true
		}
	}
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if found, ok := want[c]; ok && !found {
			return nil, fmt.Errorf("unknown country code %q: %w", c, sim.ErrInvalidInput)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("filter %v selected no countries: %w", codes, sim.ErrInvalidInput)
	}
	return out, nil
}

// TotalPopulation sums population over records.
func TotalPopulation(records []Record) int64 {
	var total int64
	for i := range records {
		total += records[i].Population
	}
	return total
}
