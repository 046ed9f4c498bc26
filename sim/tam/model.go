// Package tam evaluates the top-down satellite broadband TAM formula: supply-side
// capacity (satellites, bandwidth, oversubscription) against demand-side
// willingness to pay (a fraction of monthly GDP per capita), per country.
package tam

import (
	"fmt"
	"math"

	"github.com/inference-sim/tam-sim/sim"
	"github.com/inference-sim/tam-sim/sim/country"
	"github.com/inference-sim/tam-sim/sim/dist"
)

// DefaultGlobalLandAreaKm2 is Earth's land surface.
const DefaultGlobalLandAreaKm2 = 148_940_000

// Names of the model parameters as they appear in configuration and samples.
const (
	ParamSatellitesTotal        = "satellites_total"
	ParamBandwidthPerSatellite  = "bandwidth_per_satellite_mbps"
	ParamOversubscriptionRatio  = "oversubscription_ratio"
	ParamMinBandwidthPerUser    = "minimum_bandwidth_per_user_mbps"
	ParamGDPFractionWillingness = "gdp_fraction_willingness_to_pay"
)

// ParameterNames lists every model parameter in canonical order.
var ParameterNames = []string{
	ParamSatellitesTotal,
	ParamBandwidthPerSatellite,
	ParamOversubscriptionRatio,
	ParamMinBandwidthPerUser,
	ParamGDPFractionWillingness,
}

// Assumptions is one fully specified parameter set.
type Assumptions struct {
	SatellitesTotal             float64 `json:"satellites_total" yaml:"satellites_total"`
	BandwidthPerSatelliteMbps   float64 `json:"bandwidth_per_satellite_mbps" yaml:"bandwidth_per_satellite_mbps"`
	OversubscriptionRatio       float64 `json:"oversubscription_ratio" yaml:"oversubscription_ratio"`
	MinBandwidthPerUserMbps     float64 `json:"minimum_bandwidth_per_user_mbps" yaml:"minimum_bandwidth_per_user_mbps"`
	GDPFractionWillingnessToPay float64 `json:"gdp_fraction_willingness_to_pay" yaml:"gdp_fraction_willingness_to_pay"`
}

// AssumptionsFromSample maps a trial sample onto Assumptions. A missing
// parameter is a configuration error; extra entries are ignored.
func AssumptionsFromSample(s dist.TrialSample) (Assumptions, error) {
	values := make([]float64, len(ParameterNames))
	for i, name := range ParameterNames {
		v, ok := s[name]
		if !ok {
			return Assumptions{}, fmt.Errorf("missing required parameter %q: %w", name, sim.ErrInvalidConfiguration)
		}
		values[i] = v
	}
	return Assumptions{
		SatellitesTotal:             values[0],
		BandwidthPerSatelliteMbps:   values[1],
		OversubscriptionRatio:       values[2],
		MinBandwidthPerUserMbps:     values[3],
		GDPFractionWillingnessToPay: values[4],
	}, nil
}

// Validate rejects non-finite or negative assumptions with sim.ErrInvalidInput.
func (a Assumptions) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{ParamSatellitesTotal, a.SatellitesTotal},
		{ParamBandwidthPerSatellite, a.BandwidthPerSatelliteMbps},
		{ParamOversubscriptionRatio, a.OversubscriptionRatio},
		{ParamMinBandwidthPerUser, a.MinBandwidthPerUserMbps},
		{ParamGDPFractionWillingness, a.GDPFractionWillingnessToPay},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%s is not finite (%v): %w", f.name, f.v, sim.ErrInvalidInput)
		}
		if f.v < 0 {
			return fmt.Errorf("%s is negative (%v): %w", f.name, f.v, sim.ErrInvalidInput)
		}
	}
	return nil
}

// CountryResult is the formula output for one market.
type CountryResult struct {
	Code string `json:"country_code" yaml:"country_code"`
	Name string `json:"country_name,omitempty" yaml:"country_name,omitempty"`

	Satellites                    float64 `json:"satellites" yaml:"satellites"`
	BandwidthMbps                 float64 `json:"bandwidth_mbps" yaml:"bandwidth_mbps"`
	EffectiveBandwidthPerUserMbps float64 `json:"effective_bandwidth_per_user_mbps" yaml:"effective_bandwidth_per_user_mbps"`
	Customers                     float64 `json:"customers" yaml:"customers"`
	// Capped is set when the capacity formula exceeded the population.
	Capped          bool    `json:"capped" yaml:"capped"`
	RuralCustomers  float64 `json:"rural_customers" yaml:"rural_customers"`
	MonthlyPriceUSD float64 `json:"monthly_price_usd" yaml:"monthly_price_usd"`
	AnnualRevenue   float64 `json:"annual_revenue_usd" yaml:"annual_revenue_usd"`

	RegulatoryRisk      float64 `json:"regulatory_risk" yaml:"regulatory_risk"`
	RiskAdjustedRevenue float64 `json:"risk_adjusted_revenue_usd" yaml:"risk_adjusted_revenue_usd"`
}

// Result is the formula output over all markets. Countries keep feed order.
type Result struct {
	Countries           []CountryResult
	TotalRevenue        float64
	TotalCustomers      float64
	TotalBandwidthMbps  float64
	RiskAdjustedRevenue float64
}

// Model holds the constants of the formula that are not sampled.
type Model struct {
	GlobalLandAreaKm2 float64
}

// DefaultModel uses Earth's land surface as the allocation base.
func DefaultModel() Model {
	return Model{GlobalLandAreaKm2: DefaultGlobalLandAreaKm2}
}

// Validate checks that the land area can be divided by.
func (m Model) Validate() error {
	if m.GlobalLandAreaKm2 <= 0 || math.IsNaN(m.GlobalLandAreaKm2) || math.IsInf(m.GlobalLandAreaKm2, 0) {
		return fmt.Errorf("global land area must be a finite value > 0, got %v: %w", m.GlobalLandAreaKm2, sim.ErrInvalidInput)
	}
	return nil
}

// Evaluate applies the formula to every country. It is pure and safe to call
// concurrently. Any division by zero or negative intermediate fails with
// sim.ErrInvalidInput rather than producing Inf or NaN.
func (m Model) Evaluate(a Assumptions, countries []country.Record) (*Result, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	res := &Result{Countries: make([]CountryResult, 0, len(countries))}
	for i := range countries {
		cr, err := m.evaluateCountry(a, &countries[i])
		if err != nil {
			return nil, err
		}
		res.Countries = append(res.Countries, cr)
		res.TotalRevenue += cr.AnnualRevenue
		res.TotalCustomers += cr.Customers
		res.TotalBandwidthMbps += cr.BandwidthMbps
		res.RiskAdjustedRevenue += cr.RiskAdjustedRevenue
	}
	return res, nil
}

func (m Model) evaluateCountry(a Assumptions, c *country.Record) (CountryResult, error) {
	if c.Population < 0 {
		return CountryResult{}, fmt.Errorf("%s: negative population %d: %w", c.Code, c.Population, sim.ErrInvalidInput)
	}
	if c.LandAreaKm2 < 0 {
		return CountryResult{}, fmt.Errorf("%s: negative land area %v: %w", c.Code, c.LandAreaKm2, sim.ErrInvalidInput)
	}

	satellites := a.SatellitesTotal * (c.LandAreaKm2 / m.GlobalLandAreaKm2)
	bandwidth := satellites * a.BandwidthPerSatelliteMbps
	if bandwidth < 0 {
		return CountryResult{}, fmt.Errorf("%s: negative bandwidth %v Mbps: %w", c.Code, bandwidth, sim.ErrInvalidInput)
	}

	perUser := math.Max(c.AvgSpeedMbps(), a.MinBandwidthPerUserMbps)
	if perUser <= 0 {
		return CountryResult{}, fmt.Errorf("%s: effective bandwidth per user is zero: %w", c.Code, sim.ErrInvalidInput)
	}

	population := float64(c.Population)
	customers := bandwidth / perUser * a.OversubscriptionRatio
	capped := customers > population
	if capped {
		customers = population
	}

	price := c.MonthlyGDPPerCapita() * a.GDPFractionWillingnessToPay
	revenue := customers * price * 12
	risk := RegulatoryRisk(c.RegulatoryQualityScore)

	return CountryResult{
		Code:                          c.Code,
		Name:                          c.Name,
		Satellites:                    satellites,
		BandwidthMbps:                 bandwidth,
		EffectiveBandwidthPerUserMbps: perUser,
		Customers:                     customers,
		Capped:                        capped,
		RuralCustomers:                customers * c.RuralFraction,
		MonthlyPriceUSD:               price,
		AnnualRevenue:                 revenue,
		RegulatoryRisk:                risk,
		RiskAdjustedRevenue:           RiskAdjustedRevenue(revenue, risk),
	}, nil
}
