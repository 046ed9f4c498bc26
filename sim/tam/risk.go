package tam

import (
	"github.com/inference-sim/tam-sim/sim/country"
)

// Risk scores run from 0 (benign) to 10 (worst).
const (
	MaxRisk     = 10.0
	NeutralRisk = 5.0
)

// RegulatoryRisk maps a regulatory quality score in [-2.5, 2.5] linearly onto
// a risk in [0, 10], with the best score giving 0. Unknown scores are neutral.
// Out-of-range scores are clamped.
func RegulatoryRisk(score *float64) float64 {
	if score == nil {
		return NeutralRisk
	}
	span := country.MaxRegulatoryScore - country.MinRegulatoryScore
	risk := (country.MaxRegulatoryScore - *score) / span * MaxRisk
	switch {
	case risk < 0:
		return 0
	case risk > MaxRisk:
		return MaxRisk
	}
	return risk
}

// RiskAdjustedRevenue haircuts revenue by up to 50% at maximum risk.
func RiskAdjustedRevenue(revenue, risk float64) float64 {
	return revenue * (1 - risk/(2*MaxRisk))
}
