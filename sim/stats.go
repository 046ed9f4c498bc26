package sim

import (
	"fmt"
	"math"
	"sort"
)

// CalculatePercentile returns the p-th percentile (p in [0, 100]) of sorted data,
// interpolating linearly between the two nearest order statistics:
// rank = p/100 * (n-1).
// data MUST be sorted ascending.
func CalculatePercentile(sorted []float64, p float64) (float64, error) {
	n := len(sorted)
	if n == 0 {
		return 0, fmt.Errorf("percentile p%g over zero samples: %w", p, ErrEmptyResults)
	}
	if math.IsNaN(p) || p < 0 || p > 100 {
		return 0, fmt.Errorf("percentile %g outside [0, 100]: %w", p, ErrInvalidConfiguration)
	}

	rank := p / 100.0 * float64(n-1)
	lowerIdx := int(math.Floor(rank))
	upperIdx := int(math.Ceil(rank))
	if upperIdx >= n {
		upperIdx = n - 1
	}
	if lowerIdx == upperIdx {
		return sorted[lowerIdx], nil
	}
	lowerVal := sorted[lowerIdx]
	upperVal := sorted[upperIdx]
	return lowerVal + (upperVal-lowerVal)*(rank-float64(lowerIdx)), nil
}

// CalculateMean returns the arithmetic mean, or 0 for an empty slice.
func CalculateMean(numbers []float64) float64 {
	if len(numbers) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, number := range numbers {
		sum += number
	}
	return sum / float64(len(numbers))
}

// SortedCopy returns an ascending copy of data, leaving data untouched.
func SortedCopy(data []float64) []float64 {
	out := make([]float64, len(data))
	copy(out, data)
	sort.Float64s(out)
	return out
}

// PercentileKey formats a percentile as the map key used in summaries: 5 -> "p5", 2.5 -> "p2.5".
func PercentileKey(p float64) string {
	return fmt.Sprintf("p%g", p)
}
