// Package montecarlo runs the TAM formula over many independently sampled
// parameter sets and reduces the per-trial outputs into a Summary.
package montecarlo

import (
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/inference-sim/tam-sim/sim"
)

// DefaultConfidenceLevels are the VaR/ES levels reported when none are configured.
var DefaultConfidenceLevels = []float64{0.90, 0.95, 0.99}

// DefaultPercentiles are the percentiles reported when none are configured.
var DefaultPercentiles = []float64{1, 5, 10, 25, 50, 75, 90, 95, 99}

// Config controls one Monte Carlo run.
type Config struct {
	Trials int
	Seed   int64
	// Workers is the concurrency degree; 0 means runtime.NumCPU().
	Workers int

	ConfidenceLevels []float64
	Percentiles      []float64
	// ReferenceTAM is the level losses are measured from; nil means the mean
	// simulated TAM.
	ReferenceTAM *float64

	SaveHistory bool
	// MaxHistory truncates the retained history; 0 keeps every trial.
	MaxHistory int
	// TimeBudget aborts dispatch of the whole run once exceeded; 0 disables it.
	TimeBudget time.Duration
}

// DefaultConfig returns 10,000 trials seeded with 42 on all CPUs.
func DefaultConfig() Config {
	return Config{
		Trials:           10_000,
		Seed:             42,
		ConfidenceLevels: append([]float64(nil), DefaultConfidenceLevels...),
		Percentiles:      append([]float64(nil), DefaultPercentiles...),
		SaveHistory:      true,
		MaxHistory:       10_000,
	}
}

// Validate checks every field. Failures wrap sim.ErrInvalidConfiguration.
func (c Config) Validate() error {
	if c.Trials < 1 {
		return fmt.Errorf("trial count must be >= 1, got %d: %w", c.Trials, sim.ErrInvalidConfiguration)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d: %w", c.Workers, sim.ErrInvalidConfiguration)
	}
	for _, cl := range c.ConfidenceLevels {
		if math.IsNaN(cl) || cl <= 0 || cl >= 1 {
			return fmt.Errorf("confidence level %v must be in (0, 1): %w", cl, sim.ErrInvalidConfiguration)
		}
	}
	for _, p := range c.Percentiles {
		if math.IsNaN(p) || p < 0 || p > 100 {
			return fmt.Errorf("percentile %v must be in [0, 100]: %w", p, sim.ErrInvalidConfiguration)
		}
	}
	if r := c.ReferenceTAM; r != nil && (math.IsNaN(*r) || math.IsInf(*r, 0)) {
		return fmt.Errorf("reference TAM must be finite, got %v: %w", *r, sim.ErrInvalidConfiguration)
	}
	if c.MaxHistory < 0 {
		return fmt.Errorf("max history must be >= 0, got %d: %w", c.MaxHistory, sim.ErrInvalidConfiguration)
	}
	if c.TimeBudget < 0 {
		return fmt.Errorf("time budget must be >= 0, got %v: %w", c.TimeBudget, sim.ErrInvalidConfiguration)
	}
	return nil
}

// EffectiveWorkers resolves the worker count, never exceeding the trial count.
func (c Config) EffectiveWorkers() int {
	w := c.Workers
	if w == 0 {
		w = runtime.NumCPU()
	}
	if c.Trials > 0 && w > c.Trials {
		w = c.Trials
	}
	return w
}

// aggregateOptions fills unset reporting fields with defaults.
func (c Config) aggregateOptions() AggregateOptions {
	opts := AggregateOptions{
		ConfidenceLevels: c.ConfidenceLevels,
		Percentiles:      c.Percentiles,
		ReferenceTAM:     c.ReferenceTAM,
		SaveHistory:      c.SaveHistory,
		MaxHistory:       c.MaxHistory,
	}
	if len(opts.ConfidenceLevels) == 0 {
		opts.ConfidenceLevels = DefaultConfidenceLevels
	}
	if len(opts.Percentiles) == 0 {
		opts.Percentiles = DefaultPercentiles
	}
	return opts
}
