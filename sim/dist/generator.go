package dist

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/inference-sim/tam-sim/sim"
)

// probEpsilon keeps copula probabilities off 0 and 1, where unbounded
// quantile functions return ±Inf.
const probEpsilon = 1e-12

// TrialSample is one realization of every parameter: name -> value.
// Created fresh per trial and never shared between trials.
type TrialSample map[string]float64

// Names returns the parameter names in sorted order.
func (s TrialSample) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// String renders the sample as "a=1, b=2" with names sorted.
func (s TrialSample) String() string {
	var sb strings.Builder
	for i, n := range s.Names() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(n)
		sb.WriteByte('=')
		sb.WriteString(strconv.FormatFloat(s[n], 'g', -1, 64))
	}
	return sb.String()
}

// Generator produces jointly distributed TrialSamples.
//
// Without a correlation matrix every parameter is drawn independently with its
// own sampler. With one, the correlated parameters are drawn through a Gaussian
// copula: z ~ N(0, I), y = L*z, u = Φ(y), x = Quantile(u). Parameters outside the
// matrix are drawn independently after the correlated block.
//
// A Generator is immutable and safe for concurrent use; all randomness comes
// from the rng passed to Generate.
type Generator struct {
	specs      []ParameterSpec
	corr       *CorrelationMatrix
	corrSpecs  []int // corrSpecs[i] is the spec index of corr dimension i
	correlated []bool
}

// NewGenerator validates the parameter set against corr (which may be nil).
func NewGenerator(specs []ParameterSpec, corr *CorrelationMatrix) (*Generator, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("no parameters to sample: %w", sim.ErrInvalidConfiguration)
	}
	byName := make(map[string]int, len(specs))
	for i, s := range specs {
		if s.Dist == nil {
			return nil, fmt.Errorf("parameter %q has no distribution: %w", s.Name, sim.ErrInvalidConfiguration)
		}
		if _, dup := byName[s.Name]; dup {
			return nil, fmt.Errorf("duplicate parameter %q: %w", s.Name, sim.ErrInvalidConfiguration)
		}
		byName[s.Name] = i
	}

	g := &Generator{
		specs:      append([]ParameterSpec(nil), specs...),
		corr:       corr,
		correlated: make([]bool, len(specs)),
	}
	if corr == nil {
		return g, nil
	}
	for _, n := range corr.Names() {
		idx, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("correlation references unknown parameter %q: %w", n, sim.ErrInvalidCorrelationMatrix)
		}
		if specs[idx].IsFixed() {
			return nil, fmt.Errorf("correlation references fixed parameter %q: %w", n, sim.ErrInvalidCorrelationMatrix)
		}
		g.corrSpecs = append(g.corrSpecs, idx)
		g.correlated[idx] = true
	}
	return g, nil
}

// Specs returns the parameters in generation order.
func (g *Generator) Specs() []ParameterSpec {
	return append([]ParameterSpec(nil), g.specs...)
}

// Names returns the parameter names in generation order.
func (g *Generator) Names() []string {
	names := make([]string, len(g.specs))
	for i, s := range g.specs {
		names[i] = s.Name
	}
	return names
}

// Correlated reports whether a correlation matrix is applied.
func (g *Generator) Correlated() bool {
	return g.corr != nil
}

// Generate draws one TrialSample using rng.
func (g *Generator) Generate(rng *rand.Rand) TrialSample {
	sample := make(TrialSample, len(g.specs))

	if g.corr != nil {
		z := make([]float64, len(g.corrSpecs))
		for i := range z {
			z[i] = rng.NormFloat64()
		}
		y := g.corr.Correlate(z)
		for i, idx := range g.corrSpecs {
			u := distuv.UnitNormal.CDF(y[i])
			if u < probEpsilon {
				u = probEpsilon
			} else if u > 1-probEpsilon {
				u = 1 - probEpsilon
			}
			s := g.specs[idx]
			sample[s.Name] = s.Dist.Quantile(u)
		}
	}

	for i, s := range g.specs {
		if g.correlated[i] {
			continue
		}
		sample[s.Name] = s.Sample(rng)
	}
	return sample
}

// Medians returns the sample made of every parameter's median: the base case
// of a deterministic run.
func (g *Generator) Medians() TrialSample {
	sample := make(TrialSample, len(g.specs))
	for _, s := range g.specs {
		sample[s.Name] = s.Median()
	}
	return sample
}
