package dist

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/inference-sim/tam-sim/sim"
)

// Kind names a distribution family.
type Kind string

const (
	KindFixed      Kind = "fixed"
	KindUniform    Kind = "uniform"
	KindNormal     Kind = "normal"
	KindLogNormal  Kind = "lognormal"
	KindBeta       Kind = "beta"
	KindGamma      Kind = "gamma"
	KindTriangular Kind = "triangular"
)

// validKinds lists the accepted distribution kinds for error messages.
var validKinds = []Kind{KindUniform, KindNormal, KindLogNormal, KindBeta, KindGamma, KindTriangular, KindFixed}

// Distribution is a validated, immutable marginal distribution.
type Distribution interface {
	// Kind reports the distribution family.
	Kind() Kind
	// Sample draws one value using rng. Deterministic for a given rng state.
	Sample(rng *rand.Rand) float64
	// Quantile returns the inverse CDF at p in [0, 1].
	Quantile(p float64) float64
	// Support returns the closed interval containing every sample.
	Support() (lo, hi float64)
}

// DistSpec is the configuration form of a distribution: a kind plus the
// distribution-specific keys. Unused keys must be nil.
type DistSpec struct {
	Kind  Kind     `yaml:"distribution" json:"distribution"`
	Value *float64 `yaml:"value,omitempty" json:"value,omitempty"`
	Min   *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max   *float64 `yaml:"max,omitempty" json:"max,omitempty"`
	Mode  *float64 `yaml:"mode,omitempty" json:"mode,omitempty"`
	Mean  *float64 `yaml:"mean,omitempty" json:"mean,omitempty"`
	Std   *float64 `yaml:"std,omitempty" json:"std,omitempty"`
	Alpha *float64 `yaml:"alpha,omitempty" json:"alpha,omitempty"`
	Beta  *float64 `yaml:"beta,omitempty" json:"beta,omitempty"`
	Shape *float64 `yaml:"shape,omitempty" json:"shape,omitempty"`
	Scale *float64 `yaml:"scale,omitempty" json:"scale,omitempty"`
	Shift *float64 `yaml:"shift,omitempty" json:"shift,omitempty"`
}

// Float returns a pointer to v. Handy for building a DistSpec in code.
func Float(v float64) *float64 { return &v }

// FixedSpec returns the DistSpec of a constant value.
func FixedSpec(v float64) DistSpec {
	return DistSpec{Kind: KindFixed, Value: Float(v)}
}

// ParameterSpec binds a model parameter name to its distribution.
type ParameterSpec struct {
	Name string
	Dist Distribution
}

// NewParameterSpec validates spec and builds the named parameter.
func NewParameterSpec(name string, spec DistSpec) (ParameterSpec, error) {
	if name == "" {
		return ParameterSpec{}, fmt.Errorf("parameter name is empty: %w", sim.ErrInvalidConfiguration)
	}
	d, err := NewDistribution(spec)
	if err != nil {
		return ParameterSpec{}, fmt.Errorf("parameter %q: %w", name, err)
	}
	return ParameterSpec{Name: name, Dist: d}, nil
}

// Sample draws one value of the parameter.
func (p ParameterSpec) Sample(rng *rand.Rand) float64 {
	return p.Dist.Sample(rng)
}

// IsFixed reports whether the parameter is a constant.
func (p ParameterSpec) IsFixed() bool {
	return p.Dist.Kind() == KindFixed
}

// Median returns the 50th percentile of the parameter's distribution.
func (p ParameterSpec) Median() float64 {
	return p.Dist.Quantile(0.5)
}

// requireParam checks that all named keys are set.
func requireParam(kind Kind, params map[string]*float64, keys ...string) error {
	for _, k := range keys {
		v, ok := params[k]
		if !ok || v == nil {
			return fmt.Errorf("%s distribution requires parameter %q: %w", kind, k, sim.ErrInvalidParameter)
		}
		if math.IsNaN(*v) || math.IsInf(*v, 0) {
			return fmt.Errorf("%s parameter %q must be a finite number, got %f: %w", kind, k, *v, sim.ErrInvalidParameter)
		}
	}
	return nil
}

func requirePositive(kind Kind, name string, v float64) error {
	if v <= 0 {
		return fmt.Errorf("%s parameter %q must be positive, got %g: %w", kind, name, v, sim.ErrInvalidParameter)
	}
	return nil
}

func optional(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// NewDistribution creates a Distribution from a DistSpec.
func NewDistribution(spec DistSpec) (Distribution, error) {
	params := map[string]*float64{
		"value": spec.Value, "min": spec.Min, "max": spec.Max, "mode": spec.Mode,
		"mean": spec.Mean, "std": spec.Std, "alpha": spec.Alpha, "beta": spec.Beta,
		"shape": spec.Shape, "scale": spec.Scale, "shift": spec.Shift,
	}

	switch spec.Kind {
	case KindFixed:
		if err := requireParam(spec.Kind, params, "value"); err != nil {
			return nil, err
		}
		return Fixed{Value: *spec.Value}, nil

	case KindUniform:
		if err := requireParam(spec.Kind, params, "min", "max"); err != nil {
			return nil, err
		}
		if *spec.Min >= *spec.Max {
			return nil, fmt.Errorf("uniform requires min < max, got min=%g max=%g: %w", *spec.Min, *spec.Max, sim.ErrInvalidParameter)
		}
		return Uniform{Min: *spec.Min, Max: *spec.Max}, nil

	case KindNormal:
		if err := requireParam(spec.Kind, params, "mean", "std"); err != nil {
			return nil, err
		}
		if err := requirePositive(spec.Kind, "std", *spec.Std); err != nil {
			return nil, err
		}
		return Normal{Mean: *spec.Mean, Std: *spec.Std}, nil

	case KindLogNormal:
		if err := requireParam(spec.Kind, params, "mean", "std"); err != nil {
			return nil, err
		}
		if err := requirePositive(spec.Kind, "std", *spec.Std); err != nil {
			return nil, err
		}
		return LogNormal{Mu: *spec.Mean, Sigma: *spec.Std}, nil

	case KindBeta:
		if err := requireParam(spec.Kind, params, "alpha", "beta"); err != nil {
			return nil, err
		}
		b := Beta{Alpha: *spec.Alpha, Beta: *spec.Beta, Scale: optional(spec.Scale, 1), Shift: optional(spec.Shift, 0)}
		for _, c := range []struct {
			name string
			v    float64
		}{{"alpha", b.Alpha}, {"beta", b.Beta}, {"scale", b.Scale}} {
			if err := requirePositive(spec.Kind, c.name, c.v); err != nil {
				return nil, err
			}
		}
		if math.IsNaN(b.Shift) || math.IsInf(b.Shift, 0) || math.IsNaN(b.Scale) || math.IsInf(b.Scale, 0) {
			return nil, fmt.Errorf("beta scale and shift must be finite: %w", sim.ErrInvalidParameter)
		}
		return b, nil

	case KindGamma:
		if err := requireParam(spec.Kind, params, "shape", "scale"); err != nil {
			return nil, err
		}
		if err := requirePositive(spec.Kind, "shape", *spec.Shape); err != nil {
			return nil, err
		}
		if err := requirePositive(spec.Kind, "scale", *spec.Scale); err != nil {
			return nil, err
		}
		return Gamma{Shape: *spec.Shape, Scale: *spec.Scale}, nil

	case KindTriangular:
		if err := requireParam(spec.Kind, params, "min", "mode", "max"); err != nil {
			return nil, err
		}
		lo, mode, hi := *spec.Min, *spec.Mode, *spec.Max
		if lo >= hi || mode < lo || mode > hi {
			return nil, fmt.Errorf("triangular requires min < max and min <= mode <= max, got min=%g mode=%g max=%g: %w",
				lo, mode, hi, sim.ErrInvalidParameter)
		}
		return Triangular{Min: lo, Mode: mode, Max: hi}, nil

	default:
		return nil, fmt.Errorf("distribution %q (valid: %v): %w", spec.Kind, validKinds, sim.ErrUnsupportedDistribution)
	}
}

// === Variants ===

// Fixed always returns Value.
type Fixed struct {
	Value float64
}

func (d Fixed) Kind() Kind { return KindFixed }

func (d Fixed) Sample(_ *rand.Rand) float64 { return d.Value }

func (d Fixed) Quantile(_ float64) float64 { return d.Value }

func (d Fixed) Support() (float64, float64) { return d.Value, d.Value }

// Uniform has constant density on [Min, Max].
type Uniform struct {
	Min, Max float64
}

func (d Uniform) Kind() Kind { return KindUniform }

func (d Uniform) Sample(rng *rand.Rand) float64 {
	return distuv.Uniform{Min: d.Min, Max: d.Max, Src: rng}.Rand()
}

func (d Uniform) Quantile(p float64) float64 {
	return distuv.Uniform{Min: d.Min, Max: d.Max}.Quantile(p)
}

func (d Uniform) Support() (float64, float64) { return d.Min, d.Max }

// Normal is Mean + Std*Z.
type Normal struct {
	Mean, Std float64
}

func (d Normal) Kind() Kind { return KindNormal }

func (d Normal) Sample(rng *rand.Rand) float64 {
	return distuv.Normal{Mu: d.Mean, Sigma: d.Std, Src: rng}.Rand()
}

func (d Normal) Quantile(p float64) float64 {
	return distuv.Normal{Mu: d.Mean, Sigma: d.Std}.Quantile(p)
}

func (d Normal) Support() (float64, float64) { return math.Inf(-1), math.Inf(1) }

// LogNormal is exp(N(Mu, Sigma)); Mu and Sigma describe the log of the variable.
type LogNormal struct {
	Mu, Sigma float64
}

func (d LogNormal) Kind() Kind { return KindLogNormal }

func (d LogNormal) Sample(rng *rand.Rand) float64 {
	return distuv.LogNormal{Mu: d.Mu, Sigma: d.Sigma, Src: rng}.Rand()
}

func (d LogNormal) Quantile(p float64) float64 {
	return distuv.LogNormal{Mu: d.Mu, Sigma: d.Sigma}.Quantile(p)
}

func (d LogNormal) Support() (float64, float64) { return 0, math.Inf(1) }

// Beta is Shift + Scale*Beta(Alpha, Beta).
type Beta struct {
	Alpha, Beta  float64
	Scale, Shift float64
}

func (d Beta) Kind() Kind { return KindBeta }

func (d Beta) Sample(rng *rand.Rand) float64 {
	return d.Shift + d.Scale*distuv.Beta{Alpha: d.Alpha, Beta: d.Beta, Src: rng}.Rand()
}

func (d Beta) Quantile(p float64) float64 {
	return d.Shift + d.Scale*distuv.Beta{Alpha: d.Alpha, Beta: d.Beta}.Quantile(p)
}

func (d Beta) Support() (float64, float64) { return d.Shift, d.Shift + d.Scale }

// Gamma is parameterized by shape and scale (mean = Shape*Scale).
type Gamma struct {
	Shape, Scale float64
}

func (d Gamma) Kind() Kind { return KindGamma }

// gonum's Gamma takes a rate, the reciprocal of scale.
func (d Gamma) dist(rng *rand.Rand) distuv.Gamma {
	g := distuv.Gamma{Alpha: d.Shape, Beta: 1 / d.Scale}
	if rng != nil {
		g.Src = rng
	}
	return g
}

func (d Gamma) Sample(rng *rand.Rand) float64 { return d.dist(rng).Rand() }

func (d Gamma) Quantile(p float64) float64 { return d.dist(nil).Quantile(p) }

func (d Gamma) Support() (float64, float64) { return 0, math.Inf(1) }

// Triangular has a piecewise-linear density on [Min, Max] peaking at Mode.
type Triangular struct {
	Min, Mode, Max float64
}

func (d Triangular) Kind() Kind { return KindTriangular }

func (d Triangular) Sample(rng *rand.Rand) float64 {
	return distuv.NewTriangle(d.Min, d.Max, d.Mode, rng).Rand()
}

func (d Triangular) Quantile(p float64) float64 {
	return distuv.NewTriangle(d.Min, d.Max, d.Mode, nil).Quantile(p)
}

func (d Triangular) Support() (float64, float64) { return d.Min, d.Max }
