// Package config loads the YAML (or JSON) document describing model
// parameters, their correlations and Monte Carlo settings, and turns it into
// validated simulator inputs.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/inference-sim/tam-sim/sim"
	"github.com/inference-sim/tam-sim/sim/dist"
	"github.com/inference-sim/tam-sim/sim/montecarlo"
	"github.com/inference-sim/tam-sim/sim/tam"
)

// Document is the top-level configuration file.
type Document struct {
	GlobalLandAreaKm2 *float64                  `yaml:"global_land_area_km2,omitempty"`
	Parameters        map[string]ParameterValue `yaml:"parameters"`
	Correlations      dist.Coefficients         `yaml:"correlations,omitempty"`
	Simulation        Simulation                `yaml:"simulation,omitempty"`
}

// Simulation holds Monte Carlo settings. Unset fields take the defaults of
// montecarlo.DefaultConfig.
type Simulation struct {
	Trials           *int          `yaml:"trials,omitempty"`
	Seed             *int64        `yaml:"seed,omitempty"`
	Workers          int           `yaml:"workers,omitempty"`
	ConfidenceLevels []float64     `yaml:"confidence_levels,omitempty"`
	Percentiles      []float64     `yaml:"percentiles,omitempty"`
	ReferenceTAM     *float64      `yaml:"reference_tam,omitempty"`
	SaveHistory      *bool         `yaml:"save_history,omitempty"`
	MaxHistory       *int          `yaml:"max_history,omitempty"`
	TimeBudget       time.Duration `yaml:"time_budget,omitempty"`
}

// ParameterValue is either a scalar (a fixed value) or a distribution mapping.
type ParameterValue struct {
	Spec dist.DistSpec
}

// allowedDistKeys mirrors the yaml tags of dist.DistSpec. Custom unmarshalers
// do not inherit the decoder's KnownFields setting, so keys are checked here.
var allowedDistKeys = map[string]bool{
	"distribution": true, "value": true,
	"min": true, "max": true, "mode": true,
	"mean": true, "std": true,
	"alpha": true, "beta": true,
	"shape": true, "scale": true, "shift": true,
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *ParameterValue) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var v float64
		if err := node.Decode(&v); err != nil {
			return fmt.Errorf("line %d: parameter value %q is not a number", node.Line, node.Value)
		}
		p.Spec = dist.FixedSpec(v)
		return nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			if !allowedDistKeys[key] {
				return fmt.Errorf("line %d: unknown distribution key %q", node.Content[i].Line, key)
			}
		}
		var spec dist.DistSpec
		if err := node.Decode(&spec); err != nil {
			return err
		}
		if spec.Kind == "" {
			return fmt.Errorf("line %d: distribution mapping needs a \"distribution\" key", node.Line)
		}
		p.Spec = spec
		return nil
	}
	return fmt.Errorf("line %d: parameter must be a number or a distribution mapping", node.Line)
}

// MarshalYAML writes fixed values back as plain scalars.
func (p ParameterValue) MarshalYAML() (interface{}, error) {
	if p.Spec.Kind == dist.KindFixed && p.Spec.Value != nil {
		return *p.Spec.Value, nil
	}
	return p.Spec, nil
}

// Default returns the deterministic baseline assumptions.
func Default() *Document {
	return &Document{
		Parameters: map[string]ParameterValue{
			tam.ParamSatellitesTotal:        {Spec: dist.FixedSpec(12000)},
			tam.ParamBandwidthPerSatellite:  {Spec: dist.FixedSpec(17)},
			tam.ParamOversubscriptionRatio:  {Spec: dist.FixedSpec(20)},
			tam.ParamMinBandwidthPerUser:    {Spec: dist.FixedSpec(20)},
			tam.ParamGDPFractionWillingness: {Spec: dist.FixedSpec(0.02)},
		},
	}
}

// Load reads, decodes and validates a configuration file. An empty path
// returns Default().
func Load(path string) (*Document, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Parse strictly decodes a YAML or JSON document and validates it. Unknown
// keys anywhere in the document are rejected.
func Parse(data []byte) (*Document, error) {
	var doc Document
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("config is empty: %w", sim.ErrInvalidConfiguration)
		}
		return nil, fmt.Errorf("parsing config: %v: %w", err, sim.ErrInvalidConfiguration)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate builds every derived object once so that all errors surface before
// any trial runs.
func (d *Document) Validate() error {
	if unknown := unknownParameters(d.Parameters); len(unknown) > 0 {
		return fmt.Errorf("unknown parameter %q (known: %s): %w",
			unknown[0], strings.Join(tam.ParameterNames, ", "), sim.ErrInvalidConfiguration)
	}
	if _, err := d.Generator(); err != nil {
		return err
	}
	if err := d.Model().Validate(); err != nil {
		return fmt.Errorf("global_land_area_km2: %v: %w", err, sim.ErrInvalidConfiguration)
	}
	if err := d.MonteCarlo().Validate(); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}
	return nil
}

func unknownParameters(params map[string]ParameterValue) []string {
	known := make(map[string]bool, len(tam.ParameterNames))
	for _, n := range tam.ParameterNames {
		known[n] = true
	}
	var unknown []string
	for n := range params {
		if !known[n] {
			unknown = append(unknown, n)
		}
	}
	sort.Strings(unknown)
	return unknown
}

// ParameterSpecs returns the five model parameters in canonical order.
func (d *Document) ParameterSpecs() ([]dist.ParameterSpec, error) {
	specs := make([]dist.ParameterSpec, 0, len(tam.ParameterNames))
	for _, name := range tam.ParameterNames {
		v, ok := d.Parameters[name]
		if !ok {
			return nil, fmt.Errorf("missing required parameter %q: %w", name, sim.ErrInvalidConfiguration)
		}
		ps, err := dist.NewParameterSpec(name, v.Spec)
		if err != nil {
			return nil, err
		}
		specs = append(specs, ps)
	}
	return specs, nil
}

// Correlation builds the matrix over the parameters named in the correlations
// block, ordered as in specs. It returns nil when the block is empty.
func (d *Document) Correlation(specs []dist.ParameterSpec) (*dist.CorrelationMatrix, error) {
	if len(d.Correlations) == 0 {
		return nil, nil
	}
	mentioned := make(map[string]bool)
	for a, row := range d.Correlations {
		mentioned[a] = true
		for b := range row {
			mentioned[b] = true
		}
	}
	var names []string
	for _, s := range specs {
		if mentioned[s.Name] {
			names = append(names, s.Name)
			delete(mentioned, s.Name)
		}
	}
	// Anything left over is not a parameter; the matrix reports it.
	leftover := make([]string, 0, len(mentioned))
	for n := range mentioned {
		leftover = append(leftover, n)
	}
	sort.Strings(leftover)
	names = append(names, leftover...)
	return dist.NewCorrelationMatrix(names, d.Correlations)
}

// Generator builds the correlated parameter generator.
func (d *Document) Generator() (*dist.Generator, error) {
	specs, err := d.ParameterSpecs()
	if err != nil {
		return nil, err
	}
	corr, err := d.Correlation(specs)
	if err != nil {
		return nil, err
	}
	return dist.NewGenerator(specs, corr)
}

// IsDeterministic reports whether every parameter is a fixed value.
func (d *Document) IsDeterministic() bool {
	for _, v := range d.Parameters {
		if v.Spec.Kind != dist.KindFixed {
			return false
		}
	}
	return true
}

// BaseAssumptions returns the deterministic base case: fixed values as given
// and every distribution at its median.
func (d *Document) BaseAssumptions() (tam.Assumptions, error) {
	gen, err := d.Generator()
	if err != nil {
		return tam.Assumptions{}, err
	}
	return tam.AssumptionsFromSample(gen.Medians())
}

// Model returns the formula constants.
func (d *Document) Model() tam.Model {
	m := tam.DefaultModel()
	if d.GlobalLandAreaKm2 != nil {
		m.GlobalLandAreaKm2 = *d.GlobalLandAreaKm2
	}
	return m
}

// MonteCarlo merges the simulation block over montecarlo.DefaultConfig.
func (d *Document) MonteCarlo() montecarlo.Config {
	cfg := montecarlo.DefaultConfig()
	s := d.Simulation
	if s.Trials != nil {
		cfg.Trials = *s.Trials
	}
	if s.Seed != nil {
		cfg.Seed = *s.Seed
	}
	cfg.Workers = s.Workers
	if len(s.ConfidenceLevels) > 0 {
		cfg.ConfidenceLevels = s.ConfidenceLevels
	}
	if len(s.Percentiles) > 0 {
		cfg.Percentiles = s.Percentiles
	}
	if s.ReferenceTAM != nil {
		ref := *s.ReferenceTAM
		cfg.ReferenceTAM = &ref
	}
	if s.SaveHistory != nil {
		cfg.SaveHistory = *s.SaveHistory
	}
	if s.MaxHistory != nil {
		cfg.MaxHistory = *s.MaxHistory
	}
	cfg.TimeBudget = s.TimeBudget
	return cfg
}
