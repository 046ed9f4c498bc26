// Package sim holds the primitives shared by the TAM estimator.
//
// # Reading Guide
//
// Start with these packages, leaves first:
//   - sim/dist/: distribution samplers, correlation matrices, correlated parameter generation
//   - sim/country/: country records, validation and loading
//   - sim/tam/: the per-country revenue formula, risk scoring and deterministic analysis
//   - sim/montecarlo/: the trial runner and the results aggregator
//   - sim/config/: the YAML/JSON configuration document
//   - sim/report/: summary export and console tables
//
// This package itself only defines:
//   - errors.go: the error taxonomy, matched with errors.Is
//   - rng.go: SimulationKey and PartitionedRNG (per-trial seeded streams)
//   - stats.go: order-statistic helpers shared by aggregation and reporting
package sim
