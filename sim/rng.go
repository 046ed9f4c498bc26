package sim

import (
	"hash/fnv"
	"math/rand/v2"
)

// === SimulationKey ===

// SimulationKey uniquely identifies a reproducible simulation run.
// Two runs with the same SimulationKey and identical configuration
// MUST produce bit-for-bit identical results, whatever the worker count.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// SubsystemTrial names the RNG stream family for Monte Carlo trials.
// Each trial gets its own stream, keyed by trial index.
const SubsystemTrial = "trial"

// === PartitionedRNG ===

// PartitionedRNG provides deterministic, isolated RNG streams.
//
// Derivation formula: PCG(masterSeed ^ fnv1a64(SubsystemTrial), trialIndex).
// Trial streams depend only on the key and the trial index, never on which
// worker runs the trial or in what order.
//
// Thread-safety: ForTrial is safe for concurrent use (it allocates a fresh
// stream per call).
type PartitionedRNG struct {
	key       SimulationKey
	trialSeed uint64
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:       key,
		trialSeed: uint64(key) ^ fnv1a64(SubsystemTrial),
	}
}

// ForTrial returns a new RNG stream for the given trial index.
// Calling it twice with the same index yields two streams producing
// identical sequences.
func (p *PartitionedRNG) ForTrial(index int) *rand.Rand {
	return rand.New(rand.NewPCG(p.trialSeed, uint64(index)))
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}
