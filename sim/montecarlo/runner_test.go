package montecarlo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/tam-sim/sim"
	"github.com/inference-sim/tam-sim/sim/country"
	"github.com/inference-sim/tam-sim/sim/dist"
	"github.com/inference-sim/tam-sim/sim/tam"
)

func spec(t *testing.T, name string, s dist.DistSpec) dist.ParameterSpec {
	t.Helper()
	p, err := dist.NewParameterSpec(name, s)
	require.NoError(t, err)
	return p
}

// uncertainSpecs mirrors a typical Monte Carlo configuration: one fixed
// parameter and four sampled ones.
func uncertainSpecs(t *testing.T) []dist.ParameterSpec {
	return []dist.ParameterSpec{
		spec(t, tam.ParamSatellitesTotal, dist.FixedSpec(12000)),
		spec(t, tam.ParamBandwidthPerSatellite, dist.DistSpec{Kind: dist.KindUniform, Min: dist.Float(12), Max: dist.Float(22)}),
		spec(t, tam.ParamOversubscriptionRatio, dist.DistSpec{Kind: dist.KindUniform, Min: dist.Float(15), Max: dist.Float(25)}),
		spec(t, tam.ParamMinBandwidthPerUser, dist.DistSpec{Kind: dist.KindTriangular, Min: dist.Float(15), Mode: dist.Float(20), Max: dist.Float(30)}),
		spec(t, tam.ParamGDPFractionWillingness, dist.DistSpec{Kind: dist.KindBeta, Alpha: dist.Float(2), Beta: dist.Float(50)}),
	}
}

func newGenerator(t *testing.T, correlated bool) *dist.Generator {
	t.Helper()
	var corr *dist.CorrelationMatrix
	if correlated {
		var err error
		corr, err = dist.NewCorrelationMatrix(
			[]string{tam.ParamBandwidthPerSatellite, tam.ParamOversubscriptionRatio},
			dist.Coefficients{tam.ParamBandwidthPerSatellite: {tam.ParamOversubscriptionRatio: 0.3}},
		)
		require.NoError(t, err)
	}
	g, err := dist.NewGenerator(uncertainSpecs(t), corr)
	require.NoError(t, err)
	return g
}

func newRunner(t *testing.T, cfg Config, correlated bool) *Runner {
	t.Helper()
	r, err := NewRunner(cfg, newGenerator(t, correlated), country.Sample(), tam.DefaultModel())
	require.NoError(t, err)
	return r
}

func smallConfig(trials, workers int) Config {
	cfg := DefaultConfig()
	cfg.Trials = trials
	cfg.Workers = workers
	return cfg
}

func TestNewRunner_ZeroTrials_InvalidConfiguration(t *testing.T) {
	_, err := NewRunner(smallConfig(0, 1), newGenerator(t, false), country.Sample(), tam.DefaultModel())
	assert.ErrorIs(t, err, sim.ErrInvalidConfiguration)
}

func TestNewRunner_StructuralErrors(t *testing.T) {
	gen := newGenerator(t, false)

	_, err := NewRunner(smallConfig(10, 1), nil, country.Sample(), tam.DefaultModel())
	assert.ErrorIs(t, err, sim.ErrInvalidConfiguration)

	partial, err := dist.NewGenerator(uncertainSpecs(t)[:4], nil)
	require.NoError(t, err)
	_, err = NewRunner(smallConfig(10, 1), partial, country.Sample(), tam.DefaultModel())
	require.ErrorIs(t, err, sim.ErrInvalidConfiguration)
	assert.Contains(t, err.Error(), tam.ParamGDPFractionWillingness)

	_, err = NewRunner(smallConfig(10, 1), gen, nil, tam.DefaultModel())
	assert.ErrorIs(t, err, sim.ErrInvalidInput)

	_, err = NewRunner(smallConfig(10, 1), gen, country.Sample(), tam.Model{})
	assert.ErrorIs(t, err, sim.ErrInvalidInput)
}

func TestRun_SingleTrial_AllPercentilesEqual(t *testing.T) {
	// GIVEN one trial
	r := newRunner(t, smallConfig(1, 4), false)

	// WHEN running
	s, err := r.Run(context.Background())
	require.NoError(t, err)

	// THEN every percentile equals the single trial's value
	v := s.GlobalTAM.Mean
	assert.Greater(t, v, 0.0)
	assert.Equal(t, 0.0, s.GlobalTAM.Std)
	assert.Equal(t, v, s.GlobalTAM.Min)
	assert.Equal(t, v, s.GlobalTAM.Max)
	assert.Equal(t, v, s.GlobalTAM.Median)
	require.Len(t, s.GlobalTAM.Percentiles, len(DefaultPercentiles))
	for k, p := range s.GlobalTAM.Percentiles {
		assert.Equal(t, v, p, k)
	}
	assert.Equal(t, 1, s.Workers)
	assert.Equal(t, 1, s.CompletedTrials)
	assert.False(t, s.Partial)
}

func TestRun_SameSeed_BitIdenticalSummary(t *testing.T) {
	for _, correlated := range []bool{false, true} {
		a, err := newRunner(t, smallConfig(2000, 4), correlated).Run(context.Background())
		require.NoError(t, err)
		b, err := newRunner(t, smallConfig(2000, 4), correlated).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, a, b, "correlated=%v", correlated)
	}
}

func TestRun_WorkerCountDoesNotChangeStatistics(t *testing.T) {
	// GIVEN identical seed and configuration
	var summaries []*Summary
	for _, workers := range []int{1, 3, 8} {
		s, err := newRunner(t, smallConfig(3000, workers), true).Run(context.Background())
		require.NoError(t, err)
		summaries = append(summaries, s)
	}

	// THEN only the reported worker count differs
	for _, s := range summaries[1:] {
		s.Workers = summaries[0].Workers
		assert.Equal(t, summaries[0], s)
	}
}

func TestRun_DifferentSeedsDiffer(t *testing.T) {
	cfgA, cfgB := smallConfig(500, 2), smallConfig(500, 2)
	cfgB.Seed = 43
	a, err := newRunner(t, cfgA, false).Run(context.Background())
	require.NoError(t, err)
	b, err := newRunner(t, cfgB, false).Run(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, a.GlobalTAM.Mean, b.GlobalTAM.Mean)
}

func TestRun_StateTransitions(t *testing.T) {
	r := newRunner(t, smallConfig(10, 2), false)
	assert.Equal(t, StateIdle, r.State())
	_, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, r.State())
	assert.Equal(t, "completed", r.State().String())
}

func TestRun_FailingTrial_ReportsIndexAndSample(t *testing.T) {
	// GIVEN a bandwidth distribution that often goes negative
	specs := uncertainSpecs(t)
	specs[1] = spec(t, tam.ParamBandwidthPerSatellite, dist.DistSpec{Kind: dist.KindNormal, Mean: dist.Float(1), Std: dist.Float(10)})
	gen, err := dist.NewGenerator(specs, nil)
	require.NoError(t, err)
	r, err := NewRunner(smallConfig(1000, 4), gen, country.Sample(), tam.DefaultModel())
	require.NoError(t, err)

	// WHEN running
	s, err := r.Run(context.Background())

	// THEN the run fails with the offending trial identified
	require.Error(t, err)
	assert.Nil(t, s)
	assert.Equal(t, StateFailed, r.State())
	assert.True(t, errors.Is(err, sim.ErrInvalidInput))

	var te *TrialError
	require.True(t, errors.As(err, &te))
	assert.Less(t, te.Sample[tam.ParamBandwidthPerSatellite], 0.0)
	assert.Contains(t, err.Error(), "trial ")
	assert.Contains(t, err.Error(), tam.ParamBandwidthPerSatellite+"=")
}

func TestRun_FailingTrial_SameErrorForAnyWorkerCount(t *testing.T) {
	specs := uncertainSpecs(t)
	specs[1] = spec(t, tam.ParamBandwidthPerSatellite, dist.DistSpec{Kind: dist.KindNormal, Mean: dist.Float(1), Std: dist.Float(10)})
	gen, err := dist.NewGenerator(specs, nil)
	require.NoError(t, err)

	r1, err := NewRunner(smallConfig(1000, 1), gen, country.Sample(), tam.DefaultModel())
	require.NoError(t, err)
	_, err1 := r1.Run(context.Background())
	var te1 *TrialError
	require.True(t, errors.As(err1, &te1))

	// With one worker dispatch stops at the first failure, which is then the
	// lowest failing index for any worker count.
	r8, err := NewRunner(smallConfig(1000, 8), gen, country.Sample(), tam.DefaultModel())
	require.NoError(t, err)
	_, err8 := r8.Run(context.Background())
	var te8 *TrialError
	require.True(t, errors.As(err8, &te8))
	assert.Equal(t, te1.Index, te8.Index)
}

func TestRun_CancelledMidRun_PartialSummary(t *testing.T) {
	// GIVEN a run cancelled right after trial 50 completes
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := newRunner(t, smallConfig(1000, 1), false)
	r.trialHook = func(index int) {
		if index == 50 {
			cancel()
		}
	}

	// WHEN running
	s, err := r.Run(ctx)

	// THEN the completed trials are aggregated and the summary is marked partial
	require.NoError(t, err)
	assert.True(t, s.Partial)
	assert.Equal(t, StopCancelled, s.StopReason)
	assert.Equal(t, 1000, s.Trials)
	assert.Equal(t, 51, s.CompletedTrials)
	assert.Len(t, s.History, 51)
	assert.Equal(t, StateCompleted, r.State())
}

func TestRun_CancelledBeforeStart_EmptyResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := newRunner(t, smallConfig(100, 2), false)
	_, err := r.Run(ctx)
	assert.ErrorIs(t, err, sim.ErrEmptyResults)
	assert.Equal(t, StateFailed, r.State())
}

func TestRun_TimeBudget_StopsWholeRun(t *testing.T) {
	cfg := smallConfig(1000, 1)
	cfg.TimeBudget = 30 * time.Millisecond
	r := newRunner(t, cfg, false)
	r.trialHook = func(int) { time.Sleep(5 * time.Millisecond) }

	s, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, s.Partial)
	assert.Equal(t, StopTimeBudget, s.StopReason)
	assert.GreaterOrEqual(t, s.CompletedTrials, 1)
	assert.Less(t, s.CompletedTrials, 1000)
}

func TestRun_SensitivityRanksDrivers(t *testing.T) {
	s, err := newRunner(t, smallConfig(5000, 4), false).Run(context.Background())
	require.NoError(t, err)

	// The fixed satellite count never varies and is left out.
	names := make([]string, 0, len(s.Sensitivity))
	for _, e := range s.Sensitivity {
		names = append(names, e.Parameter)
	}
	assert.NotContains(t, names, tam.ParamSatellitesTotal)
	require.Len(t, s.Sensitivity, 4)

	byName := make(map[string]float64)
	for _, e := range s.Sensitivity {
		byName[e.Parameter] = e.Correlation
	}
	// More capacity and a higher price point raise TAM; the price point
	// varies most and dominates.
	assert.Greater(t, byName[tam.ParamBandwidthPerSatellite], 0.1)
	assert.Greater(t, byName[tam.ParamOversubscriptionRatio], 0.1)
	assert.Greater(t, byName[tam.ParamGDPFractionWillingness], 0.8)
	assert.Equal(t, tam.ParamGDPFractionWillingness, s.Sensitivity[0].Parameter)

	for i := 1; i < len(s.Sensitivity); i++ {
		prev, cur := s.Sensitivity[i-1].Correlation, s.Sensitivity[i].Correlation
		assert.GreaterOrEqual(t, abs(prev), abs(cur))
	}
}

func TestRun_CountryStatisticsCoverEveryMarket(t *testing.T) {
	s, err := newRunner(t, smallConfig(200, 2), false).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, s.Countries, 7)
	for i := 1; i < len(s.Countries); i++ {
		assert.GreaterOrEqual(t, s.Countries[i-1].TAM.Mean, s.Countries[i].TAM.Mean)
	}
	sum := 0.0
	for _, c := range s.Countries {
		sum += c.TAM.Mean
	}
	assert.InDelta(t, s.GlobalTAM.Mean, sum, s.GlobalTAM.Mean*1e-9)
}

func TestTrialError_Message(t *testing.T) {
	err := &TrialError{Index: 7, Sample: dist.TrialSample{"b": 2, "a": -1}, Err: sim.ErrInvalidInput}
	assert.Equal(t, "trial 7 failed with parameters {a=-1, b=2}: invalid input", err.Error())
	assert.True(t, strings.HasPrefix(err.Error(), "trial 7"))
	assert.ErrorIs(t, err, sim.ErrInvalidInput)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
