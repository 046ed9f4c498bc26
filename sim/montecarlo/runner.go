package montecarlo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/inference-sim/tam-sim/sim"
	"github.com/inference-sim/tam-sim/sim/country"
	"github.com/inference-sim/tam-sim/sim/dist"
	"github.com/inference-sim/tam-sim/sim/tam"
)

// State is the lifecycle of a Runner.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Stop reasons recorded on partial summaries.
const (
	StopCancelled  = "cancelled"
	StopTimeBudget = "time_budget_exceeded"
)

// Runner executes trials on a bounded worker pool. Each trial draws from an
// RNG stream derived from the run seed and its index, so the Summary is
// bit-identical for any worker count.
type Runner struct {
	cfg       Config
	gen       *dist.Generator
	countries []country.Record
	model     tam.Model
	rng       *sim.PartitionedRNG

	mu    sync.Mutex
	state State

	// trialHook, when set, is called after each successful trial.
	trialHook func(index int)
}

// NewRunner validates everything a trial depends on, so that no structural
// error can surface mid-run.
func NewRunner(cfg Config, gen *dist.Generator, countries []country.Record, model tam.Model) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if gen == nil {
		return nil, fmt.Errorf("no parameter generator: %w", sim.ErrInvalidConfiguration)
	}
	have := make(map[string]bool)
	for _, n := range gen.Names() {
		have[n] = true
	}
	for _, n := range tam.ParameterNames {
		if !have[n] {
			return nil, fmt.Errorf("missing required parameter %q: %w", n, sim.ErrInvalidConfiguration)
		}
	}
	if err := country.ValidateAll(countries); err != nil {
		return nil, err
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}
	return &Runner{
		cfg:       cfg,
		gen:       gen,
		countries: countries,
		model:     model,
		rng:       sim.NewPartitionedRNG(sim.NewSimulationKey(cfg.Seed)),
	}, nil
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Run executes the configured trials and aggregates them.
//
// The first failing trial stops dispatch and the run fails with a *TrialError.
// Cancellation of ctx or expiry of the time budget also stops dispatch, but
// completed trials are still aggregated into a Summary marked Partial; only
// when no trial completed does Run fail, with sim.ErrEmptyResults.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	r.mu.Lock()
	if r.state == StateRunning {
		r.mu.Unlock()
		return nil, fmt.Errorf("run already in progress: %w", sim.ErrInvalidConfiguration)
	}
	r.state = StateRunning
	r.mu.Unlock()

	summary, err := r.run(ctx)
	if err != nil {
		r.setState(StateFailed)
		return nil, err
	}
	r.setState(StateCompleted)
	return summary, nil
}

func (r *Runner) run(ctx context.Context) (*Summary, error) {
	trials := r.cfg.Trials
	workers := r.cfg.EffectiveWorkers()
	start := time.Now()
	logrus.Infof("Starting Monte Carlo run: %d trials, %d workers, seed %d, correlated=%v",
		trials, workers, r.cfg.Seed, r.gen.Correlated())

	runCtx := ctx
	if r.cfg.TimeBudget > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.cfg.TimeBudget)
		defer cancel()
	}

	results := make([]TrialResult, trials)
	done := make([]bool, trials)
	errs := make([]error, trials)
	var completed atomic.Int64
	step := int64(trials / 10)
	if step == 0 {
		step = 1
	}

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(workers)
	for i := 0; i < trials; i++ {
		if gctx.Err() != nil {
			break
		}
		index := i
		g.Go(func() error {
			// Only caller cancellation and the budget skip dispatched trials;
			// after a trial failure the remaining ones still run so the
			// lowest failing index is always found.
			if runCtx.Err() != nil {
				return nil
			}
			res, err := r.runTrial(index)
			if err != nil {
				errs[index] = err
				return err
			}
			results[index] = res
			done[index] = true
			if n := completed.Add(1); n%step == 0 {
				logrus.Debugf("Monte Carlo progress: %d/%d trials (%.0f%%)", n, trials, 100*float64(n)/float64(trials))
			}
			if r.trialHook != nil {
				r.trialHook(index)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Report the lowest failing index so failures are reproducible.
		for _, e := range errs {
			if e != nil {
				return nil, e
			}
		}
		return nil, err
	}

	finished := make([]TrialResult, 0, completed.Load())
	for i := range results {
		if done[i] {
			finished = append(finished, results[i])
		}
	}

	stopReason := ""
	if len(finished) < trials {
		switch {
		case ctx.Err() != nil:
			stopReason = StopCancelled
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			stopReason = StopTimeBudget
		default:
			stopReason = StopCancelled
		}
	}
	if len(finished) == 0 {
		return nil, fmt.Errorf("run stopped (%s) before any trial completed: %w", stopReason, sim.ErrEmptyResults)
	}

	summary, err := Aggregate(finished, r.cfg.aggregateOptions())
	if err != nil {
		return nil, err
	}
	summary.Trials = trials
	summary.Partial = len(finished) < trials
	summary.StopReason = stopReason
	summary.Seed = r.cfg.Seed
	summary.Workers = workers
	summary.Correlated = r.gen.Correlated()

	if summary.Partial {
		logrus.Warnf("Monte Carlo run stopped early (%s): %d/%d trials completed in %v",
			stopReason, len(finished), trials, time.Since(start))
	} else {
		logrus.Infof("Monte Carlo run completed: %d trials in %v", trials, time.Since(start))
	}
	return summary, nil
}
