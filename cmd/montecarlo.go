package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/inference-sim/tam-sim/sim/montecarlo"
	"github.com/inference-sim/tam-sim/sim/report"
)

func newMonteCarloCmd() *cobra.Command {
	c := &cobra.Command{
		Use:     "montecarlo",
		Aliases: []string{"mc"},
		Short:   "Run a Monte Carlo simulation over uncertain parameters",
		Long: "Sample every parameter from its configured distribution (optionally correlated), evaluate the\n" +
			"TAM formula per trial and report the distribution of outcomes with VaR and expected shortfall.\n" +
			"Interrupting the run (Ctrl-C) stops dispatch and reports the trials completed so far.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			summary, err := runMonteCarlo(ctx, cmd.Flags())
			if err != nil {
				return err
			}
			report.PrintSummary(cmd.OutOrStdout(), summary)
			return writeOutput(cmd.Flags(), func(path string, f report.Format) error {
				return report.WriteSummary(path, f, summary)
			})
		},
	}
	addInputFlags(c.Flags())
	addMonteCarloFlags(c.Flags())
	addOutputFlags(c.Flags())
	return c
}

func addMonteCarloFlags(fs *pflag.FlagSet) {
	fs.IntP("simulations", "n", 10000, "Number of trials (overrides simulation.trials)")
	fs.Bool("parallel", true, "Run trials on a worker pool; false runs them on one worker")
	fs.Int("workers", 0, "Worker count, 0 = one per CPU (overrides simulation.workers)")
	fs.Int64("seed", 42, "Run seed (overrides simulation.seed)")
	fs.Float64("reference-tam", 0, "Reference TAM for VaR and probability of loss (default: mean outcome)")
	fs.Duration("timeout", 0, "Wall-clock budget for the run, e.g. 30s; 0 = none (overrides simulation.time_budget)")
}

// applyMonteCarloFlags overrides cfg with the flags the user set explicitly.
func applyMonteCarloFlags(fs *pflag.FlagSet, cfg *montecarlo.Config) {
	if fs.Changed("simulations") {
		cfg.Trials, _ = fs.GetInt("simulations")
	}
	if fs.Changed("seed") {
		cfg.Seed, _ = fs.GetInt64("seed")
	}
	if fs.Changed("workers") {
		cfg.Workers, _ = fs.GetInt("workers")
	}
	if parallel, _ := fs.GetBool("parallel"); !parallel {
		cfg.Workers = 1
	}
	if fs.Changed("reference-tam") {
		ref, _ := fs.GetFloat64("reference-tam")
		cfg.ReferenceTAM = &ref
	}
	if fs.Changed("timeout") {
		cfg.TimeBudget, _ = fs.GetDuration("timeout")
	}
}

// runMonteCarlo loads the inputs, applies flag overrides and runs to
// completion, cancellation or budget expiry.
func runMonteCarlo(ctx context.Context, fs *pflag.FlagSet) (*montecarlo.Summary, error) {
	doc, records, err := loadInputs(fs)
	if err != nil {
		return nil, err
	}
	cfg := doc.MonteCarlo()
	applyMonteCarloFlags(fs, &cfg)
	if doc.IsDeterministic() {
		logrus.Warnf("Every parameter is fixed; all %d trials will produce the same TAM", cfg.Trials)
	}

	gen, err := doc.Generator()
	if err != nil {
		return nil, err
	}
	runner, err := montecarlo.NewRunner(cfg, gen, records, doc.Model())
	if err != nil {
		return nil, err
	}
	summary, err := runner.Run(ctx)
	if err != nil {
		var te *montecarlo.TrialError
		if errors.As(err, &te) {
			logrus.Errorf("Reproduce with --seed %d; failing trial %d", cfg.Seed, te.Index)
		}
		return nil, err
	}
	return summary, nil
}
