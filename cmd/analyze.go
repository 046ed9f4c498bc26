package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/inference-sim/tam-sim/sim/report"
	"github.com/inference-sim/tam-sim/sim/tam"
)

func newAnalyzeCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "analyze",
		Short: "Run the TAM formula once on the base-case assumptions",
		Long: "Evaluate the TAM formula for every country using fixed parameter values, or the median of\n" +
			"each distribution when the configuration describes uncertainty.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			an, err := baseAnalysis(cmd.Flags())
			if err != nil {
				return err
			}
			report.PrintAnalysis(cmd.OutOrStdout(), an)
			return writeOutput(cmd.Flags(), func(path string, f report.Format) error {
				return report.WriteAnalysis(path, f, an)
			})
		},
	}
	addInputFlags(c.Flags())
	addOutputFlags(c.Flags())
	return c
}

// baseAnalysis evaluates the deterministic base case of the loaded inputs.
func baseAnalysis(fs *pflag.FlagSet) (*tam.Analysis, error) {
	doc, records, err := loadInputs(fs)
	if err != nil {
		return nil, err
	}
	a, err := doc.BaseAssumptions()
	if err != nil {
		return nil, err
	}
	if !doc.IsDeterministic() {
		logrus.Infof("Configuration has distributions; analyzing their medians")
	}
	an, err := doc.Model().Analyze(a, records)
	if err != nil {
		return nil, fmt.Errorf("evaluating TAM: %w", err)
	}
	return an, nil
}

func addOutputFlags(fs *pflag.FlagSet) {
	fs.StringP("output", "o", "", "Write results to this file")
	fs.String("format", "", "Output format: json, yaml or csv (default: from --output extension, else json)")
}

// writeOutput calls write when --output is set.
func writeOutput(fs *pflag.FlagSet, write func(path string, f report.Format) error) error {
	path, _ := fs.GetString("output")
	if path == "" {
		return nil
	}
	name, _ := fs.GetString("format")
	f, err := report.ParseFormat(name, path)
	if err != nil {
		return err
	}
	return write(path, f)
}
