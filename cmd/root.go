package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/inference-sim/tam-sim/sim/config"
	"github.com/inference-sim/tam-sim/sim/country"
)

var logLevel string // Log verbosity level

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "tam-sim",
	Short: "Satellite broadband TAM estimator with Monte Carlo uncertainty analysis",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", logLevel, err)
		}
		logrus.SetLevel(level)
		return nil
	},
	SilenceUsage: true,
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newMonteCarloCmd())
	rootCmd.AddCommand(newTopMarketsCmd())
}

// addInputFlags registers the flags every command reads its inputs from.
func addInputFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to a YAML or JSON configuration document (default: built-in baseline)")
	fs.String("countries", "", "Path to a country data file: .csv, .yaml, .yml or .json (default: built-in sample)")
	fs.StringSlice("filter", nil, "Comma-separated country codes to keep, e.g. US,BR,IN")
}

// loadInputs reads the configuration document and the (filtered) country feed.
func loadInputs(fs *pflag.FlagSet) (*config.Document, []country.Record, error) {
	configPath, _ := fs.GetString("config")
	countriesPath, _ := fs.GetString("countries")
	codes, _ := fs.GetStringSlice("filter")

	doc, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	records, err := country.Load(countriesPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading countries: %w", err)
	}
	records, err = country.Filter(records, codes)
	if err != nil {
		return nil, nil, err
	}
	logrus.Debugf("Loaded %d countries", len(records))
	return doc, records, nil
}
