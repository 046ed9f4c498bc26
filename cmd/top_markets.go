package cmd

import (
	"github.com/spf13/cobra"

	"github.com/inference-sim/tam-sim/sim/report"
	"github.com/inference-sim/tam-sim/sim/tam"
)

func newTopMarketsCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "top-markets",
		Short: "Rank countries on the base case by TAM, risk-adjusted TAM or customers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			metricName, _ := cmd.Flags().GetString("metric")
			topN, _ := cmd.Flags().GetInt("top-n")
			metric, err := tam.ParseMetric(metricName)
			if err != nil {
				return err
			}
			an, err := baseAnalysis(cmd.Flags())
			if err != nil {
				return err
			}
			rows, err := tam.TopMarkets(an.Countries, topN, metric)
			if err != nil {
				return err
			}
			report.PrintTopMarkets(cmd.OutOrStdout(), metric, rows)
			return nil
		},
	}
	addInputFlags(c.Flags())
	c.Flags().String("metric", string(tam.MetricTAM), "Ranking metric: tam, risk_adjusted or customers")
	c.Flags().Int("top-n", 10, "Number of markets to show (0 = all)")
	return c
}
