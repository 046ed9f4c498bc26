package report

import (
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/inference-sim/tam-sim/sim/montecarlo"
	"github.com/inference-sim/tam-sim/sim/tam"
)

// maxSensitivityRows bounds the sensitivity table, like a tornado chart's bars.
const maxSensitivityRows = 5

// Dollars formats v as whole dollars with thousands separators: "$1,234,568".
func Dollars(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Sprintf("$%v", v)
	}
	s := decimal.NewFromFloat(v).Round(0).StringFixed(0)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String()
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", 100*v)
}

// PrintAnalysis renders a deterministic analysis.
func PrintAnalysis(w io.Writer, a *tam.Analysis) {
	fmt.Fprintln(w, "=== TAM Analysis ===")
	fmt.Fprintf(w, "Total Addressable Market : %s\n", Dollars(a.TotalRevenue))
	fmt.Fprintf(w, "Risk-Adjusted TAM        : %s\n", Dollars(a.RiskAdjustedRevenue))
	fmt.Fprintf(w, "Customers                : %.0f (%s of population)\n", a.TotalCustomers, percent(a.PopulationPenetration))
	fmt.Fprintf(w, "Satellites               : %.0f\n", a.Assumptions.SatellitesTotal)
	fmt.Fprintf(w, "Bandwidth                : %.1f Gbps\n", a.TotalBandwidthGbps)
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Country\tCustomers\tPrice/mo\tTAM (USD)\tRisk\tRisk-Adj. TAM\t% of Global\t")
	for _, c := range a.Countries {
		capped := ""
		if c.Capped {
			capped = "*"
		}
		share := 0.0
		if a.TotalRevenue > 0 {
			share = c.AnnualRevenue / a.TotalRevenue
		}
		fmt.Fprintf(tw, "%s\t%.0f%s\t%s\t%s\t%.2f\t%s\t%s\t\n",
			c.Code, c.Customers, capped, USD(c.MonthlyPriceUSD), Dollars(c.AnnualRevenue),
			c.RegulatoryRisk, Dollars(c.RiskAdjustedRevenue), percent(share))
	}
	_ = tw.Flush()
	for _, c := range a.Countries {
		if c.Capped {
			fmt.Fprintln(w, "* customers capped at population")
			break
		}
	}
}

// PrintTopMarkets renders a ranked market table.
func PrintTopMarkets(w io.Writer, metric tam.Metric, rows []tam.MarketRank) {
	fmt.Fprintf(w, "=== Top %d Markets by %s ===\n", len(rows), strings.ToUpper(string(metric)))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Rank\tCountry\t%s\t%% of Total\t\n", strings.ToUpper(string(metric)))
	for _, r := range rows {
		value := Dollars(r.Value)
		if metric == tam.MetricCustomers {
			value = fmt.Sprintf("%.0f", r.Value)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t\n", r.Rank, r.Code, value, percent(r.Share))
	}
	_ = tw.Flush()
}

// PrintSummary renders a Monte Carlo summary.
func PrintSummary(w io.Writer, s *montecarlo.Summary) {
	fmt.Fprintln(w, "=== Monte Carlo Simulation ===")
	fmt.Fprintf(w, "Trials Completed    : %d/%d", s.CompletedTrials, s.Trials)
	if s.Partial {
		fmt.Fprintf(w, " (stopped: %s)", s.StopReason)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Seed / Workers      : %d / %d\n", s.Seed, s.Workers)
	fmt.Fprintf(w, "Correlated Sampling : %v\n", s.Correlated)
	fmt.Fprintln(w)

	st := s.GlobalTAM
	fmt.Fprintln(w, "=== Global TAM (USD) ===")
	fmt.Fprintf(w, "Mean    : %s\n", Dollars(st.Mean))
	fmt.Fprintf(w, "Median  : %s\n", Dollars(st.Median))
	fmt.Fprintf(w, "Std Dev : %s\n", Dollars(st.Std))
	if lo, ok := st.Percentiles["p5"]; ok {
		if hi, ok := st.Percentiles["p95"]; ok {
			fmt.Fprintf(w, "90%% CI  : %s - %s\n", Dollars(lo), Dollars(hi))
		}
	}
	fmt.Fprintf(w, "Range   : %s - %s\n", Dollars(st.Min), Dollars(st.Max))
	fmt.Fprintf(w, "Skew    : %.3f (excess kurtosis %.3f)\n", st.Skewness, st.Kurtosis)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Risk ===")
	fmt.Fprintf(w, "Reference TAM       : %s\n", Dollars(s.ReferenceTAM))
	fmt.Fprintf(w, "Probability of Loss : %s\n", percent(s.ProbabilityOfLoss))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Confidence\tThreshold\tVaR\tExpected Shortfall\t")
	for _, r := range s.Risk {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", percent(r.ConfidenceLevel), Dollars(r.Threshold), Dollars(r.VaR), Dollars(r.ExpectedShortfall))
	}
	_ = tw.Flush()

	if len(s.Sensitivity) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Parameter Sensitivity ===")
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for i, e := range s.Sensitivity {
			if i == maxSensitivityRows {
				break
			}
			fmt.Fprintf(tw, "%s\t%+.3f\n", e.Parameter, e.Correlation)
		}
		_ = tw.Flush()
	}

	if len(s.Countries) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Country TAM (USD) ===")
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "Country\tMean\tP5\tP95\t")
		for _, c := range s.Countries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", c.Code, Dollars(c.TAM.Mean),
				Dollars(c.TAM.Percentiles["p5"]), Dollars(c.TAM.Percentiles["p95"]))
		}
		_ = tw.Flush()
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Scenarios ===")
	fmt.Fprintf(w, "Worst  : %s (trial %d)\n", Dollars(s.Scenarios.Worst.GlobalTAM), s.Scenarios.Worst.Trial)
	fmt.Fprintf(w, "Median : %s (trial %d)\n", Dollars(s.Scenarios.Median.GlobalTAM), s.Scenarios.Median.Trial)
	fmt.Fprintf(w, "Best   : %s (trial %d)\n", Dollars(s.Scenarios.Best.GlobalTAM), s.Scenarios.Best.Trial)
}
