// Package report exports Monte Carlo summaries and deterministic analyses as
// JSON, YAML or CSV files and renders them as console tables.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/inference-sim/tam-sim/sim"
	"github.com/inference-sim/tam-sim/sim/montecarlo"
	"github.com/inference-sim/tam-sim/sim/tam"
)

// Format is an export file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts json, yaml (or yml) and csv case-insensitively. An empty
// name is inferred from the extension of path, falling back to JSON.
func ParseFormat(name, path string) (Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
		if name == "" {
			return FormatJSON, nil
		}
	}
	switch name {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unsupported output format %q (want json, yaml or csv): %w", name, sim.ErrInvalidConfiguration)
}

// WriteSummary writes a Monte Carlo summary to path, creating parent
// directories as needed.
func WriteSummary(path string, format Format, s *montecarlo.Summary) error {
	if s == nil {
		return fmt.Errorf("no summary to write: %w", sim.ErrEmptyResults)
	}
	return writeFile(path, format, s, func() [][]string { return summaryRows(s) })
}

// WriteAnalysis writes a deterministic analysis to path, creating parent
// directories as needed.
func WriteAnalysis(path string, format Format, a *tam.Analysis) error {
	if a == nil {
		return fmt.Errorf("no analysis to write: %w", sim.ErrEmptyResults)
	}
	return writeFile(path, format, a, func() [][]string { return analysisRows(a) })
}

func writeFile(path string, format Format, v any, rows func() [][]string) error {
	if path == "" {
		return fmt.Errorf("output path is empty: %w", sim.ErrInvalidConfiguration)
	}
	if _, err := ParseFormat(string(format), ""); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := encode(file, format, v, rows); err != nil {
		_ = file.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	logrus.Infof("Wrote %s results to %s", format, path)
	return nil
}

func encode(w io.Writer, format Format, v any, rows func() [][]string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.WriteAll(rows()); err != nil {
			return fmt.Errorf("writing CSV: %w", err)
		}
		return nil
	}
	return fmt.Errorf("unsupported output format %q: %w", format, sim.ErrInvalidConfiguration)
}

// USD rounds a dollar amount to cents. Non-finite values are formatted as-is
// since decimal cannot represent them.
func USD(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Summary CSV: one row per (section, key, metric).
var summaryColumns = []string{"section", "key", "metric", "value"}

func summaryRows(s *montecarlo.Summary) [][]string {
	rows := [][]string{summaryColumns}
	add := func(section, key, metric, value string) {
		rows = append(rows, []string{section, key, metric, value})
	}

	add("run", "", "trials", strconv.Itoa(s.Trials))
	add("run", "", "completed_trials", strconv.Itoa(s.CompletedTrials))
	add("run", "", "partial", strconv.FormatBool(s.Partial))
	if s.StopReason != "" {
		add("run", "", "stop_reason", s.StopReason)
	}
	add("run", "", "seed", strconv.FormatInt(s.Seed, 10))
	add("run", "", "workers", strconv.Itoa(s.Workers))
	add("run", "", "correlated", strconv.FormatBool(s.Correlated))
	add("run", "", "reference_tam_usd", USD(s.ReferenceTAM))
	add("run", "", "probability_of_loss", num(s.ProbabilityOfLoss))

	addStats := func(section, key string, st montecarlo.Statistics, format func(float64) string) {
		add(section, key, "mean", format(st.Mean))
		add(section, key, "std", format(st.Std))
		add(section, key, "min", format(st.Min))
		add(section, key, "max", format(st.Max))
		add(section, key, "median", format(st.Median))
		for _, p := range sortedPercentileKeys(st.Percentiles) {
			add(section, key, p, format(st.Percentiles[p]))
		}
		add(section, key, "skewness", num(st.Skewness))
		add(section, key, "excess_kurtosis", num(st.Kurtosis))
	}
	addStats("global_tam_usd", "", s.GlobalTAM, USD)
	addStats("risk_adjusted_tam_usd", "", s.RiskAdjustedTAM, USD)
	addStats("global_customers", "", s.GlobalCustomers, num)
	addStats("global_bandwidth_mbps", "", s.GlobalBandwidthMbps, num)

	for _, r := range s.Risk {
		key := num(r.ConfidenceLevel)
		add("risk", key, "threshold_usd", USD(r.Threshold))
		add("risk", key, "value_at_risk_usd", USD(r.VaR))
		add("risk", key, "expected_shortfall_usd", USD(r.ExpectedShortfall))
		add("risk", key, "tail_mean_usd", USD(r.TailMean))
	}
	for _, c := range s.Countries {
		addStats("country_tam_usd", c.Code, c.TAM, USD)
	}
	for _, e := range s.Sensitivity {
		add("sensitivity", e.Parameter, "correlation", num(e.Correlation))
	}
	for _, sc := range []struct {
		name string
		s    montecarlo.Scenario
	}{{"worst", s.Scenarios.Worst}, {"median", s.Scenarios.Median}, {"best", s.Scenarios.Best}} {
		add("scenario", sc.name, "trial", strconv.Itoa(sc.s.Trial))
		add("scenario", sc.name, "global_tam_usd", USD(sc.s.GlobalTAM))
		for _, name := range sc.s.Sample.Names() {
			add("scenario", sc.name, name, num(sc.s.Sample[name]))
		}
	}
	return rows
}

// Analysis CSV: one row per country plus a TOTAL row.
var analysisColumns = []string{
	"country_code", "country_name", "satellites", "bandwidth_mbps",
	"effective_bandwidth_per_user_mbps", "customers", "capped", "rural_customers",
	"monthly_price_usd", "annual_revenue_usd", "regulatory_risk", "risk_adjusted_revenue_usd",
}

func analysisRows(a *tam.Analysis) [][]string {
	rows := [][]string{analysisColumns}
	for _, c := range a.Countries {
		rows = append(rows, []string{
			c.Code,
			c.Name,
			num(c.Satellites),
			num(c.BandwidthMbps),
			num(c.EffectiveBandwidthPerUserMbps),
			num(c.Customers),
			strconv.FormatBool(c.Capped),
			num(c.RuralCustomers),
			USD(c.MonthlyPriceUSD),
			USD(c.AnnualRevenue),
			num(c.RegulatoryRisk),
			USD(c.RiskAdjustedRevenue),
		})
	}
	rows = append(rows, []string{
		"TOTAL", "", "", num(a.TotalBandwidthGbps * 1000), "", num(a.TotalCustomers), "", "",
		"", USD(a.TotalRevenue), "", USD(a.RiskAdjustedRevenue),
	})
	return rows
}

// sortedPercentileKeys orders "p5", "p50", "p99.9" numerically.
func sortedPercentileKeys(m map[string]float64) []string {
	type entry struct {
		key string
		p   float64
	}
	entries := make([]entry, 0, len(m))
	for k := range m {
		p, err := strconv.ParseFloat(strings.TrimPrefix(k, "p"), 64)
		if err != nil {
			p = math.Inf(1)
		}
		entries = append(entries, entry{k, p})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].p != entries[j].p {
			return entries[i].p < entries[j].p
		}
		return entries[i].key < entries[j].key
	})
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.key
	}
	return keys
}
