package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/inference-sim/tam-sim/sim"
	"github.com/inference-sim/tam-sim/sim/dist"
	"github.com/inference-sim/tam-sim/sim/internal/testutil"
	"github.com/inference-sim/tam-sim/sim/montecarlo"
	"github.com/inference-sim/tam-sim/sim/tam"
)

func testSummary(t *testing.T) *montecarlo.Summary {
	t.Helper()
	results := make([]montecarlo.TrialResult, 20)
	for i := range results {
		v := 1e6 * float64(i+1)
		results[i] = montecarlo.TrialResult{
			Index:           i,
			Sample:          dist.TrialSample{"satellites_total": float64(10000 + i)},
			GlobalTAM:       v,
			RiskAdjustedTAM: 0.8 * v,
			GlobalCustomers: float64(1000 * (i + 1)),
			CountryTAM:      map[string]float64{"AAA": 0.9 * v, "BBB": 0.1 * v},
		}
	}
	s, err := montecarlo.Aggregate(results, montecarlo.AggregateOptions{
		ConfidenceLevels: montecarlo.DefaultConfidenceLevels,
		Percentiles:      montecarlo.DefaultPercentiles,
	})
	require.NoError(t, err)
	s.Trials = 20
	s.Seed = 42
	s.Workers = 2
	return s
}

func testAnalysis(t *testing.T) *tam.Analysis {
	t.Helper()
	a := tam.Assumptions{
		SatellitesTotal:             12000,
		BandwidthPerSatelliteMbps:   17,
		OversubscriptionRatio:       20,
		MinBandwidthPerUserMbps:     20,
		GDPFractionWillingnessToPay: 0.02,
	}
	an, err := tam.DefaultModel().Analyze(a, testutil.TwoMarkets())
	require.NoError(t, err)
	return an
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name, format, path string
		want               Format
	}{
		{"explicit json", "json", "out.yaml", FormatJSON},
		{"explicit yaml upper", "YAML", "", FormatYAML},
		{"yml alias", "yml", "", FormatYAML},
		{"csv", "csv", "", FormatCSV},
		{"inferred from extension", "", "results/run.csv", FormatCSV},
		{"inferred yml", "", "run.yml", FormatYAML},
		{"no extension defaults to json", "", "results/run", FormatJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.format, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseFormat("xml", "")
	assert.ErrorIs(t, err, sim.ErrInvalidConfiguration)
	_, err = ParseFormat("", "run.parquet")
	assert.ErrorIs(t, err, sim.ErrInvalidConfiguration)
}

func TestWriteSummary_JSONRoundTripsKeyFields(t *testing.T) {
	// GIVEN a summary and an output path in a directory that does not exist yet
	s := testSummary(t)
	path := filepath.Join(t.TempDir(), "nested", "dir", "summary.json")

	// WHEN writing JSON
	require.NoError(t, WriteSummary(path, FormatJSON, s))

	// THEN the parent directories are created and the document carries the stats
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, 20.0, doc["completed_trials"])
	global := doc["global_tam"].(map[string]any)
	assert.InDelta(t, s.GlobalTAM.Mean, global["mean"], 1e-6)
	assert.Len(t, doc["risk"], len(montecarlo.DefaultConfidenceLevels))
}

func TestWriteSummary_YAML(t *testing.T) {
	s := testSummary(t)
	path := filepath.Join(t.TempDir(), "summary.yaml")
	require.NoError(t, WriteSummary(path, FormatYAML, s))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got montecarlo.Summary
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, s.CompletedTrials, got.CompletedTrials)
	assert.Equal(t, s.GlobalTAM.Percentiles, got.GlobalTAM.Percentiles)
	assert.Equal(t, s.Countries[0].Code, got.Countries[0].Code)
}

func TestWriteSummary_CSVRowsUseRoundedUSD(t *testing.T) {
	// GIVEN a summary written as CSV
	s := testSummary(t)
	path := filepath.Join(t.TempDir(), "summary.csv")
	require.NoError(t, WriteSummary(path, FormatCSV, s))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	// THEN the header comes first and every row has four columns
	require.NotEmpty(t, rows)
	assert.Equal(t, summaryColumns, rows[0])
	index := make(map[string]string)
	for _, r := range rows[1:] {
		require.Len(t, r, 4)
		index[r[0]+"/"+r[1]+"/"+r[2]] = r[3]
	}

	// AND USD values carry exactly two decimals
	assert.Equal(t, "10500000.00", index["global_tam_usd//mean"])
	assert.Equal(t, "20", index["run//completed_trials"])
	assert.Contains(t, index, "risk/0.95/value_at_risk_usd")
	assert.Contains(t, index, "country_tam_usd/AAA/p50")
	assert.Contains(t, index, "scenario/best/satellites_total")
	assert.Equal(t, "satellites_total", rows[len(rows)-1][2])
}

func TestWriteAnalysis_CSV(t *testing.T) {
	an := testAnalysis(t)
	path := filepath.Join(t.TempDir(), "analysis.csv")
	require.NoError(t, WriteAnalysis(path, FormatCSV, an))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)

	// header + one row per country + TOTAL
	require.Len(t, rows, 1+len(an.Countries)+1)
	assert.Equal(t, analysisColumns, rows[0])
	assert.Equal(t, "AAA", rows[1][0])
	total := rows[len(rows)-1]
	assert.Equal(t, "TOTAL", total[0])
	assert.Equal(t, USD(an.TotalRevenue), total[9])
	for _, r := range rows[1:] {
		assert.Len(t, r, len(analysisColumns))
	}
}

func TestWriteAnalysis_JSON(t *testing.T) {
	an := testAnalysis(t)
	path := filepath.Join(t.TempDir(), "analysis.json")
	require.NoError(t, WriteAnalysis(path, FormatJSON, an))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got tam.Analysis
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, an.TotalRevenue, got.TotalRevenue)
	assert.Equal(t, an.Assumptions, got.Assumptions)
}

func TestWrite_Errors(t *testing.T) {
	dir := t.TempDir()
	assert.ErrorIs(t, WriteSummary(filepath.Join(dir, "x"), Format("xml"), testSummary(t)), sim.ErrInvalidConfiguration)
	assert.ErrorIs(t, WriteSummary("", FormatJSON, testSummary(t)), sim.ErrInvalidConfiguration)
	assert.ErrorIs(t, WriteSummary(filepath.Join(dir, "y"), FormatJSON, nil), sim.ErrEmptyResults)
	assert.ErrorIs(t, WriteAnalysis(filepath.Join(dir, "z"), FormatJSON, nil), sim.ErrEmptyResults)
}

func TestUSDAndDollars(t *testing.T) {
	assert.Equal(t, "26433539.99", USD(26433539.988489125))
	assert.Equal(t, "0.00", USD(0))
	assert.Equal(t, "-1.50", USD(-1.5))

	assert.Equal(t, "$26,433,540", Dollars(26433539.988489125))
	assert.Equal(t, "$999", Dollars(999))
	assert.Equal(t, "$1,000", Dollars(999.5))
	assert.Equal(t, "-$1,234", Dollars(-1234))
	assert.Equal(t, "$0", Dollars(0))
}

func TestPrintAnalysis(t *testing.T) {
	an := testAnalysis(t)
	var buf bytes.Buffer
	PrintAnalysis(&buf, an)
	out := buf.String()

	assert.Contains(t, out, "=== TAM Analysis ===")
	assert.Contains(t, out, Dollars(an.TotalRevenue))
	// Rows follow revenue order.
	assert.Less(t, strings.Index(out, "AAA"), strings.Index(out, "BBB"))
}

func TestPrintTopMarkets(t *testing.T) {
	an := testAnalysis(t)
	rows, err := tam.TopMarkets(an.Countries, 1, tam.MetricCustomers)
	require.NoError(t, err)

	var buf bytes.Buffer
	PrintTopMarkets(&buf, tam.MetricCustomers, rows)
	out := buf.String()
	assert.Contains(t, out, "Top 1 Markets by CUSTOMERS")
	assert.Contains(t, out, rows[0].Code)
	assert.NotContains(t, out, "$")
}

func TestPrintSummary(t *testing.T) {
	s := testSummary(t)
	s.Partial = true
	s.StopReason = montecarlo.StopCancelled

	var buf bytes.Buffer
	PrintSummary(&buf, s)
	out := buf.String()

	assert.Contains(t, out, "Trials Completed    : 20/20 (stopped: cancelled)")
	assert.Contains(t, out, "Mean    : $10,500,000")
	assert.Contains(t, out, "Probability of Loss : 50.0%")
	assert.Contains(t, out, "satellites_total")
	assert.Contains(t, out, "Worst  : $1,000,000 (trial 0)")
}
