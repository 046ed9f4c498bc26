package country

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/inference-sim/tam-sim/sim"
)

// CSV column names. Columns not listed here are ignored so that wider World
// Bank style exports load unchanged.
const (
	colCode       = "country_code"
	colName       = "country_name"
	colRegion     = "region"
	colIncome     = "income_group"
	colPopulation = "population_total"
	colRuralPop   = "population_rural"
	colLandArea   = "land_area_km2"
	colGDP        = "gdp_per_capita_usd"
	colGDPMonthly = "gdp_per_capita_monthly"
	colSpeed      = "avg_broadband_speed_mbps"
	colRural      = "rural_fraction"
	colRegulatory = "regulatory_quality_score"
)

var requiredColumns = []string{colCode, colPopulation, colLandArea, colGDP}

// Load reads and validates a country feed. The format follows the file
// extension: .csv, .yaml, .yml or .json. An empty path returns the built-in
// sample markets.
func Load(path string) ([]Record, error) {
	if path == "" {
		logrus.Warn("No country data file given, using built-in sample data")
		return Sample(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading country data: %w", err)
	}

	var records []Record
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		records, err = ParseCSV(bytes.NewReader(data))
	case ".yaml", ".yml", ".json":
		records, err = ParseYAML(data)
	default:
		return nil, fmt.Errorf("unsupported country data format %q (want .csv, .yaml, .yml or .json): %w", ext, sim.ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	if err := ValidateAll(records); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	logrus.Infof("Loaded %d countries from %s", len(records), path)
	return records, nil
}

// ParseYAML decodes a list of records. JSON input is accepted since JSON is a
// YAML subset. Unknown keys are rejected.
func ParseYAML(data []byte) ([]Record, error) {
	var records []Record
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&records); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("country data is empty: %w", sim.ErrInvalidInput)
		}
		return nil, fmt.Errorf("parsing country data: %v: %w", err, sim.ErrInvalidInput)
	}
	return records, nil
}

// ParseCSV decodes a header-keyed CSV feed. Rows are numbered from 1 after the
// header in error messages.
func ParseCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("country CSV is empty: %w", sim.ErrInvalidInput)
		}
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("country CSV missing required column %q: %w", c, sim.ErrInvalidInput)
		}
	}

	var records []Record
	for row := 1; ; row++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row %d: %w", row, err)
		}
		rec, err := parseCSVRecord(fields, cols)
		if err != nil {
			return nil, fmt.Errorf("CSV row %d: %w", row, err)
		}
		records = append(records, *rec)
	}
	return records, nil
}

type csvRow struct {
	fields []string
	cols   map[string]int
	err    error
}

func (c *csvRow) str(col string) string {
	i, ok := c.cols[col]
	if !ok || i >= len(c.fields) {
		return ""
	}
	return strings.TrimSpace(c.fields[i])
}

// float parses an optional numeric column; ok is false when the cell is empty.
func (c *csvRow) float(col string) (v float64, ok bool) {
	s := c.str(col)
	if s == "" || c.err != nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, "_", ""), 64)
	if err != nil {
		c.err = fmt.Errorf("column %s: invalid number %q: %w", col, s, sim.ErrInvalidInput)
		return 0, false
	}
	return v, true
}

func parseCSVRecord(fields []string, cols map[string]int) (*Record, error) {
	row := &csvRow{fields: fields, cols: cols}
	rec := &Record{
		Code:        strings.ToUpper(row.str(colCode)),
		Name:        row.str(colName),
		Region:      row.str(colRegion),
		IncomeGroup: row.str(colIncome),
	}
	pop, _ := row.float(colPopulation)
	rec.Population = int64(pop)
	rec.LandAreaKm2, _ = row.float(colLandArea)
	rec.GDPPerCapitaUSD, _ = row.float(colGDP)
	rec.GDPPerCapitaMonthlyUSD, _ = row.float(colGDPMonthly)
	if v, ok := row.float(colSpeed); ok {
		rec.AvgBroadbandSpeedMbps = &v
	}
	if v, ok := row.float(colRegulatory); ok {
		rec.RegulatoryQualityScore = &v
	}
	if v, ok := row.float(colRural); ok {
		rec.RuralFraction = v
	} else if rural, ok := row.float(colRuralPop); ok && pop > 0 {
		rec.RuralFraction = rural / pop
	}
	if row.err != nil {
		return nil, row.err
	}
	return rec, nil
}
