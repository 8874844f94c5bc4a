package trainer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/raterudder/gridcast/pkg/types"
)

// Column names required in a training CSV.
const (
	ColumnDatetime        = "datetime"
	ColumnTemperature     = "temperature"
	ColumnHumidity        = "humidity"
	ColumnSolarIrradiance = "solar_irradiance"
	ColumnWindSpeed       = "wind_speed"
	ColumnEnergyDemand    = "energy_demand"
)

// RequiredColumns lists every column LoadCSV needs.
var RequiredColumns = []string{
	ColumnDatetime,
	ColumnTemperature,
	ColumnHumidity,
	ColumnSolarIrradiance,
	ColumnWindSpeed,
	ColumnEnergyDemand,
}

var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// DataSchemaError means the training data does not have the shape training
// needs. It is fatal to the training run.
type DataSchemaError struct {
	Line   int
	Column string
	Err    error
}

func (e *DataSchemaError) Error() string {
	switch {
	case e.Line > 0 && e.Column != "":
		return fmt.Sprintf("training data line %d column %s: %v", e.Line, e.Column, e.Err)
	case e.Column != "":
		return fmt.Sprintf("training data column %s: %v", e.Column, e.Err)
	default:
		return fmt.Sprintf("training data: %v", e.Err)
	}
}

func (e *DataSchemaError) Unwrap() error {
	return e.Err
}

// LoadFile opens path and reads it with LoadCSV.
func LoadFile(path string) ([]types.TrainingRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open training data: %w", err)
	}
	defer f.Close()
	return LoadCSV(f)
}

// LoadCSV reads training records from a CSV with a header row. Extra columns
// are ignored. Datetimes without a zone are read as UTC.
func LoadCSV(r io.Reader) ([]types.TrainingRecord, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &DataSchemaError{Err: errors.New("file is empty")}
	}
	if err != nil {
		return nil, &DataSchemaError{Err: fmt.Errorf("failed to read header: %w", err)}
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	var missing []string
	for _, name := range RequiredColumns {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &DataSchemaError{Err: fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))}
	}

	var records []types.TrainingRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &DataSchemaError{Line: line, Err: err}
		}
		rec, err := parseRow(row, index, line)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, &DataSchemaError{Err: errors.New("no data rows")}
	}
	return records, nil
}

func parseRow(row []string, index map[string]int, line int) (types.TrainingRecord, error) {
	var rec types.TrainingRecord

	ts, err := parseDatetime(row[index[ColumnDatetime]])
	if err != nil {
		return rec, &DataSchemaError{Line: line, Column: ColumnDatetime, Err: err}
	}
	rec.Timestamp = ts

	floats := []struct {
		column string
		dst    *float64
	}{
		{ColumnTemperature, &rec.Temperature},
		{ColumnHumidity, &rec.Humidity},
		{ColumnSolarIrradiance, &rec.SolarIrradiance},
		{ColumnWindSpeed, &rec.WindSpeed},
		{ColumnEnergyDemand, &rec.EnergyDemand},
	}
	for _, f := range floats {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[index[f.column]]), 64)
		if err != nil {
			return rec, &DataSchemaError{Line: line, Column: f.column, Err: err}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return rec, &DataSchemaError{Line: line, Column: f.column, Err: fmt.Errorf("value %v is not finite", v)}
		}
		*f.dst = v
	}
	return rec, nil
}

func parseDatetime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime %q", s)
}
