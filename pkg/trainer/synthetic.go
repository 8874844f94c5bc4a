package trainer

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/raterudder/gridcast/pkg/types"
)

// Synthetic generates hourly records for a small microgrid starting at start.
// Demand follows a daily curve with breakfast and evening peaks, drops on
// weekends, and rises with cooling load on hot hours.
func Synthetic(start time.Time, hours int, seed int64) []types.TrainingRecord {
	rng := rand.New(rand.NewSource(seed))
	records := make([]types.TrainingRecord, 0, hours)
	for i := 0; i < hours; i++ {
		t := start.Add(time.Duration(i) * time.Hour)
		hour := t.Hour()
		dayOfYear := float64(t.YearDay())

		// seasonal temperature with a daily swing
		temp := 15 - 10*math.Cos(2*math.Pi*(dayOfYear-15)/365) +
			5*math.Sin(2*math.Pi*float64(hour-9)/24) +
			rng.NormFloat64()
		humidity := math.Min(100, math.Max(10, 65-1.2*(temp-15)+rng.NormFloat64()*5))
		wind := math.Max(0, 4+rng.NormFloat64()*2)

		// bell curve around solar noon, scaled by a random cloudiness
		solar := 0.0
		if hour > 5 && hour < 20 {
			dist := float64(hour) - 13.0
			solar = 1000 * math.Exp(-(dist*dist)/12.0) * (0.4 + 0.6*rng.Float64())
		}

		demand := 40.0
		if hour >= 7 && hour < 9 {
			demand += 20 // breakfast
		} else if hour >= 18 && hour < 22 {
			demand += 35 // evening activities
		} else if hour < 6 {
			demand -= 15
		}
		if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
			demand *= 0.85
		}
		if temp > 22 {
			demand += 2.5 * (temp - 22)
		}
		demand -= solar * 0.01
		demand += rng.NormFloat64() * 2

		records = append(records, types.TrainingRecord{
			Timestamp:       t,
			Temperature:     round(temp, 2),
			Humidity:        round(humidity, 1),
			SolarIrradiance: round(solar, 1),
			WindSpeed:       round(wind, 2),
			EnergyDemand:    round(demand, 2),
		})
	}
	return records
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// WriteCSV writes records in the format LoadCSV reads.
func WriteCSV(w io.Writer, records []types.TrainingRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RequiredColumns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	format := func(v float64) string {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	for _, r := range records {
		row := []string{
			r.Timestamp.Format(time.RFC3339),
			format(r.Temperature),
			format(r.Humidity),
			format(r.SolarIrradiance),
			format(r.WindSpeed),
			format(r.EnergyDemand),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
