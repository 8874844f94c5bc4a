// Package features turns a timestamp and a weather reading into the numeric
// feature vector the demand models are trained on. Training and inference both
// go through Build so the two can never disagree on the schema.
package features

import (
	"fmt"
	"time"

	"github.com/raterudder/gridcast/pkg/types"
)

// Feature names.
const (
	Hour            = "hour"
	DayOfWeek       = "day_of_week"
	Month           = "month"
	IsWeekend       = "is_weekend"
	Season          = "season"
	Temperature     = "temperature"
	Humidity        = "humidity"
	SolarIrradiance = "solar_irradiance"
	WindSpeed       = "wind_speed"
)

// Names is the canonical feature order used when training a new model. A
// persisted model records the order it was trained with and inference uses
// that recorded order instead.
var Names = []string{
	Hour,
	DayOfWeek,
	Month,
	IsWeekend,
	Season,
	Temperature,
	Humidity,
	SolarIrradiance,
	WindSpeed,
}

// Input holds the weather-derived part of a feature vector.
type Input struct {
	Temperature     float64
	Humidity        float64
	SolarIrradiance float64
	WindSpeed       float64
}

// FromRecord uses the measured irradiance of a historical record.
func FromRecord(r types.TrainingRecord) Input {
	return Input{
		Temperature:     r.Temperature,
		Humidity:        r.Humidity,
		SolarIrradiance: r.SolarIrradiance,
		WindSpeed:       r.WindSpeed,
	}
}

// FromWeather estimates irradiance from cloud cover.
func FromWeather(w types.WeatherSnapshot) Input {
	return Input{
		Temperature:     w.Temperature,
		Humidity:        w.Humidity,
		SolarIrradiance: EstimateIrradiance(w.CloudCover),
		WindSpeed:       w.WindSpeed,
	}
}

// EstimateIrradiance is a clear-sky proxy of 1000 W/m2 scaled down by cloud
// cover percentage. It is never negative.
func EstimateIrradiance(cloudCover float64) float64 {
	return max(0, 1000*(1-cloudCover/100))
}

// Weekday returns the ISO-ordered weekday index, 0=Monday through 6=Sunday.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// SeasonOf returns (month % 12) / 3 + 1, so December through February is 1,
// March through May is 2, and so on.
func SeasonOf(m time.Month) int {
	return (int(m)%12)/3 + 1
}

// Vector is a named feature vector.
type Vector map[string]float64

// Build derives the feature vector for the hour at t. Time fields are taken
// in t's location.
func Build(t time.Time, in Input) Vector {
	dow := Weekday(t)
	weekend := 0.0
	if dow == 5 || dow == 6 {
		weekend = 1
	}
	return Vector{
		Hour:            float64(t.Hour()),
		DayOfWeek:       float64(dow),
		Month:           float64(t.Month()),
		IsWeekend:       weekend,
		Season:          float64(SeasonOf(t.Month())),
		Temperature:     in.Temperature,
		Humidity:        in.Humidity,
		SolarIrradiance: in.SolarIrradiance,
		WindSpeed:       in.WindSpeed,
	}
}

// Ordered returns the values of v in the given order. Every name must be
// present in v.
func (v Vector) Ordered(names []string) ([]float64, error) {
	out := make([]float64, len(names))
	for i, name := range names {
		val, ok := v[name]
		if !ok {
			return nil, fmt.Errorf("unknown feature: %s", name)
		}
		out[i] = val
	}
	return out, nil
}

// Matrix builds the ordered feature row for each (timestamp, input) pair.
func Matrix(times []time.Time, inputs []Input, names []string) ([][]float64, error) {
	if len(times) != len(inputs) {
		return nil, fmt.Errorf("times and inputs length mismatch: %d != %d", len(times), len(inputs))
	}
	rows := make([][]float64, len(times))
	for i := range times {
		row, err := Build(times[i], inputs[i]).Ordered(names)
		if err != nil {
			return nil, err
		}
		rows[i] = row
	}
	return rows, nil
}
