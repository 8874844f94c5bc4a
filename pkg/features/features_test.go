package features

import (
	"testing"
	"time"

	"github.com/raterudder/gridcast/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	t.Run("Saturday", func(t *testing.T) {
		// 2024-06-15 is a Saturday
		ts := time.Date(2024, time.June, 15, 14, 0, 0, 0, time.UTC)
		v := Build(ts, Input{Temperature: 30, Humidity: 40, SolarIrradiance: 800, WindSpeed: 3})

		assert.Equal(t, 14.0, v[Hour])
		assert.Equal(t, 5.0, v[DayOfWeek])
		assert.Equal(t, 6.0, v[Month])
		assert.Equal(t, 1.0, v[IsWeekend])
		assert.Equal(t, 3.0, v[Season])
		assert.Equal(t, 30.0, v[Temperature])
		assert.Equal(t, 40.0, v[Humidity])
		assert.Equal(t, 800.0, v[SolarIrradiance])
		assert.Equal(t, 3.0, v[WindSpeed])
		assert.Len(t, v, len(Names))
	})

	t.Run("WeekendParity", func(t *testing.T) {
		start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC) // Monday
		for i := 0; i < 14*24; i++ {
			ts := start.Add(time.Duration(i) * time.Hour)
			v := Build(ts, Input{})
			dow := v[DayOfWeek]
			if dow == 5 || dow == 6 {
				assert.Equal(t, 1.0, v[IsWeekend], "ts=%s", ts)
			} else {
				assert.Equal(t, 0.0, v[IsWeekend], "ts=%s", ts)
			}
		}
	})

	t.Run("Monday", func(t *testing.T) {
		v := Build(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), Input{})
		assert.Equal(t, 0.0, v[DayOfWeek])
		assert.Equal(t, 0.0, v[IsWeekend])
	})

	t.Run("Sunday", func(t *testing.T) {
		v := Build(time.Date(2024, time.January, 7, 23, 0, 0, 0, time.UTC), Input{})
		assert.Equal(t, 6.0, v[DayOfWeek])
		assert.Equal(t, 1.0, v[IsWeekend])
		assert.Equal(t, 23.0, v[Hour])
	})
}

func TestSeasonOf(t *testing.T) {
	expected := map[time.Month]int{
		time.January:   1,
		time.February:  1,
		time.March:     2,
		time.April:     2,
		time.May:       2,
		time.June:      3,
		time.July:      3,
		time.August:    3,
		time.September: 4,
		time.October:   4,
		time.November:  4,
		time.December:  1,
	}
	for m, s := range expected {
		assert.Equal(t, s, SeasonOf(m), "month=%s", m)
	}
}

func TestEstimateIrradiance(t *testing.T) {
	assert.Equal(t, 1000.0, EstimateIrradiance(0))
	assert.Equal(t, 0.0, EstimateIrradiance(100))
	assert.Equal(t, 500.0, EstimateIrradiance(50))
	assert.Equal(t, 0.0, EstimateIrradiance(120))

	prev := EstimateIrradiance(0)
	for cc := 0.5; cc <= 100; cc += 0.5 {
		cur := EstimateIrradiance(cc)
		assert.LessOrEqual(t, cur, prev, "cloudCover=%v", cc)
		assert.GreaterOrEqual(t, cur, 0.0, "cloudCover=%v", cc)
		prev = cur
	}
}

func TestOrdered(t *testing.T) {
	v := Build(time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC), Input{Temperature: 12, Humidity: 70, SolarIrradiance: 300, WindSpeed: 6})

	t.Run("Canonical", func(t *testing.T) {
		row, err := v.Ordered(Names)
		require.NoError(t, err)
		assert.Equal(t, []float64{9, 0, 3, 0, 2, 12, 70, 300, 6}, row)
	})

	t.Run("Reordered", func(t *testing.T) {
		row, err := v.Ordered([]string{WindSpeed, Hour, Temperature})
		require.NoError(t, err)
		assert.Equal(t, []float64{6, 9, 12}, row)
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := v.Ordered([]string{Hour, "pressure"})
		assert.ErrorContains(t, err, "unknown feature: pressure")
	})
}

func TestTrainingInferenceParity(t *testing.T) {
	ts := time.Date(2024, time.August, 10, 18, 0, 0, 0, time.UTC)
	w := types.WeatherSnapshot{Temperature: 28, Humidity: 55, WindSpeed: 4, CloudCover: 20}
	record := types.TrainingRecord{
		Timestamp:       ts,
		Temperature:     w.Temperature,
		Humidity:        w.Humidity,
		SolarIrradiance: EstimateIrradiance(w.CloudCover),
		WindSpeed:       w.WindSpeed,
	}

	trainRows, err := Matrix([]time.Time{record.Timestamp}, []Input{FromRecord(record)}, Names)
	require.NoError(t, err)
	inferRow, err := Build(ts, FromWeather(w)).Ordered(Names)
	require.NoError(t, err)
	assert.Equal(t, trainRows[0], inferRow)
}

func TestMatrixLengthMismatch(t *testing.T) {
	_, err := Matrix([]time.Time{time.Now()}, nil, Names)
	assert.Error(t, err)
}
