package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m, reg := NewForTesting()

	m.Forecasts.WithLabelValues(OutcomeSuccess).Inc()
	m.WeatherRequests.WithLabelValues(WeatherFallback).Add(2)
	m.ModelLoaded.Set(1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Forecasts.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.WeatherRequests.WithLabelValues(WeatherFallback)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModelLoaded))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["gridcast_forecasts_total"])
	assert.True(t, names["gridcast_weather_requests_total"])
	assert.True(t, names["gridcast_model_loaded"])

	// a second set on its own registry must not panic
	assert.NotPanics(t, func() { NewForTesting() })
}
