// Package metrics holds the Prometheus collectors for the forecasting service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gridcast"

// Weather request outcomes.
const (
	WeatherLive     = "live"
	WeatherFallback = "fallback"
	WeatherSkipped  = "skipped"
)

// Forecast outcomes.
const (
	OutcomeSuccess       = "success"
	OutcomeModelNotFound = "model_not_found"
	OutcomeError         = "error"
)

// Metrics holds the counters, histograms and gauges for forecasting.
type Metrics struct {
	Forecasts        *prometheus.CounterVec // labels: outcome={success,model_not_found,error}
	WeatherRequests  *prometheus.CounterVec // labels: outcome={live,fallback,skipped}
	ForecastDuration prometheus.Histogram
	ModelLoaded      prometheus.Gauge
	HTTPRequests     *prometheus.CounterVec // labels: path, code
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Forecasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecasts_total",
			Help:      "Forecast requests by outcome.",
		}, []string{"outcome"}),
		WeatherRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_requests_total",
			Help:      "Weather lookups by outcome. skipped means no provider is configured.",
		}, []string{"outcome"}),
		ForecastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "forecast_duration_seconds",
			Help:      "Duration of a 24 hour forecast including the weather lookup.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		ModelLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_loaded",
			Help:      "1 when a trained model is loaded, 0 otherwise.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP API requests by route and status code.",
		}, []string{"path", "code"}),
	}
	reg.MustRegister(
		m.Forecasts,
		m.WeatherRequests,
		m.ForecastDuration,
		m.ModelLoaded,
		m.HTTPRequests,
	)
	return m
}

// NewForTesting creates Metrics on a fresh registry to avoid "already
// registered" panics when called from multiple tests.
func NewForTesting() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return New(reg), reg
}
