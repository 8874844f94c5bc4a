// Package forecast turns a trained model bundle and the current weather into
// a 24 hour energy demand forecast.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/levenlabs/go-lflag"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/raterudder/gridcast/pkg/features"
	"github.com/raterudder/gridcast/pkg/log"
	"github.com/raterudder/gridcast/pkg/metrics"
	"github.com/raterudder/gridcast/pkg/model"
	"github.com/raterudder/gridcast/pkg/storage"
	"github.com/raterudder/gridcast/pkg/types"
	"github.com/raterudder/gridcast/pkg/weather"
)

// Hours is the number of hourly points in a forecast.
const Hours = 24

// BundleLoader loads the persisted model bundle.
type BundleLoader interface {
	LoadBundle(ctx context.Context) (*model.Bundle, error)
}

// Config holds the dependencies of an Engine.
type Config struct {
	Store BundleLoader
	// Weather is optional, without it every forecast uses default weather.
	Weather weather.Provider
	// History is optional, without it forecasts are not recorded.
	History storage.History
	Metrics *metrics.Metrics
	Clock   clockwork.Clock
}

// Request describes one forecast. A nil Start means now.
type Request struct {
	Start     *time.Time
	Latitude  float64
	Longitude float64
}

// Engine serves forecasts from the current bundle. The bundle is swapped in
// whole and never mutated, so Predict reads it without locking.
type Engine struct {
	store   BundleLoader
	weather weather.Provider
	history storage.History
	metrics *metrics.Metrics
	clock   clockwork.Clock

	current atomic.Pointer[model.Bundle]
	loadMu  sync.Mutex
}

// New returns an unloaded Engine.
func New(cfg Config) *Engine {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New(prometheus.NewRegistry())
	}
	return &Engine{
		store:   cfg.Store,
		weather: cfg.Weather,
		history: cfg.History,
		metrics: cfg.Metrics,
		clock:   cfg.Clock,
	}
}

// Configured wires an Engine from the configured weather provider and
// storage. The weather provider is only used when it has an API key.
func Configured(w *weather.OpenWeatherMap, s storage.Database, m *metrics.Metrics) *Engine {
	e := &Engine{
		store:   s,
		history: s,
		metrics: m,
		clock:   clockwork.NewRealClock(),
	}
	lflag.Do(func() {
		if !w.Enabled() {
			return
		}
		if err := w.Validate(); err != nil {
			panic(fmt.Sprintf("weather validation failed: %v", err))
		}
		e.weather = w
	})
	return e
}

// Load reads the bundle from storage and makes it current. On failure the
// previous state is kept and the error is returned.
func (e *Engine) Load(ctx context.Context) error {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()
	return e.loadLocked(ctx)
}

func (e *Engine) loadLocked(ctx context.Context) error {
	b, err := e.store.LoadBundle(ctx)
	if err != nil {
		if e.current.Load() == nil {
			e.metrics.ModelLoaded.Set(0)
		}
		return fmt.Errorf("failed to load model: %w", err)
	}
	e.current.Store(b)
	e.metrics.ModelLoaded.Set(1)
	log.Ctx(ctx).InfoContext(
		ctx,
		"loaded model",
		slog.String("model", b.Info.Name),
		slog.Time("trainedAt", b.Info.TrainedAt),
		slog.Any("features", b.Features),
	)
	return nil
}

// LiveWeather reports whether forecasts fetch live weather. Without a
// provider every forecast uses types.DefaultWeather.
func (e *Engine) LiveWeather() bool {
	return e.weather != nil
}

// Loaded reports whether a bundle is current.
func (e *Engine) Loaded() bool {
	return e.current.Load() != nil
}

// bundle returns the current bundle, loading it first if needed.
func (e *Engine) bundle(ctx context.Context) (*model.Bundle, error) {
	if b := e.current.Load(); b != nil {
		return b, nil
	}
	e.loadMu.Lock()
	defer e.loadMu.Unlock()
	// another caller may have loaded while we waited
	if b := e.current.Load(); b != nil {
		return b, nil
	}
	if err := e.loadLocked(ctx); err != nil {
		return nil, err
	}
	return e.current.Load(), nil
}

// Info returns the metadata of the current bundle, loading it if needed.
func (e *Engine) Info(ctx context.Context) (types.ModelInfo, error) {
	b, err := e.bundle(ctx)
	if err != nil {
		return types.ModelInfo{}, err
	}
	return b.Info, nil
}

// currentWeather never fails. Provider errors are logged and replaced by
// types.DefaultWeather.
func (e *Engine) currentWeather(ctx context.Context, lat, lon float64) (types.WeatherSnapshot, types.WeatherSource) {
	if e.weather == nil {
		e.metrics.WeatherRequests.WithLabelValues(metrics.WeatherSkipped).Inc()
		return types.DefaultWeather, types.WeatherSourceDefault
	}
	w, err := e.weather.GetCurrentWeather(ctx, lat, lon)
	if err != nil {
		e.metrics.WeatherRequests.WithLabelValues(metrics.WeatherFallback).Inc()
		log.Ctx(ctx).WarnContext(
			ctx,
			"failed to get current weather, using defaults",
			slog.Float64("lat", lat),
			slog.Float64("lon", lon),
			slog.Any("error", err),
		)
		return types.DefaultWeather, types.WeatherSourceDefault
	}
	e.metrics.WeatherRequests.WithLabelValues(metrics.WeatherLive).Inc()
	return w, types.WeatherSourceLive
}

// Predict forecasts demand for the 24 hours starting at req.Start. The
// weather is fetched once and used for every hour.
func (e *Engine) Predict(ctx context.Context, req Request) (types.Forecast, error) {
	began := e.clock.Now()
	f, err := e.predict(ctx, req)
	e.metrics.ForecastDuration.Observe(e.clock.Since(began).Seconds())
	switch {
	case err == nil:
		e.metrics.Forecasts.WithLabelValues(metrics.OutcomeSuccess).Inc()
	case errors.Is(err, model.ErrModelNotFound):
		e.metrics.Forecasts.WithLabelValues(metrics.OutcomeModelNotFound).Inc()
	default:
		e.metrics.Forecasts.WithLabelValues(metrics.OutcomeError).Inc()
	}
	return f, err
}

func (e *Engine) predict(ctx context.Context, req Request) (types.Forecast, error) {
	b, err := e.bundle(ctx)
	if err != nil {
		return types.Forecast{}, err
	}

	start := e.clock.Now()
	if req.Start != nil {
		start = *req.Start
	}

	snapshot, source := e.currentWeather(ctx, req.Latitude, req.Longitude)
	in := features.FromWeather(snapshot)

	times := make([]time.Time, Hours)
	inputs := make([]features.Input, Hours)
	for i := range times {
		times[i] = start.Add(time.Duration(i) * time.Hour)
		inputs[i] = in
	}
	X, err := features.Matrix(times, inputs, b.Features)
	if err != nil {
		return types.Forecast{}, &model.SerializationError{Err: fmt.Errorf("model features are incompatible: %w", err)}
	}
	preds, err := b.Predict(X)
	if err != nil {
		return types.Forecast{}, &model.SerializationError{Err: fmt.Errorf("failed to predict: %w", err)}
	}

	weatherUsed := types.NewForecastWeather(snapshot, in.SolarIrradiance)
	points := make([]types.ForecastPoint, Hours)
	for i := range points {
		points[i] = types.ForecastPoint{
			Timestamp:       times[i],
			PredictedDemand: preds[i],
			Weather:         weatherUsed,
		}
	}
	f := types.Forecast{
		Points:        points,
		WeatherSource: source,
		Model:         b.Info.Name,
	}
	e.record(ctx, req, f)
	return f, nil
}

// record stores the forecast in history. Failures are only logged.
func (e *Engine) record(ctx context.Context, req Request, f types.Forecast) {
	if e.history == nil {
		return
	}
	run := types.ForecastRun{
		ID:        uuid.NewString(),
		CreatedAt: e.clock.Now().UTC(),
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Forecast:  f,
	}
	if err := e.history.InsertForecast(ctx, run); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to record forecast", slog.String("id", run.ID), slog.Any("error", err))
	}
}
