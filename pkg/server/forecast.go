package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/raterudder/gridcast/pkg/forecast"
	"github.com/raterudder/gridcast/pkg/log"
	"github.com/raterudder/gridcast/pkg/model"
)

func validateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return fmt.Errorf("latitude must be between -90 and 90")
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return fmt.Errorf("longitude must be between -180 and 180")
	}
	return nil
}

func (s *Server) parseForecastRequest(q url.Values) (forecast.Request, error) {
	req := forecast.Request{
		Latitude:  s.defaultLat,
		Longitude: s.defaultLon,
	}
	if v := q.Get("lat"); v != "" {
		lat, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return forecast.Request{}, fmt.Errorf("invalid lat: %w", err)
		}
		req.Latitude = lat
	}
	if v := q.Get("lon"); v != "" {
		lon, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return forecast.Request{}, fmt.Errorf("invalid lon: %w", err)
		}
		req.Longitude = lon
	}
	if err := validateCoordinates(req.Latitude, req.Longitude); err != nil {
		return forecast.Request{}, err
	}
	if v := q.Get("start"); v != "" {
		start, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return forecast.Request{}, fmt.Errorf("invalid start time: %w", err)
		}
		req.Start = &start
	}
	return req, nil
}

// writeModelError maps model errors to a status code.
func writeModelError(ctx context.Context, w http.ResponseWriter, err error) {
	var serr *model.SerializationError
	switch {
	case errors.Is(err, model.ErrModelNotFound):
		log.Ctx(ctx).WarnContext(ctx, "no trained model", slog.Any("error", err))
		writeJSONError(w, "model not found, train the model first", http.StatusServiceUnavailable)
	case errors.As(err, &serr):
		log.Ctx(ctx).ErrorContext(ctx, "invalid model artifact", slog.Any("error", err))
		writeJSONError(w, "model artifact is invalid", http.StatusInternalServerError)
	default:
		log.Ctx(ctx).ErrorContext(ctx, "failed to use model", slog.Any("error", err))
		writeJSONError(w, "failed to generate forecast", http.StatusInternalServerError)
	}
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := s.parseForecastRequest(r.URL.Query())
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	f, err := s.forecaster.Predict(ctx, req)
	if err != nil {
		writeModelError(ctx, w, err)
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=300")
	writeJSON(w, f)
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	info, err := s.forecaster.Info(ctx)
	if err != nil {
		writeModelError(ctx, w, err)
		return
	}
	writeJSON(w, info)
}
