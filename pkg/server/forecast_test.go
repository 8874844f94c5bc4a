package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/raterudder/gridcast/pkg/forecast"
	"github.com/raterudder/gridcast/pkg/model"
	"github.com/raterudder/gridcast/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testForecast(start time.Time) types.Forecast {
	points := make([]types.ForecastPoint, forecast.Hours)
	for i := range points {
		points[i] = types.ForecastPoint{
			Timestamp:       start.Add(time.Duration(i) * time.Hour),
			PredictedDemand: 100 + float64(i),
			Weather:         types.NewForecastWeather(types.DefaultWeather, 500),
		}
	}
	return types.Forecast{
		Points:        points,
		WeatherSource: types.WeatherSourceDefault,
		Model:         "random_forest",
	}
}

func TestHandleForecast(t *testing.T) {
	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	t.Run("Returns 24 Points", func(t *testing.T) {
		mockF := &mockForecaster{}
		mockF.On("Predict", mock.Anything, mock.MatchedBy(func(req forecast.Request) bool {
			return req.Latitude == 41.88 && req.Longitude == -87.63 && req.Start != nil && req.Start.Equal(start)
		})).Return(testForecast(start), nil)

		srv := &Server{forecaster: mockF}
		req := httptest.NewRequest("GET", "/api/forecast?lat=41.88&lon=-87.63&start=2024-05-01T08:00:00Z", nil)
		w := httptest.NewRecorder()
		srv.handleForecast(w, req)

		resp := w.Result()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		assert.Equal(t, "private, max-age=300", resp.Header.Get("Cache-Control"))

		var body struct {
			Forecast []struct {
				Timestamp       time.Time `json:"datetime"`
				PredictedDemand float64   `json:"predicted_demand"`
				Weather         struct {
					Temperature     float64 `json:"temperature"`
					SolarIrradiance float64 `json:"solar_irradiance"`
				} `json:"weather"`
			} `json:"forecast"`
			WeatherSource string `json:"weatherSource"`
			Model         string `json:"model"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Len(t, body.Forecast, 24)
		assert.True(t, body.Forecast[0].Timestamp.Equal(start))
		assert.Equal(t, 123.0, body.Forecast[23].PredictedDemand)
		assert.Equal(t, 25.0, body.Forecast[0].Weather.Temperature)
		assert.Equal(t, 500.0, body.Forecast[0].Weather.SolarIrradiance)
		assert.Equal(t, "default", body.WeatherSource)
		assert.Equal(t, "random_forest", body.Model)
		mockF.AssertExpectations(t)
	})

	t.Run("Dashboard Keys", func(t *testing.T) {
		mockF := &mockForecaster{}
		mockF.On("Predict", mock.Anything, mock.Anything).Return(testForecast(start), nil)

		srv := &Server{forecaster: mockF}
		w := httptest.NewRecorder()
		srv.handleForecast(w, httptest.NewRequest("GET", "/api/forecast", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var raw struct {
			Forecast []map[string]json.RawMessage `json:"forecast"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
		require.Len(t, raw.Forecast, 24)
		point := raw.Forecast[0]
		assert.ElementsMatch(t, []string{"datetime", "predicted_demand", "weather"}, keys(point))

		var weather map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(point["weather"], &weather))
		assert.ElementsMatch(t, []string{"temperature", "humidity", "wind_speed", "solar_irradiance"}, keys(weather))
		assert.JSONEq(t, `"2024-05-01T08:00:00Z"`, string(point["datetime"]))
		assert.JSONEq(t, `100`, string(point["predicted_demand"]))
	})

	t.Run("Default Coordinates", func(t *testing.T) {
		mockF := &mockForecaster{}
		mockF.On("Predict", mock.Anything, forecast.Request{Latitude: 10, Longitude: 20}).Return(testForecast(start), nil)

		srv := &Server{forecaster: mockF, defaultLat: 10, defaultLon: 20}
		req := httptest.NewRequest("GET", "/api/forecast", nil)
		w := httptest.NewRecorder()
		srv.handleForecast(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockF.AssertExpectations(t)
	})

	for _, query := range []string{
		"lat=abc",
		"lon=north",
		"lat=91",
		"lon=-181",
		"lat=NaN",
		"start=yesterday",
		"start=2024-05-01",
	} {
		t.Run("Bad Request "+query, func(t *testing.T) {
			mockF := &mockForecaster{}
			srv := &Server{forecaster: mockF}
			req := httptest.NewRequest("GET", "/api/forecast?"+query, nil)
			w := httptest.NewRecorder()
			srv.handleForecast(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
			mockF.AssertNotCalled(t, "Predict", mock.Anything, mock.Anything)
		})
	}

	t.Run("Model Not Found", func(t *testing.T) {
		mockF := &mockForecaster{}
		mockF.On("Predict", mock.Anything, mock.Anything).
			Return(types.Forecast{}, fmt.Errorf("failed to load model: %w", model.ErrModelNotFound))

		srv := &Server{forecaster: mockF}
		req := httptest.NewRequest("GET", "/api/forecast", nil)
		w := httptest.NewRecorder()
		srv.handleForecast(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		var body struct {
			Error string `json:"error"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "model not found, train the model first", body.Error)
	})

	t.Run("Serialization Error", func(t *testing.T) {
		mockF := &mockForecaster{}
		mockF.On("Predict", mock.Anything, mock.Anything).
			Return(types.Forecast{}, &model.SerializationError{Err: errors.New("bad gzip")})

		srv := &Server{forecaster: mockF}
		req := httptest.NewRequest("GET", "/api/forecast", nil)
		w := httptest.NewRecorder()
		srv.handleForecast(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "model artifact is invalid")
	})
}

func TestHandleModel(t *testing.T) {
	t.Run("Loaded", func(t *testing.T) {
		info := types.ModelInfo{
			Name:         "gradient_boosting",
			Features:     []string{"hour", "temperature"},
			Scores:       []types.CandidateScore{{Name: "random_forest", R2: 0.8}, {Name: "gradient_boosting", R2: 0.9}},
			TrainedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			TrainingRows: 80,
			TestRows:     20,
		}
		mockF := &mockForecaster{}
		mockF.On("Info", mock.Anything).Return(info, nil)

		srv := &Server{forecaster: mockF}
		w := httptest.NewRecorder()
		srv.handleModel(w, httptest.NewRequest("GET", "/api/model", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var got types.ModelInfo
		require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		assert.Equal(t, info, got)
	})

	t.Run("Not Trained", func(t *testing.T) {
		mockF := &mockForecaster{}
		mockF.On("Info", mock.Anything).Return(types.ModelInfo{}, model.ErrModelNotFound)

		srv := &Server{forecaster: mockF}
		w := httptest.NewRecorder()
		srv.handleModel(w, httptest.NewRequest("GET", "/api/model", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func keys(m map[string]json.RawMessage) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
