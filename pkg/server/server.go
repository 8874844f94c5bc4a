package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/levenlabs/go-lflag"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/raterudder/gridcast/pkg/forecast"
	"github.com/raterudder/gridcast/pkg/log"
	"github.com/raterudder/gridcast/pkg/metrics"
	"github.com/raterudder/gridcast/pkg/storage"
	"github.com/raterudder/gridcast/pkg/types"
)

// Forecaster produces forecasts from the current model.
type Forecaster interface {
	Predict(ctx context.Context, req forecast.Request) (types.Forecast, error)
	Info(ctx context.Context) (types.ModelInfo, error)
}

// Server handles the HTTP API of the forecasting service.
type Server struct {
	forecaster Forecaster
	history    storage.History
	metrics    *metrics.Metrics
	gatherer   prometheus.Gatherer

	listenAddr  string
	httpServer  *http.Server
	corsOrigins []string
	defaultLat  float64
	defaultLon  float64
	serverName  string
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration.
func Configured(f Forecaster, h storage.History, m *metrics.Metrics, g prometheus.Gatherer) *Server {
	srv := &Server{
		forecaster: f,
		history:    h,
		metrics:    m,
		gatherer:   g,
		serverName: "gridcast",
	}
	revision := os.Getenv("K_REVISION")
	if revision != "" {
		srv.serverName = revision
	}

	// get the port from PORT when running in cloud run
	port := os.Getenv("PORT")
	if port == "" {
		// otherwise default to 8080
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	corsOrigins := lflag.String("cors-origins", "*", "comma-delimited list of origins allowed to call the API")
	defaultLat := 0.0
	lflag.JSON(&defaultLat, "default-latitude", defaultLat, "Latitude used when a forecast request has none")
	defaultLon := 0.0
	lflag.JSON(&defaultLon, "default-longitude", defaultLon, "Longitude used when a forecast request has none")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		srv.corsOrigins = nil
		for _, origin := range strings.Split(*corsOrigins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				srv.corsOrigins = append(srv.corsOrigins, origin)
			}
		}
		if err := validateCoordinates(defaultLat, defaultLon); err != nil {
			log.Ctx(context.Background()).Error("invalid default coordinates", slog.Any("error", err))
			os.Exit(1)
		}
		srv.defaultLat = defaultLat
		srv.defaultLon = defaultLon
	})

	return srv
}

func (s *Server) setupHandler() http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /api/forecast", s.handleForecast)
	apiMux.HandleFunc("GET /api/model", s.handleModel)
	apiMux.HandleFunc("GET /api/history/forecasts", s.handleHistoryForecasts)

	mux := http.NewServeMux()
	mux.Handle("/api/", s.corsMiddleware(apiMux))
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return s.revisionMiddleware(gziphandler.GzipHandler(s.securityHeadersMiddleware(s.loggerMiddleware(s.metricsMiddleware(mux)))))
}

// Run starts the HTTP server and blocks until the context is canceled or an error occurs.
// It also handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	// use a channel to capturing server errors
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// Context canceled, shut down gracefully
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) revisionMiddleware(next http.Handler) http.Handler {
	if s.serverName == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}
