package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/levenlabs/go-lflag"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/raterudder/gridcast/pkg/forecast"
	"github.com/raterudder/gridcast/pkg/log"
	"github.com/raterudder/gridcast/pkg/metrics"
	"github.com/raterudder/gridcast/pkg/server"
	"github.com/raterudder/gridcast/pkg/storage"
	"github.com/raterudder/gridcast/pkg/weather"
)

func main() {
	// .env may set PORT, K_REVISION and the like before any flags are read
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to load .env", slog.Any("error", err))
		os.Exit(1)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	// init packages
	w := weather.Configured()
	s := storage.Configured()
	e := forecast.Configured(w, s, m)

	// init server
	srv := server.Configured(e, s, m, prometheus.DefaultGatherer)

	loadOnStart := lflag.Bool("load-on-start", true, "Load the trained model at startup instead of on the first request")

	// parse flags
	lflag.Configure()
	log.Setup()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// If initialization inside lflag.Do failed, we wouldn't be here (panic).
	defer func() {
		if err := s.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", err)
		}
	}()

	if !e.LiveWeather() {
		log.Ctx(ctx).WarnContext(ctx, "no weather API key configured, forecasts will use default weather")
	}

	if *loadOnStart {
		// a missing model is not fatal, the engine retries on each request
		if err := e.Load(ctx); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "model not loaded at startup", "error", err)
		}
	}

	// Run will block until context is canceled or error happens
	if err := srv.Run(ctx); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server failed", "error", err)
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "server exited cleanly")
}
