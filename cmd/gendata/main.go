package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/raterudder/gridcast/pkg/log"
	"github.com/raterudder/gridcast/pkg/trainer"
	"github.com/raterudder/gridcast/pkg/types"
)

func main() {
	output := lflag.String("output", "data/training.csv", "Where to write the generated CSV")
	startStr := lflag.String("start", "", "RFC3339 time of the first row, defaults to the given hours before today")
	hours := 24 * 365
	lflag.JSON(&hours, "hours", hours, "Number of hourly rows to generate")
	seed := time.Now().UnixNano()
	lflag.JSON(&seed, "seed", seed, "Random seed")

	lflag.Configure()
	log.Setup()

	ctx := context.Background()

	start := time.Now().UTC().Truncate(24 * time.Hour).Add(-time.Duration(hours) * time.Hour)
	if *startStr != "" {
		var err error
		start, err = time.Parse(time.RFC3339, *startStr)
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "invalid start", slog.Any("error", err))
			os.Exit(1)
		}
	}

	if err := write(*output, trainer.Synthetic(start, hours, seed)); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to write training data", slog.String("path", *output), slog.Any("error", err))
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "wrote training data", slog.String("path", *output), slog.Int("hours", hours), slog.Time("start", start))
}

func write(path string, records []types.TrainingRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := trainer.WriteCSV(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
