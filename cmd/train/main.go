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

	"github.com/raterudder/gridcast/pkg/log"
	"github.com/raterudder/gridcast/pkg/storage"
	"github.com/raterudder/gridcast/pkg/trainer"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to load .env", slog.Any("error", err))
		os.Exit(1)
	}

	s := storage.Configured()
	t := trainer.Configured()
	dataPath := lflag.String("training-data", "data/training.csv", "CSV file of hourly weather and energy demand")

	lflag.Configure()
	log.Setup()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, s, t, *dataPath); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "training failed", slog.String("path", *dataPath), slog.Any("error", err))
		s.Close()
		os.Exit(1)
	}
	if err := s.Close(); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", err)
	}
}

func run(ctx context.Context, s storage.Database, t *trainer.Trainer, path string) error {
	records, err := trainer.LoadFile(path)
	if err != nil {
		return err
	}
	log.Ctx(ctx).InfoContext(ctx, "loaded training data", slog.String("path", path), slog.Int("records", len(records)))

	bundle, err := t.Train(ctx, records)
	if err != nil {
		return err
	}
	if err := s.SaveBundle(ctx, bundle); err != nil {
		return err
	}

	log.Ctx(ctx).InfoContext(
		ctx,
		"saved model",
		slog.String("model", bundle.Info.Name),
		slog.Any("scores", bundle.Info.Scores),
		slog.Int("trainingRows", bundle.Info.TrainingRows),
		slog.Int("testRows", bundle.Info.TestRows),
	)
	return nil
}
