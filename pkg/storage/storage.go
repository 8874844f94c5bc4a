package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/gridcast/pkg/model"
	"github.com/raterudder/gridcast/pkg/types"
)

// Database persists trained model bundles and the history of served
// forecasts.
type Database interface {
	// SaveBundle atomically replaces the current model bundle.
	SaveBundle(ctx context.Context, bundle *model.Bundle) error
	// LoadBundle returns the current model bundle. It returns an error
	// wrapping model.ErrModelNotFound when nothing has been saved yet.
	LoadBundle(ctx context.Context) (*model.Bundle, error)

	History

	Close() error
}

// History records served forecasts.
type History interface {
	InsertForecast(ctx context.Context, run types.ForecastRun) error
	// GetForecastHistory returns runs created in [start, end), oldest first.
	GetForecastHistory(ctx context.Context, start, end time.Time) ([]types.ForecastRun, error)
}

// Configured sets up the Storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "file", "Storage provider to use (available: file, firestore)")

	var p struct{ Database }

	files := configuredFile()
	fs := configuredFirestore()

	lflag.Do(func() {
		switch *provider {
		case "file":
			if err := files.Validate(); err != nil {
				panic(fmt.Sprintf("file storage validation failed: %v", err))
			}
			p.Database = files
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}
