package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/gridcast/pkg/log"
	"github.com/raterudder/gridcast/pkg/model"
	"github.com/raterudder/gridcast/pkg/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// chunkSize keeps every chunk document well under the 1 MiB Firestore limit.
const chunkSize = 512 * 1024

const (
	modelsCollection  = "models"
	chunksCollection  = "chunks"
	historyCollection = "forecast_history"
	currentDoc        = "current"
)

// FirestoreProvider implements the Database interface using Google Cloud
// Firestore. A bundle is stored as a generation of chunk documents under
// models/{generation}/chunks and becomes current once models/current points
// at it.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// the project ID can be inferred from the environment
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

// SaveBundle writes the encoded bundle as a new generation and then swaps
// the current pointer to it. The previous generation is removed afterwards.
func (f *FirestoreProvider) SaveBundle(ctx context.Context, bundle *model.Bundle) error {
	data, err := model.Marshal(bundle)
	if err != nil {
		return err
	}

	models := f.client.Collection(modelsCollection)
	generation := uuid.NewString()
	chunks := models.Doc(generation).Collection(chunksCollection)

	count := 0
	for off := 0; off < len(data) || count == 0; off += chunkSize {
		end := min(off+chunkSize, len(data))
		_, err := chunks.Doc(fmt.Sprintf("%05d", count)).Set(ctx, map[string]interface{}{
			"index": count,
			"data":  data[off:end],
		})
		if err != nil {
			return fmt.Errorf("failed to write model chunk %d: %w", count, err)
		}
		count++
	}
	_, err = models.Doc(generation).Set(ctx, map[string]interface{}{
		"chunks":    count,
		"size":      len(data),
		"name":      bundle.Info.Name,
		"createdAt": time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to write model generation: %w", err)
	}

	var previous string
	err = f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(models.Doc(currentDoc))
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if err == nil {
			if v, err := doc.DataAt("generation"); err == nil {
				previous, _ = v.(string)
			}
		}
		return tx.Set(models.Doc(currentDoc), map[string]interface{}{
			"generation": generation,
			"updatedAt":  time.Now(),
		})
	})
	if err != nil {
		return fmt.Errorf("failed to update current model pointer: %w", err)
	}

	if previous != "" && previous != generation {
		if err := f.deleteGeneration(ctx, previous); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to delete previous model generation", slog.String("generation", previous), slog.Any("error", err))
		}
	}
	return nil
}

func (f *FirestoreProvider) deleteGeneration(ctx context.Context, generation string) error {
	genRef := f.client.Collection(modelsCollection).Doc(generation)
	iter := genRef.Collection(chunksCollection).Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("error iterating model chunks: %w", err)
		}
		if _, err := doc.Ref.Delete(ctx); err != nil {
			return fmt.Errorf("failed to delete model chunk %s: %w", doc.Ref.ID, err)
		}
	}
	if _, err := genRef.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete model generation: %w", err)
	}
	return nil
}

// LoadBundle follows the current pointer and reassembles its chunks.
func (f *FirestoreProvider) LoadBundle(ctx context.Context) (*model.Bundle, error) {
	models := f.client.Collection(modelsCollection)
	doc, err := models.Doc(currentDoc).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%w in firestore", model.ErrModelNotFound)
		}
		return nil, fmt.Errorf("failed to fetch current model doc: %w", err)
	}
	v, err := doc.DataAt("generation")
	if err != nil {
		return nil, fmt.Errorf("current model doc missing 'generation' field: %w", err)
	}
	generation, ok := v.(string)
	if !ok || generation == "" {
		return nil, fmt.Errorf("current model doc 'generation' field is not a string")
	}

	genDoc, err := models.Doc(generation).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%w: generation %s is missing", model.ErrModelNotFound, generation)
		}
		return nil, fmt.Errorf("failed to fetch model generation doc: %w", err)
	}
	var expected int64
	if v, err := genDoc.DataAt("chunks"); err == nil {
		expected, _ = v.(int64)
	}

	iter := models.Doc(generation).Collection(chunksCollection).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var buf bytes.Buffer
	var count int64
	for {
		chunk, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating model chunks: %w", err)
		}
		val, err := chunk.DataAt("data")
		if err != nil {
			return nil, fmt.Errorf("model chunk %s missing 'data' field: %w", chunk.Ref.ID, err)
		}
		data, ok := val.([]byte)
		if !ok {
			return nil, fmt.Errorf("model chunk %s 'data' field is not bytes", chunk.Ref.ID)
		}
		buf.Write(data)
		count++
	}
	if count != expected {
		return nil, &model.SerializationError{Err: fmt.Errorf("model generation %s has %d of %d chunks", generation, count, expected)}
	}
	return model.Unmarshal(buf.Bytes())
}

func historyDocID(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// historyDocRange returns document ID bounds covering every second that
// overlaps [start, end). IDs only have second precision, so the upper bound is
// widened by a second and inRange does the exact filtering.
func historyDocRange(start, end time.Time) (string, string) {
	return historyDocID(start), historyDocID(end.Add(time.Second))
}

// InsertForecast stores the run in the "forecast_history" collection. The
// document ID starts with the RFC3339 creation time so range queries can use
// the ID directly.
func (f *FirestoreProvider) InsertForecast(ctx context.Context, run types.ForecastRun) error {
	jsonBytes, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal forecast run: %w", err)
	}
	docID := historyDocID(run.CreatedAt) + "_" + run.ID
	_, err = f.client.Collection(historyCollection).Doc(docID).Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"createdAt": run.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to insert forecast run: %w", err)
	}
	return nil
}

// GetForecastHistory retrieves runs created within the specified time range.
func (f *FirestoreProvider) GetForecastHistory(ctx context.Context, start, end time.Time) ([]types.ForecastRun, error) {
	coll := f.client.Collection(historyCollection)
	from, to := historyDocRange(start, end)
	iter := coll.
		Where(firestore.DocumentID, ">=", coll.Doc(from)).
		Where(firestore.DocumentID, "<", coll.Doc(to)).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var runs []types.ForecastRun
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating forecast history: %w", err)
		}

		val, err := doc.DataAt("json")
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "forecast doc missing json", slog.String("docID", doc.Ref.ID), slog.Any("err", err))
			return nil, fmt.Errorf("forecast document %s missing 'json' field: %w", doc.Ref.ID, err)
		}
		jsonStr, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("forecast document %s 'json' field is not string", doc.Ref.ID)
		}

		var run types.ForecastRun
		if err := json.Unmarshal([]byte(jsonStr), &run); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal forecast run", slog.String("docID", doc.Ref.ID), slog.Any("err", err))
			return nil, fmt.Errorf("failed to unmarshal forecast run (id=%s): %w", doc.Ref.ID, err)
		}
		runs = append(runs, run)
	}
	return inRange(runs, start, end), nil
}
