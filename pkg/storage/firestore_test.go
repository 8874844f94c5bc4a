package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/raterudder/gridcast/pkg/model"
	"github.com/raterudder/gridcast/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirestoreProvider(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST is not set")
	}

	// Use a random database for isolation
	randDB := fmt.Sprintf("test-db-%d", time.Now().UnixNano())
	f := &FirestoreProvider{
		projectID: "test-project-id",
		database:  randDB,
	}

	ctx := context.Background()
	require.NoError(t, f.Init(ctx))
	defer f.Close()

	t.Run("Validate", func(t *testing.T) {
		require.NoError(t, f.Validate())
	})

	t.Run("BundleNotFound", func(t *testing.T) {
		_, err := f.LoadBundle(ctx)
		assert.ErrorIs(t, err, model.ErrModelNotFound)
	})

	t.Run("Bundle", func(t *testing.T) {
		require.NoError(t, f.SaveBundle(ctx, testBundle(t, "first")))
		require.NoError(t, f.SaveBundle(ctx, testBundle(t, "second")))

		got, err := f.LoadBundle(ctx)
		require.NoError(t, err)
		assert.Equal(t, "second", got.Info.Name)
		assert.Equal(t, []string{"a", "b"}, got.Features)
	})

	t.Run("History", func(t *testing.T) {
		// Firestore document IDs are second precision
		now := time.Now().Truncate(time.Second).UTC()
		r1 := types.ForecastRun{ID: "r1", CreatedAt: now.Add(-time.Hour), Forecast: types.Forecast{Model: "random_forest"}}
		r2 := types.ForecastRun{ID: "r2", CreatedAt: now, Forecast: types.Forecast{Model: "gradient_boosting"}}
		require.NoError(t, f.InsertForecast(ctx, r1))
		require.NoError(t, f.InsertForecast(ctx, r2))

		runs, err := f.GetForecastHistory(ctx, now.Add(-2*time.Hour), now.Add(time.Minute))
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "r1", runs[0].ID)
		assert.Equal(t, "r2", runs[1].ID)
		assert.Equal(t, "gradient_boosting", runs[1].Model)

		// a run earlier in the same second as end is included
		r3 := types.ForecastRun{ID: "r3", CreatedAt: now.Add(2*time.Hour + 100*time.Millisecond)}
		require.NoError(t, f.InsertForecast(ctx, r3))
		runs, err = f.GetForecastHistory(ctx, now.Add(2*time.Hour), now.Add(2*time.Hour+500*time.Millisecond))
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, "r3", runs[0].ID)

		runs, err = f.GetForecastHistory(ctx, now.Add(-2*time.Hour), now.Add(-30*time.Minute))
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, "r1", runs[0].ID)
	})
}

func TestHistoryDocRange(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 1, 13, 0, 0, 500_000_000, time.UTC)
	from, to := historyDocRange(start, end)
	assert.Equal(t, "2024-06-01T12:00:00Z", from)
	assert.Equal(t, "2024-06-01T13:00:01Z", to)

	// a run created at 13:00:00.2 has an ID inside the range
	id := historyDocID(end.Add(-300*time.Millisecond)) + "_x"
	assert.GreaterOrEqual(t, id, from)
	assert.Less(t, id, to)

	runs := inRange([]types.ForecastRun{
		{ID: "in", CreatedAt: end.Add(-300 * time.Millisecond)},
		{ID: "out", CreatedAt: end.Add(100 * time.Millisecond)},
	}, start, end)
	require.Len(t, runs, 1)
	assert.Equal(t, "in", runs[0].ID)
}
