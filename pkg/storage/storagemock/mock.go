package storagemock

import (
	"context"
	"time"

	"github.com/raterudder/gridcast/pkg/model"
	"github.com/raterudder/gridcast/pkg/storage"
	"github.com/raterudder/gridcast/pkg/types"
	"github.com/stretchr/testify/mock"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) SaveBundle(ctx context.Context, bundle *model.Bundle) error {
	args := m.Called(ctx, bundle)
	return args.Error(0)
}

func (m *MockDatabase) LoadBundle(ctx context.Context) (*model.Bundle, error) {
	args := m.Called(ctx)
	b, _ := args.Get(0).(*model.Bundle)
	return b, args.Error(1)
}

func (m *MockDatabase) InsertForecast(ctx context.Context, run types.ForecastRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockDatabase) GetForecastHistory(ctx context.Context, start, end time.Time) ([]types.ForecastRun, error) {
	args := m.Called(ctx, start, end)
	runs, _ := args.Get(0).([]types.ForecastRun)
	return runs, args.Error(1)
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
