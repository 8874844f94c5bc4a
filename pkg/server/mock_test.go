package server

import (
	"context"

	"github.com/raterudder/gridcast/pkg/forecast"
	"github.com/raterudder/gridcast/pkg/types"
	"github.com/stretchr/testify/mock"
)

type mockForecaster struct {
	mock.Mock
}

func (m *mockForecaster) Predict(ctx context.Context, req forecast.Request) (types.Forecast, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(types.Forecast), args.Error(1)
}

func (m *mockForecaster) Info(ctx context.Context) (types.ModelInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).(types.ModelInfo), args.Error(1)
}
