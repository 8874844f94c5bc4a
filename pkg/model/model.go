// Package model contains the regression toolkit used for demand forecasting:
// the Regressor and Scaler capabilities, tree ensembles implementing them, and
// the Bundle that ties a trained model to its scaler and feature order.
package model

import (
	"errors"
	"fmt"

	"github.com/raterudder/gridcast/pkg/types"
)

// ErrModelNotFound is returned when no trained model has been persisted yet.
var ErrModelNotFound = errors.New("model not found")

// SerializationError is returned when a persisted model cannot be decoded.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("invalid model artifact: %v", e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// Regressor is a model that can be fit to a matrix of rows and then predict a
// value per row.
type Regressor interface {
	Fit(X [][]float64, y []float64) error
	Predict(X [][]float64) ([]float64, error)
}

// Scaler is a per-column transform fit on training rows.
type Scaler interface {
	Fit(X [][]float64) error
	Transform(X [][]float64) ([][]float64, error)
}

// Bundle is the unit of persisted trained state. It is never modified after
// training; a retrained model produces a new Bundle.
type Bundle struct {
	Regressor Regressor
	Scaler    Scaler
	// Features is the column order the scaler and regressor were fit with.
	Features []string
	Info     types.ModelInfo
}

// Predict scales the rows and predicts one value per row. Rows must already be
// in Features order.
func (b *Bundle) Predict(X [][]float64) ([]float64, error) {
	for i, row := range X {
		if len(row) != len(b.Features) {
			return nil, fmt.Errorf("row %d has %d features, expected %d", i, len(row), len(b.Features))
		}
	}
	scaled, err := b.Scaler.Transform(X)
	if err != nil {
		return nil, fmt.Errorf("failed to scale features: %w", err)
	}
	return b.Regressor.Predict(scaled)
}

func checkXY(X [][]float64, y []float64) (int, error) {
	if len(X) == 0 {
		return 0, errors.New("no samples")
	}
	if len(X) != len(y) {
		return 0, fmt.Errorf("X has %d rows but y has %d", len(X), len(y))
	}
	return checkWidth(X, len(X[0]))
}

func checkWidth(X [][]float64, width int) (int, error) {
	if width == 0 {
		return 0, errors.New("no features")
	}
	for i, row := range X {
		if len(row) != width {
			return 0, fmt.Errorf("row %d has %d features, expected %d", i, len(row), width)
		}
	}
	return width, nil
}
