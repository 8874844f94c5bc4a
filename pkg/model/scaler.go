package model

import (
	"errors"

	"gonum.org/v1/gonum/stat"
)

// StandardScaler standardizes each column to zero mean and unit variance
// using the population standard deviation of the fit rows. Columns with zero
// variance are only centered.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

var _ Scaler = (*StandardScaler)(nil)

// Fit computes the per-column mean and scale.
func (s *StandardScaler) Fit(X [][]float64) error {
	if len(X) == 0 {
		return errors.New("no samples")
	}
	width, err := checkWidth(X, len(X[0]))
	if err != nil {
		return err
	}
	mean := make([]float64, width)
	scale := make([]float64, width)
	col := make([]float64, len(X))
	for j := 0; j < width; j++ {
		for i, row := range X {
			col[i] = row[j]
		}
		m, std := stat.PopMeanStdDev(col, nil)
		if std == 0 {
			std = 1
		}
		mean[j] = m
		scale[j] = std
	}
	s.Mean = mean
	s.Scale = scale
	return nil
}

// Transform returns standardized copies of the rows.
func (s *StandardScaler) Transform(X [][]float64) ([][]float64, error) {
	if len(s.Mean) == 0 {
		return nil, errors.New("scaler is not fitted")
	}
	if _, err := checkWidth(X, len(s.Mean)); err != nil {
		return nil, err
	}
	out := make([][]float64, len(X))
	for i, row := range X {
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = (v - s.Mean[j]) / s.Scale[j]
		}
		out[i] = scaled
	}
	return out, nil
}
