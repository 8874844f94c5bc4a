package model

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"
)

// R2 returns the coefficient of determination of the predictions. When the
// actual values are constant it returns 1 for a perfect fit and 0 otherwise.
func R2(actual, predicted []float64) (float64, error) {
	if len(actual) == 0 {
		return 0, fmt.Errorf("no samples")
	}
	if len(actual) != len(predicted) {
		return 0, fmt.Errorf("length mismatch: %d actual, %d predicted", len(actual), len(predicted))
	}
	if stat.PopVariance(actual, nil) == 0 {
		for i := range actual {
			if actual[i] != predicted[i] {
				return 0, nil
			}
		}
		return 1, nil
	}
	return stat.RSquaredFrom(predicted, actual, nil), nil
}

// TrainTestSplit shuffles the indices 0..n-1 with the given seed and holds out
// ceil(n*testFraction) of them for testing.
func TrainTestSplit(n int, testFraction float64, seed int64) (train, test []int, err error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, fmt.Errorf("test fraction must be between 0 and 1, got %v", testFraction)
	}
	nTest := int(math.Ceil(float64(n) * testFraction))
	if nTest < 1 || n-nTest < 1 {
		return nil, nil, fmt.Errorf("cannot split %d samples with test fraction %v", n, testFraction)
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return perm[nTest:], perm[:nTest], nil
}

// Select returns the rows of X and y at the given indices.
func Select(X [][]float64, y []float64, idx []int) ([][]float64, []float64) {
	xs := make([][]float64, len(idx))
	ys := make([]float64, len(idx))
	for i, j := range idx {
		xs[i] = X[j]
		ys[i] = y[j]
	}
	return xs, ys
}
