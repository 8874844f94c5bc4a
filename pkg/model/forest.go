package model

import (
	"fmt"
	"math/rand"
)

// ForestParams configures a RandomForest.
type ForestParams struct {
	NEstimators int        `json:"nEstimators"`
	Seed        int64      `json:"seed"`
	Tree        TreeParams `json:"tree"`
}

// RandomForest is a bagged ensemble of fully grown regression trees, each fit
// on a bootstrap sample of the training rows. Predictions are the mean of the
// tree predictions.
type RandomForest struct {
	Params ForestParams `json:"params"`
	Trees  []*Tree      `json:"trees"`
}

var _ Regressor = (*RandomForest)(nil)

// NewRandomForest returns an unfitted forest.
func NewRandomForest(nEstimators int, seed int64) *RandomForest {
	return &RandomForest{
		Params: ForestParams{
			NEstimators: nEstimators,
			Seed:        seed,
		},
	}
}

// Fit grows Params.NEstimators trees. The same seed and rows always produce
// the same forest.
func (f *RandomForest) Fit(X [][]float64, y []float64) error {
	if _, err := checkXY(X, y); err != nil {
		return err
	}
	if f.Params.NEstimators < 1 {
		return fmt.Errorf("random forest needs at least 1 estimator, got %d", f.Params.NEstimators)
	}
	rng := rand.New(rand.NewSource(f.Params.Seed))
	n := len(y)
	trees := make([]*Tree, f.Params.NEstimators)
	for t := range trees {
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.Intn(n)
		}
		tree := &Tree{Params: f.Params.Tree}
		if err := tree.fit(X, y, sample, rand.New(rand.NewSource(rng.Int63()))); err != nil {
			return fmt.Errorf("failed to fit tree %d: %w", t, err)
		}
		trees[t] = tree
	}
	f.Trees = trees
	return nil
}

// Predict averages the tree predictions.
func (f *RandomForest) Predict(X [][]float64) ([]float64, error) {
	if len(f.Trees) == 0 {
		return nil, fmt.Errorf("random forest is not fitted")
	}
	out := make([]float64, len(X))
	for _, tree := range f.Trees {
		preds, err := tree.Predict(X)
		if err != nil {
			return nil, err
		}
		for i, p := range preds {
			out[i] += p
		}
	}
	for i := range out {
		out[i] /= float64(len(f.Trees))
	}
	return out, nil
}

func (f *RandomForest) validate(width int) error {
	if len(f.Trees) == 0 {
		return fmt.Errorf("random forest has no trees")
	}
	for i, t := range f.Trees {
		if t == nil {
			return fmt.Errorf("tree %d is missing", i)
		}
		if err := t.validate(width); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}
