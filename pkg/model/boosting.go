package model

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/stat"
)

// BoostingParams configures a GradientBoosting ensemble.
type BoostingParams struct {
	NEstimators  int     `json:"nEstimators"`
	LearningRate float64 `json:"learningRate"`
	// Subsample is the fraction of rows each stage is fit on, 1 uses all rows.
	Subsample float64    `json:"subsample"`
	Seed      int64      `json:"seed"`
	Tree      TreeParams `json:"tree"`
}

// GradientBoosting is a least-squares boosted ensemble of shallow regression
// trees. Each stage fits the residuals of the stages before it.
type GradientBoosting struct {
	Params BoostingParams `json:"params"`
	Init   float64        `json:"init"`
	Trees  []*Tree        `json:"trees"`
}

var _ Regressor = (*GradientBoosting)(nil)

// NewGradientBoosting returns an unfitted ensemble with a learning rate of 0.1
// and trees of depth 3.
func NewGradientBoosting(nEstimators int, seed int64) *GradientBoosting {
	return &GradientBoosting{
		Params: BoostingParams{
			NEstimators:  nEstimators,
			LearningRate: 0.1,
			Subsample:    1,
			Seed:         seed,
			Tree:         TreeParams{MaxDepth: 3},
		},
	}
}

// Fit starts from the mean of y and adds Params.NEstimators trees.
func (g *GradientBoosting) Fit(X [][]float64, y []float64) error {
	if _, err := checkXY(X, y); err != nil {
		return err
	}
	p := g.Params
	if p.NEstimators < 1 {
		return fmt.Errorf("gradient boosting needs at least 1 estimator, got %d", p.NEstimators)
	}
	if p.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive, got %v", p.LearningRate)
	}
	if p.Subsample <= 0 || p.Subsample > 1 {
		return fmt.Errorf("subsample must be in (0, 1], got %v", p.Subsample)
	}

	n := len(y)
	rng := rand.New(rand.NewSource(p.Seed))
	init := stat.Mean(y, nil)
	current := make([]float64, n)
	for i := range current {
		current[i] = init
	}
	residual := make([]float64, n)

	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	sampleSize := max(1, int(p.Subsample*float64(n)))

	trees := make([]*Tree, p.NEstimators)
	for t := range trees {
		for i := range residual {
			residual[i] = y[i] - current[i]
		}
		sample := all
		if sampleSize < n {
			sample = rng.Perm(n)[:sampleSize]
		}
		tree := &Tree{Params: p.Tree}
		if err := tree.fit(X, residual, sample, rand.New(rand.NewSource(rng.Int63()))); err != nil {
			return fmt.Errorf("failed to fit stage %d: %w", t, err)
		}
		for i, row := range X {
			current[i] += p.LearningRate * tree.predictRow(row)
		}
		trees[t] = tree
	}
	g.Init = init
	g.Trees = trees
	return nil
}

// Predict sums the initial value and the scaled stage predictions.
func (g *GradientBoosting) Predict(X [][]float64) ([]float64, error) {
	if len(g.Trees) == 0 {
		return nil, fmt.Errorf("gradient boosting is not fitted")
	}
	out := make([]float64, len(X))
	for i := range out {
		out[i] = g.Init
	}
	for _, tree := range g.Trees {
		preds, err := tree.Predict(X)
		if err != nil {
			return nil, err
		}
		for i, v := range preds {
			out[i] += g.Params.LearningRate * v
		}
	}
	return out, nil
}

func (g *GradientBoosting) validate(width int) error {
	if len(g.Trees) == 0 {
		return fmt.Errorf("gradient boosting has no trees")
	}
	for i, t := range g.Trees {
		if t == nil {
			return fmt.Errorf("stage %d is missing", i)
		}
		if err := t.validate(width); err != nil {
			return fmt.Errorf("stage %d: %w", i, err)
		}
	}
	return nil
}
