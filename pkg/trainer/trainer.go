// Package trainer builds a demand model bundle from historical records. It
// trains every candidate regressor, scores each on a held-out partition and
// keeps the best one.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/gridcast/pkg/features"
	"github.com/raterudder/gridcast/pkg/log"
	"github.com/raterudder/gridcast/pkg/model"
	"github.com/raterudder/gridcast/pkg/types"
)

// Candidate is a named regressor constructor.
type Candidate struct {
	Name string
	New  func() model.Regressor
}

// DefaultCandidates returns a bagged random forest followed by gradient
// boosting, both with the given number of estimators and seed.
func DefaultCandidates(nEstimators int, seed int64) []Candidate {
	return []Candidate{
		{
			Name: "random_forest",
			New:  func() model.Regressor { return model.NewRandomForest(nEstimators, seed) },
		},
		{
			Name: "gradient_boosting",
			New:  func() model.Regressor { return model.NewGradientBoosting(nEstimators, seed) },
		},
	}
}

// Config controls a training run.
type Config struct {
	Candidates   []Candidate
	TestFraction float64
	Seed         int64
	Clock        clockwork.Clock
}

// Trainer trains and selects demand models.
type Trainer struct {
	candidates   []Candidate
	testFraction float64
	seed         int64
	clock        clockwork.Clock
}

// New returns a Trainer. Zero values in cfg fall back to the default
// candidates, a 20% test partition, seed 42 and the real clock.
func New(cfg Config) *Trainer {
	t := &Trainer{
		candidates:   cfg.Candidates,
		testFraction: cfg.TestFraction,
		seed:         cfg.Seed,
		clock:        cfg.Clock,
	}
	if t.seed == 0 {
		t.seed = 42
	}
	if len(t.candidates) == 0 {
		t.candidates = DefaultCandidates(200, t.seed)
	}
	if t.testFraction == 0 {
		t.testFraction = 0.2
	}
	if t.clock == nil {
		t.clock = clockwork.NewRealClock()
	}
	return t
}

// Configured returns a Trainer configured from flags.
func Configured() *Trainer {
	estimators := 200
	lflag.JSON(&estimators, "estimators", estimators, "Number of estimators for each candidate model")
	seed := int64(42)
	lflag.JSON(&seed, "seed", seed, "Random seed for the train/test split and the models")
	testFraction := 0.2
	lflag.JSON(&testFraction, "test-fraction", testFraction, "Fraction of rows held out for scoring candidates")

	t := &Trainer{}
	lflag.Do(func() {
		*t = *New(Config{
			Candidates:   DefaultCandidates(estimators, seed),
			TestFraction: testFraction,
			Seed:         seed,
		})
	})
	return t
}

// Train fits every candidate and returns a bundle holding the one with the
// highest R² on the held-out rows. Ties keep the earlier candidate.
func (t *Trainer) Train(ctx context.Context, records []types.TrainingRecord) (*model.Bundle, error) {
	if len(records) == 0 {
		return nil, &DataSchemaError{Err: errors.New("no training records")}
	}

	times := make([]time.Time, len(records))
	inputs := make([]features.Input, len(records))
	y := make([]float64, len(records))
	for i, r := range records {
		times[i] = r.Timestamp
		inputs[i] = features.FromRecord(r)
		y[i] = r.EnergyDemand
	}
	names := append([]string(nil), features.Names...)
	X, err := features.Matrix(times, inputs, names)
	if err != nil {
		return nil, fmt.Errorf("failed to build features: %w", err)
	}

	trainIdx, testIdx, err := model.TrainTestSplit(len(y), t.testFraction, t.seed)
	if err != nil {
		return nil, &DataSchemaError{Err: err}
	}
	if len(trainIdx) < 2 || len(testIdx) < 2 {
		return nil, &DataSchemaError{Err: fmt.Errorf("need at least 2 rows in each partition, got %d train and %d test", len(trainIdx), len(testIdx))}
	}
	Xtrain, ytrain := model.Select(X, y, trainIdx)
	Xtest, ytest := model.Select(X, y, testIdx)

	// the scaler only ever sees the training partition
	scaler := &model.StandardScaler{}
	if err := scaler.Fit(Xtrain); err != nil {
		return nil, fmt.Errorf("failed to fit scaler: %w", err)
	}
	Xtrain, err = scaler.Transform(Xtrain)
	if err != nil {
		return nil, fmt.Errorf("failed to scale training rows: %w", err)
	}
	Xtest, err = scaler.Transform(Xtest)
	if err != nil {
		return nil, fmt.Errorf("failed to scale test rows: %w", err)
	}

	var (
		best      model.Regressor
		bestName  string
		bestScore float64
		scores    []types.CandidateScore
	)
	for _, c := range t.candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := t.clock.Now()
		m := c.New()
		if err := m.Fit(Xtrain, ytrain); err != nil {
			return nil, fmt.Errorf("failed to fit %s: %w", c.Name, err)
		}
		preds, err := m.Predict(Xtest)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate %s: %w", c.Name, err)
		}
		score, err := model.R2(ytest, preds)
		if err != nil {
			return nil, fmt.Errorf("failed to score %s: %w", c.Name, err)
		}
		log.Ctx(ctx).InfoContext(
			ctx,
			"trained candidate",
			slog.String("model", c.Name),
			slog.Float64("r2", score),
			slog.Duration("took", t.clock.Since(start)),
		)
		scores = append(scores, types.CandidateScore{Name: c.Name, R2: score})
		if best == nil || score > bestScore {
			best, bestName, bestScore = m, c.Name, score
		}
	}
	if best == nil {
		return nil, errors.New("no candidate models configured")
	}
	log.Ctx(ctx).InfoContext(ctx, "selected model", slog.String("model", bestName), slog.Float64("r2", bestScore))

	return &model.Bundle{
		Regressor: best,
		Scaler:    scaler,
		Features:  names,
		Info: types.ModelInfo{
			Name:         bestName,
			Features:     names,
			Scores:       scores,
			TrainedAt:    t.clock.Now().UTC(),
			TrainingRows: len(trainIdx),
			TestRows:     len(testIdx),
		},
	}, nil
}
