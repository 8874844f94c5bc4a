package model

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/raterudder/gridcast/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trainedBundle(t *testing.T, r Regressor) *Bundle {
	t.Helper()
	X, y := synthetic(120, 11)
	s := &StandardScaler{}
	require.NoError(t, s.Fit(X))
	scaled, err := s.Transform(X)
	require.NoError(t, err)
	require.NoError(t, r.Fit(scaled, y))
	return &Bundle{
		Regressor: r,
		Scaler:    s,
		Features:  []string{"a", "b", "c"},
		Info: types.ModelInfo{
			Name:      "test",
			Features:  []string{"a", "b", "c"},
			TrainedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
			Scores:    []types.CandidateScore{{Name: "test", R2: 0.5}},
		},
	}
}

func TestCodecRoundTrip(t *testing.T) {
	input := [][]float64{{1.25, 3.5, 0.1}, {9.75, 0.5, 0.9}, {5, 2.5, 0.5}}
	regressors := map[string]func() Regressor{
		"tree":              func() Regressor { return &Tree{} },
		"random_forest":     func() Regressor { return NewRandomForest(10, 42) },
		"gradient_boosting": func() Regressor { return NewGradientBoosting(25, 42) },
	}
	for name, newRegressor := range regressors {
		t.Run(name, func(t *testing.T) {
			b := trainedBundle(t, newRegressor())
			want, err := b.Predict(input)
			require.NoError(t, err)

			data, err := Marshal(b)
			require.NoError(t, err)
			got, err := Unmarshal(data)
			require.NoError(t, err)

			assert.Equal(t, b.Features, got.Features)
			assert.Equal(t, b.Info.Name, got.Info.Name)
			assert.True(t, b.Info.TrainedAt.Equal(got.Info.TrainedAt))
			assert.IsType(t, b.Regressor, got.Regressor)

			preds, err := got.Predict(input)
			require.NoError(t, err)
			// bit-identical, not merely close
			assert.Equal(t, want, preds)
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	gz := func(s string) []byte {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, err := zw.Write([]byte(s))
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		return buf.Bytes()
	}

	cases := map[string][]byte{
		"NotGzip":        []byte("not a model"),
		"NotJSON":        gz("{"),
		"Version":        gz(`{"version":99,"features":["a"]}`),
		"NoFeatures":     gz(`{"version":1,"features":[]}`),
		"UnknownScaler":  gz(`{"version":1,"features":["a"],"scaler":{"kind":"minmax","params":{}}}`),
		"ScalerWidth":    gz(`{"version":1,"features":["a","b"],"scaler":{"kind":"standard_scaler","params":{"mean":[0],"scale":[1]}}}`),
		"ZeroScale":      gz(`{"version":1,"features":["a"],"scaler":{"kind":"standard_scaler","params":{"mean":[0],"scale":[0]}}}`),
		"UnknownModel":   gz(`{"version":1,"features":["a"],"scaler":{"kind":"standard_scaler","params":{"mean":[0],"scale":[1]}},"model":{"kind":"svm","params":{}}}`),
		"BadTreeFeature": gz(`{"version":1,"features":["a"],"scaler":{"kind":"standard_scaler","params":{"mean":[0],"scale":[1]}},"model":{"kind":"tree","params":{"width":1,"nodes":[{"f":3,"l":1,"r":2},{"f":-1},{"f":-1}]}}}`),
		"BadTreeChild":   gz(`{"version":1,"features":["a"],"scaler":{"kind":"standard_scaler","params":{"mean":[0],"scale":[1]}},"model":{"kind":"tree","params":{"width":1,"nodes":[{"f":0,"l":5,"r":6}]}}}`),
		"EmptyForest":    gz(`{"version":1,"features":["a"],"scaler":{"kind":"standard_scaler","params":{"mean":[0],"scale":[1]}},"model":{"kind":"random_forest","params":{"trees":[]}}}`),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Unmarshal(data)
			require.Error(t, err)
			var serr *SerializationError
			assert.True(t, errors.As(err, &serr), "expected SerializationError, got %T", err)
		})
	}
}

func TestEncodeUnsupported(t *testing.T) {
	_, err := Marshal(nil)
	assert.Error(t, err)

	_, err = Marshal(&Bundle{Scaler: &StandardScaler{}, Features: []string{"a"}})
	assert.ErrorContains(t, err, "unsupported model type")
}
