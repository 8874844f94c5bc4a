package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/raterudder/gridcast/pkg/types"
)

// ArtifactVersion is the version of the encoded bundle format.
const ArtifactVersion = 1

const (
	kindStandardScaler   = "standard_scaler"
	kindTree             = "tree"
	kindRandomForest     = "random_forest"
	kindGradientBoosting = "gradient_boosting"
)

type artifact struct {
	Version  int             `json:"version"`
	Features []string        `json:"features"`
	Scaler   component       `json:"scaler"`
	Model    component       `json:"model"`
	Info     types.ModelInfo `json:"info"`
}

type component struct {
	Kind   string          `json:"kind"`
	Params json.RawMessage `json:"params"`
}

// Encode writes the bundle as one gzip-compressed JSON document.
func Encode(w io.Writer, b *Bundle) error {
	if b == nil {
		return errors.New("bundle is nil")
	}
	scalerKind, err := scalerKind(b.Scaler)
	if err != nil {
		return err
	}
	modelKind, err := regressorKind(b.Regressor)
	if err != nil {
		return err
	}
	scalerJSON, err := json.Marshal(b.Scaler)
	if err != nil {
		return fmt.Errorf("failed to marshal scaler: %w", err)
	}
	modelJSON, err := json.Marshal(b.Regressor)
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}

	zw := gzip.NewWriter(w)
	if err := json.NewEncoder(zw).Encode(artifact{
		Version:  ArtifactVersion,
		Features: b.Features,
		Scaler:   component{Kind: scalerKind, Params: scalerJSON},
		Model:    component{Kind: modelKind, Params: modelJSON},
		Info:     b.Info,
	}); err != nil {
		zw.Close()
		return fmt.Errorf("failed to encode bundle: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to flush bundle: %w", err)
	}
	return nil
}

// Marshal is Encode into a byte slice.
func Marshal(b *Bundle) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a bundle written by Encode. Any problem with the artifact is
// returned as a *SerializationError.
func Decode(r io.Reader) (*Bundle, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, &SerializationError{Err: fmt.Errorf("failed to open gzip stream: %w", err)}
	}
	defer zr.Close()

	var a artifact
	if err := json.NewDecoder(zr).Decode(&a); err != nil {
		return nil, &SerializationError{Err: fmt.Errorf("failed to decode bundle: %w", err)}
	}
	if a.Version != ArtifactVersion {
		return nil, &SerializationError{Err: fmt.Errorf("unsupported artifact version %d", a.Version)}
	}
	if len(a.Features) == 0 {
		return nil, &SerializationError{Err: errors.New("artifact has no features")}
	}

	scaler, err := decodeScaler(a.Scaler, len(a.Features))
	if err != nil {
		return nil, &SerializationError{Err: err}
	}
	regressor, err := decodeRegressor(a.Model, len(a.Features))
	if err != nil {
		return nil, &SerializationError{Err: err}
	}
	return &Bundle{
		Regressor: regressor,
		Scaler:    scaler,
		Features:  a.Features,
		Info:      a.Info,
	}, nil
}

// Unmarshal is Decode from a byte slice.
func Unmarshal(data []byte) (*Bundle, error) {
	return Decode(bytes.NewReader(data))
}

func scalerKind(s Scaler) (string, error) {
	switch s.(type) {
	case *StandardScaler:
		return kindStandardScaler, nil
	default:
		return "", fmt.Errorf("unsupported scaler type %T", s)
	}
}

func regressorKind(r Regressor) (string, error) {
	switch r.(type) {
	case *Tree:
		return kindTree, nil
	case *RandomForest:
		return kindRandomForest, nil
	case *GradientBoosting:
		return kindGradientBoosting, nil
	default:
		return "", fmt.Errorf("unsupported model type %T", r)
	}
}

func decodeScaler(c component, width int) (Scaler, error) {
	switch c.Kind {
	case kindStandardScaler:
		var s StandardScaler
		if err := json.Unmarshal(c.Params, &s); err != nil {
			return nil, fmt.Errorf("failed to decode scaler: %w", err)
		}
		if len(s.Mean) != width || len(s.Scale) != width {
			return nil, fmt.Errorf("scaler has %d/%d columns, expected %d", len(s.Mean), len(s.Scale), width)
		}
		for j, v := range s.Scale {
			if v == 0 {
				return nil, fmt.Errorf("scaler column %d has zero scale", j)
			}
		}
		return &s, nil
	default:
		return nil, fmt.Errorf("unknown scaler kind %q", c.Kind)
	}
}

func decodeRegressor(c component, width int) (Regressor, error) {
	switch c.Kind {
	case kindTree:
		var t Tree
		if err := json.Unmarshal(c.Params, &t); err != nil {
			return nil, fmt.Errorf("failed to decode tree: %w", err)
		}
		return &t, t.validate(width)
	case kindRandomForest:
		var f RandomForest
		if err := json.Unmarshal(c.Params, &f); err != nil {
			return nil, fmt.Errorf("failed to decode random forest: %w", err)
		}
		return &f, f.validate(width)
	case kindGradientBoosting:
		var g GradientBoosting
		if err := json.Unmarshal(c.Params, &g); err != nil {
			return nil, fmt.Errorf("failed to decode gradient boosting: %w", err)
		}
		return &g, g.validate(width)
	default:
		return nil, fmt.Errorf("unknown model kind %q", c.Kind)
	}
}
