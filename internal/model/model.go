// Package model loads forecast model artifacts and evaluates them. A Model is
// immutable after loading and safe for concurrent Predict calls.
package model

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Model maps feature rows to one predicted ROAS value per row, in input order.
type Model interface {
	// FeatureNames returns the ordered input columns the artifact was trained on.
	FeatureNames() []string
	Predict(rows [][]float64) ([]float64, error)
}

// Artifact kinds accepted by Load.
const (
	KindXGBoost = "xgboost"
	KindLinear  = "linear"
)

// ErrArtifact is wrapped by every load-time failure.
var ErrArtifact = errors.New("invalid model artifact")

// Load reads the artifact at path and decodes it as kind.
func Load(path, kind string) (Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrArtifact, path, err)
	}

	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindXGBoost, "":
		m, err := ParseXGBoost(data)
		if err != nil {
			return nil, err
		}
		return m, nil
	case KindLinear:
		m, err := ParseLinear(data)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: unsupported model kind %q", ErrArtifact, kind)
	}
}

func checkWidth(rows [][]float64, width int) error {
	for i, row := range rows {
		if len(row) != width {
			return fmt.Errorf("row %d has %d features, model expects %d", i, len(row), width)
		}
	}
	return nil
}
