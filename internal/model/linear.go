package model

import (
	"fmt"

	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/floats"
)

// Linear is a linear regression artifact: prediction = intercept + coefficients·row.
type Linear struct {
	SchemaVersion string    `json:"schema_version,omitempty"`
	Features      []string  `json:"feature_names"`
	Intercept     float64   `json:"intercept"`
	Coefficients  []float64 `json:"coefficients"`
}

// ParseLinear decodes a linear artifact.
func ParseLinear(data []byte) (*Linear, error) {
	var m Linear
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifact, err)
	}
	if len(m.Features) == 0 {
		return nil, fmt.Errorf("%w: linear model declares no feature_names", ErrArtifact)
	}
	if len(m.Features) != len(m.Coefficients) {
		return nil, fmt.Errorf("%w: %d feature_names but %d coefficients", ErrArtifact, len(m.Features), len(m.Coefficients))
	}
	return &m, nil
}

// FeatureNames implements Model.
func (m *Linear) FeatureNames() []string {
	return append([]string(nil), m.Features...)
}

// Predict implements Model.
func (m *Linear) Predict(rows [][]float64) ([]float64, error) {
	if err := checkWidth(rows, len(m.Coefficients)); err != nil {
		return nil, err
	}
	out := make([]float64, len(rows))
	for i, row := range rows {
		out[i] = m.Intercept + floats.Dot(m.Coefficients, row)
	}
	return out, nil
}
