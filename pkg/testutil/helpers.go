// Package testutil provides common utility functions for testing.
package testutil

import (
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"
)

// FakeModel is an in-memory forecast model.
// With Predictions set it returns them verbatim, otherwise it echoes column Column of each row.
type FakeModel struct {
	Names       []string
	Predictions []float64
	Column      int
	Err         error

	calls atomic.Int64
}

// FeatureNames returns the configured names.
func (m *FakeModel) FeatureNames() []string {
	return append([]string(nil), m.Names...)
}

// Predict returns the canned predictions, the echoed column, or Err.
func (m *FakeModel) Predict(rows [][]float64) ([]float64, error) {
	m.calls.Add(1)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Predictions != nil {
		return append([]float64(nil), m.Predictions...), nil
	}
	out := make([]float64, len(rows))
	for i, row := range rows {
		if m.Column < 0 || m.Column >= len(row) {
			return nil, fmt.Errorf("row %d has no column %d", i, m.Column)
		}
		out[i] = row[m.Column]
	}
	return out, nil
}

// Calls returns the number of Predict invocations.
func (m *FakeModel) Calls() int {
	return int(m.calls.Load())
}

// FixedClock returns a clock that always reports t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// SeededRand returns a deterministic random source.
func SeededRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed+1))
}
