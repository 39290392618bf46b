// Package features turns per-channel request rows into the feature matrix the
// forecast model was trained on. Column layouts are versioned explicitly; a model
// whose declared columns differ from the configured schema is rejected.
package features

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Feature identifies the logical meaning of a model column.
type Feature int

const (
	FeatureCost Feature = iota
	FeatureCPC
	FeatureCTR
	FeatureROASTrend
	FeatureDayOfWeek
	FeatureIsWeekend
	FeatureTrendScore
	FeatureChannel
)

// Column is one model input column.
type Column struct {
	Name    string
	Feature Feature
	// Channel is set for one-hot channel indicator columns.
	Channel string
}

// Schema is a named, ordered column layout.
type Schema struct {
	Version string
	Columns []Column
}

const (
	// SchemaV1 is the layout of the original XGBoost artifact (Korean column names).
	SchemaV1 = "v1"
	// SchemaV2 is the same layout with English column names.
	SchemaV2 = "v2"
)

var schemas = map[string]Schema{
	SchemaV1: buildSchema(SchemaV1, map[Feature]string{
		FeatureCost:       "비용",
		FeatureCPC:        "CPC",
		FeatureCTR:        "CTR",
		FeatureROASTrend:  "ROAS_3d_trend",
		FeatureDayOfWeek:  "day_of_week",
		FeatureIsWeekend:  "is_weekend",
		FeatureTrendScore: "trend_score",
	}, "채널명_"),
	SchemaV2: buildSchema(SchemaV2, map[Feature]string{
		FeatureCost:       "cost",
		FeatureCPC:        "cpc",
		FeatureCTR:        "ctr",
		FeatureROASTrend:  "roas_3d_trend",
		FeatureDayOfWeek:  "day_of_week",
		FeatureIsWeekend:  "is_weekend",
		FeatureTrendScore: "trend_score",
	}, "channel_"),
}

func buildSchema(version string, names map[Feature]string, channelPrefix string) Schema {
	order := []Feature{FeatureCost, FeatureCPC, FeatureCTR, FeatureROASTrend, FeatureDayOfWeek, FeatureIsWeekend, FeatureTrendScore}
	cols := make([]Column, 0, len(order)+len(DefaultChannels))
	for _, f := range order {
		cols = append(cols, Column{Name: names[f], Feature: f})
	}
	for _, ch := range DefaultChannels {
		cols = append(cols, Column{Name: channelPrefix + ch.Name, Feature: FeatureChannel, Channel: ch.Name})
	}
	return Schema{Version: version, Columns: cols}
}

// LookupSchema returns the registered schema for version.
func LookupSchema(version string) (Schema, error) {
	s, ok := schemas[strings.ToLower(strings.TrimSpace(version))]
	if !ok {
		return Schema{}, fmt.Errorf("unknown feature schema version %q (known: %s)", version, strings.Join(SchemaVersions(), ", "))
	}
	return s, nil
}

// SchemaVersions lists the registered schema versions.
func SchemaVersions() []string {
	versions := make([]string, 0, len(schemas))
	for v := range schemas {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions
}

// Names returns the ordered column names.
func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Channels returns the channels that have a one-hot column, in column order.
func (s Schema) Channels() []string {
	var out []string
	for _, c := range s.Columns {
		if c.Feature == FeatureChannel {
			out = append(out, c.Channel)
		}
	}
	return out
}

// ErrSchemaMismatch is matched by *MismatchError.
var ErrSchemaMismatch = errors.New("feature schema mismatch")

// MismatchError reports the expected and received column layouts.
type MismatchError struct {
	Version  string
	Expected []string
	Received []string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("feature schema %s mismatch: expected columns [%s], received [%s]",
		e.Version, strings.Join(e.Expected, ", "), strings.Join(e.Received, ", "))
}

// Is makes errors.Is(err, ErrSchemaMismatch) true.
func (e *MismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

// CheckColumns verifies that received names match the schema exactly, in order.
func (s Schema) CheckColumns(received []string) error {
	expected := s.Names()
	if len(expected) != len(received) {
		return &MismatchError{Version: s.Version, Expected: expected, Received: received}
	}
	for i := range expected {
		if expected[i] != received[i] {
			return &MismatchError{Version: s.Version, Expected: expected, Received: received}
		}
	}
	return nil
}
