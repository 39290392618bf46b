package model

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// identityObjectives are the regression objectives whose prediction is the raw margin.
var identityObjectives = map[string]struct{}{
	"reg:squarederror":     {},
	"reg:linear":           {},
	"reg:absoluteerror":    {},
	"reg:pseudohubererror": {},
	"reg:quantileerror":    {},
}

// Ensemble is a gradient-boosted tree ensemble decoded from an XGBoost JSON model
// (Booster.save_model with a .json suffix).
type Ensemble struct {
	features  []string
	baseScore float64
	trees     []tree
}

type tree struct {
	left        []int
	right       []int
	splitIndex  []int
	splitValue  []float64
	defaultLeft []bool
}

type xgbDocument struct {
	Learner struct {
		FeatureNames    []string `json:"feature_names"`
		GradientBooster struct {
			Name  string `json:"name"`
			Model struct {
				Trees []xgbTree `json:"trees"`
			} `json:"model"`
		} `json:"gradient_booster"`
		LearnerModelParam struct {
			BaseScore  string `json:"base_score"`
			NumFeature string `json:"num_feature"`
			NumTarget  string `json:"num_target"`
		} `json:"learner_model_param"`
		Objective struct {
			Name string `json:"name"`
		} `json:"objective"`
	} `json:"learner"`
}

type xgbTree struct {
	LeftChildren    []int      `json:"left_children"`
	RightChildren   []int      `json:"right_children"`
	SplitIndices    []int      `json:"split_indices"`
	SplitConditions []float64  `json:"split_conditions"`
	DefaultLeft     []flexBool `json:"default_left"`
	SplitType       []int      `json:"split_type"`
}

// flexBool accepts both the boolean and the 0/1 encodings XGBoost has used for default_left.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true", "1":
		*b = true
	case "false", "0":
		*b = false
	default:
		return fmt.Errorf("invalid boolean %s", data)
	}
	return nil
}

// ParseXGBoost decodes and validates an XGBoost JSON model.
func ParseXGBoost(data []byte) (*Ensemble, error) {
	var doc xgbDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifact, err)
	}
	l := doc.Learner

	if name := l.GradientBooster.Name; name != "gbtree" {
		return nil, fmt.Errorf("%w: unsupported booster %q, only gbtree is supported", ErrArtifact, name)
	}
	if _, ok := identityObjectives[l.Objective.Name]; !ok {
		return nil, fmt.Errorf("%w: unsupported objective %q", ErrArtifact, l.Objective.Name)
	}
	if nt := strings.TrimSpace(l.LearnerModelParam.NumTarget); nt != "" && nt != "1" {
		return nil, fmt.Errorf("%w: multi-target models are not supported (num_target=%s)", ErrArtifact, nt)
	}
	if len(l.FeatureNames) == 0 {
		return nil, fmt.Errorf("%w: model carries no feature_names; train it from a named DataFrame", ErrArtifact)
	}
	if nf := strings.TrimSpace(l.LearnerModelParam.NumFeature); nf != "" {
		n, err := strconv.Atoi(nf)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid num_feature %q", ErrArtifact, nf)
		}
		if n != len(l.FeatureNames) {
			return nil, fmt.Errorf("%w: num_feature %d does not match %d feature_names", ErrArtifact, n, len(l.FeatureNames))
		}
	}

	base, err := parseBaseScore(l.LearnerModelParam.BaseScore)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifact, err)
	}

	e := &Ensemble{
		features:  append([]string(nil), l.FeatureNames...),
		baseScore: base,
		trees:     make([]tree, 0, len(l.GradientBooster.Model.Trees)),
	}
	for i, raw := range l.GradientBooster.Model.Trees {
		t, err := buildTree(raw, len(e.features))
		if err != nil {
			return nil, fmt.Errorf("%w: tree %d: %v", ErrArtifact, i, err)
		}
		e.trees = append(e.trees, t)
	}
	return e, nil
}

// parseBaseScore handles both "5E-1" and the bracketed "[5E-1]" form of newer releases.
func parseBaseScore(raw string) (float64, error) {
	trimmed := strings.Trim(strings.TrimSpace(raw), "[]")
	if trimmed == "" {
		return 0.5, nil
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid base_score %q", raw)
	}
	return v, nil
}

func buildTree(raw xgbTree, numFeatures int) (tree, error) {
	n := len(raw.LeftChildren)
	if n == 0 {
		return tree{}, fmt.Errorf("empty tree")
	}
	if len(raw.RightChildren) != n || len(raw.SplitIndices) != n || len(raw.SplitConditions) != n || len(raw.DefaultLeft) != n {
		return tree{}, fmt.Errorf("node arrays have inconsistent lengths")
	}
	for _, st := range raw.SplitType {
		if st != 0 {
			return tree{}, fmt.Errorf("categorical splits are not supported")
		}
	}

	t := tree{
		left:        raw.LeftChildren,
		right:       raw.RightChildren,
		splitIndex:  raw.SplitIndices,
		splitValue:  raw.SplitConditions,
		defaultLeft: make([]bool, n),
	}
	for i := 0; i < n; i++ {
		t.defaultLeft[i] = bool(raw.DefaultLeft[i])
		if t.left[i] == -1 {
			if t.right[i] != -1 {
				return tree{}, fmt.Errorf("node %d has only one child", i)
			}
			continue
		}
		// Children always follow their parent, which also rules out cycles.
		if t.left[i] <= i || t.left[i] >= n || t.right[i] <= i || t.right[i] >= n {
			return tree{}, fmt.Errorf("node %d has out-of-range children", i)
		}
		if t.splitIndex[i] < 0 || t.splitIndex[i] >= numFeatures {
			return tree{}, fmt.Errorf("node %d splits on feature %d of %d", i, t.splitIndex[i], numFeatures)
		}
	}
	return t, nil
}

func (t tree) leaf(row []float64) float64 {
	node := 0
	// Features and thresholds are compared in float32, as the booster does.
	for t.left[node] != -1 {
		v := row[t.splitIndex[node]]
		switch {
		case math.IsNaN(v):
			if t.defaultLeft[node] {
				node = t.left[node]
			} else {
				node = t.right[node]
			}
		case float32(v) < float32(t.splitValue[node]):
			node = t.left[node]
		default:
			node = t.right[node]
		}
	}
	return t.splitValue[node]
}

// FeatureNames implements Model.
func (e *Ensemble) FeatureNames() []string {
	return append([]string(nil), e.features...)
}

// Predict implements Model.
func (e *Ensemble) Predict(rows [][]float64) ([]float64, error) {
	if err := checkWidth(rows, len(e.features)); err != nil {
		return nil, err
	}
	out := make([]float64, len(rows))
	for i, row := range rows {
		sum := e.baseScore
		for _, t := range e.trees {
			sum += t.leaf(row)
		}
		out[i] = sum
	}
	return out, nil
}
