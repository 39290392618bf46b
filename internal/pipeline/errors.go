package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures by stage.
type Kind string

const (
	// KindInput covers malformed or out-of-range requests.
	KindInput Kind = "input"
	// KindSchema covers feature layouts that do not match the model.
	KindSchema Kind = "schema"
	// KindInference covers model loading and prediction failures.
	KindInference Kind = "inference"
	// KindOptimization covers bounds and solver failures. These surface as a
	// failed Response, not as an error, except when the engine is misconfigured.
	KindOptimization Kind = "optimization"
)

// Error is a stage-tagged pipeline failure.
type Error struct {
	Kind     Kind
	Op       string
	Err      error
	Expected []string
	Received []string
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of a pipeline error anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}
