package errs

import (
	"fmt"
	"strings"
)

// InvalidInputError reports a feature table that cannot be used for
// training or inference (no usable columns, malformed shape).
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

// InsufficientDataError reports fewer rows than one sequence window requires.
type InsufficientDataError struct {
	Need int
	Got  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: need at least %d rows, got %d", e.Need, e.Got)
}

// NotFittedError reports a transform requested before fit/load on the scaler.
type NotFittedError struct {
	Op string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("scaler not fitted: %s called before fit or load", e.Op)
}

// NoDataError reports that the upstream provider returned nothing for the
// requested symbols.
type NoDataError struct {
	Symbols []string
}

func (e *NoDataError) Error() string {
	if len(e.Symbols) == 0 {
		return "no data returned by provider"
	}
	return fmt.Sprintf("no data returned for symbols: %s", strings.Join(e.Symbols, ", "))
}

// CheckpointNotFoundError reports an absent checkpoint file.
type CheckpointNotFoundError struct {
	Path string
}

func (e *CheckpointNotFoundError) Error() string {
	return fmt.Sprintf("checkpoint not found: %s", e.Path)
}

// ModelUninitializedError is a warning-level condition: the checkpoint was
// missing at construction time and an untrained model is serving instead.
// Callers detect the degraded mode via model-info metadata; this error is
// surfaced for logging only and never aborts construction.
type ModelUninitializedError struct {
	Path string
}

func (e *ModelUninitializedError) Error() string {
	return fmt.Sprintf("model uninitialized: no checkpoint at %s, using untrained weights", e.Path)
}
