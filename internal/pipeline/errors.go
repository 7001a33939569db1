package pipeline

import (
	"errors"
	"fmt"

	"github.com/handiism/tubealbum/internal/model"
)

var (
	// ErrCancelled marks items that never started because the run was cancelled.
	ErrCancelled = errors.New("cancelled before start")

	// ErrEmptyTitle is returned when nothing usable is left of a title after
	// sanitization.
	ErrEmptyTitle = errors.New("empty title")
)

// ConfigError reports an invalid setting. It is fatal and raised before any
// work starts.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ExtractionError reports that the playlist could not be turned into items.
// It is fatal to the whole run.
type ExtractionError struct {
	URL string
	Err error
}

func (e *ExtractionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("extract %s: failed", e.URL)
	}
	return fmt.Sprintf("extract %s: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// StageError scopes a failure to one pipeline stage of one item. It only ever
// travels inside an ItemOutcome.
type StageError struct {
	Stage model.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StageOf returns the stage recorded in err, if any.
func StageOf(err error) (model.Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

// IsFatal reports whether err must abort the whole run.
func IsFatal(err error) bool {
	var ce *ConfigError
	var ee *ExtractionError
	return errors.As(err, &ce) || errors.As(err, &ee)
}

// failed builds a failed outcome for ref.
func failed(ref model.ItemRef, stage model.Stage, err error) model.ItemOutcome {
	return model.ItemOutcome{
		Ref:    ref,
		Status: model.StatusFailed,
		Stage:  stage,
		Err:    &StageError{Stage: stage, Err: err},
	}
}

// Cancelled returns the outcome for an item dequeued after cancellation.
func Cancelled(ref model.ItemRef, cause error) model.ItemOutcome {
	err := ErrCancelled
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrCancelled, cause)
	}
	return failed(ref, model.StageCancelled, err)
}
