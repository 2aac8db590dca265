package workflow

import (
	"offer-crew/internal/common/errors"
)

// Stage names one step of the pipeline.
type Stage string

const (
	StageSearch      Stage = "search"
	StageScrape      Stage = "scrape"
	StageConsolidate Stage = "consolidate"
	StageAnalyze     Stage = "analyze"
)

// StageError is the failure of one stage, classified by error code.
type StageError struct {
	Stage Stage
	Code  errors.ErrorCode
	Err   *errors.StandardError
}

func newStageError(stage Stage, err *errors.StandardError) *StageError {
	return &StageError{Stage: stage, Code: err.Code, Err: err}
}

// Error renders the message carried to the failure envelope.
func (e *StageError) Error() string {
	if e.Err.Details == "" {
		return e.Err.Message
	}
	return e.Err.Message + ": " + e.Err.Details
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Result is a stage outcome: a value, or a StageError.
type Result[T any] struct {
	Value T
	Err   *StageError
}

func succeed[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

func fail[T any](stage Stage, err *errors.StandardError) Result[T] {
	return Result[T]{Err: newStageError(stage, err)}
}

func (r Result[T]) Failed() bool {
	return r.Err != nil
}
