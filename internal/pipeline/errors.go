package pipeline

import "errors"

var (
	// ErrSkip ends an evaluation early without failing it. The step that
	// returns it records the reason with Evaluation.Skip.
	ErrSkip = errors.New("evaluation skipped")

	// ErrPanic wraps a panic recovered while evaluating one session.
	ErrPanic = errors.New("evaluation panicked")
)
