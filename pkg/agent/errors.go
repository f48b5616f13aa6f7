package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrMaxTurnsExceeded matches *MaxTurnsError
	ErrMaxTurnsExceeded = errors.New("max turns exceeded")
	// ErrAborted is returned when the run context is cancelled
	ErrAborted = errors.New("run aborted")
)

// LLMError wraps a failure of the model call. It ends the run.
type LLMError struct {
	Err error
}

func (e *LLMError) Error() string {
	return fmt.Sprintf("llm error: %v", e.Err)
}

func (e *LLMError) Unwrap() error { return e.Err }

// MaxTurnsError reports that the turn budget ran out before anything was produced
type MaxTurnsError struct {
	MaxTurns int
}

func (e *MaxTurnsError) Error() string {
	return fmt.Sprintf("max turns exceeded: %d", e.MaxTurns)
}

func (e *MaxTurnsError) Is(target error) bool {
	return target == ErrMaxTurnsExceeded
}

// OutputError reports that the final text did not match the expected structure
type OutputError struct {
	Raw string
	Err error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("agent output error: %v", e.Err)
}

func (e *OutputError) Unwrap() error { return e.Err }

// IsLLMError reports whether err came from the model call
func IsLLMError(err error) bool {
	var le *LLMError
	return errors.As(err, &le)
}

// IsOutputError reports whether err is a structured output failure
func IsOutputError(err error) bool {
	var oe *OutputError
	return errors.As(err, &oe)
}

func aborted(cause error) error {
	return fmt.Errorf("%w: %w", ErrAborted, cause)
}
