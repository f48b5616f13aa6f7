package agent

import "fmt"

// TurnKind tags a TurnResult
type TurnKind string

const (
	TurnComplete TurnKind = "complete"
	TurnContinue TurnKind = "continue"
	TurnError    TurnKind = "error"
	TurnFatal    TurnKind = "fatal"
)

// TurnResult is the outcome of one turn.
// Complete carries Value; Continue may carry Value; Error carries Message; Fatal carries Err.
type TurnResult[T any] struct {
	Kind    TurnKind
	Value   *T
	Message string
	Err     error
}

// Complete ends the run with v
func Complete[T any](v T) TurnResult[T] {
	return TurnResult[T]{Kind: TurnComplete, Value: &v}
}

// Continue asks for another turn. partial may be nil.
func Continue[T any](partial *T) TurnResult[T] {
	return TurnResult[T]{Kind: TurnContinue, Value: partial}
}

// Errorf reports a recoverable problem; the loop moves on to the next turn
func Errorf[T any](format string, args ...interface{}) TurnResult[T] {
	return TurnResult[T]{Kind: TurnError, Message: fmt.Sprintf(format, args...)}
}

// Fatal aborts the run with err
func Fatal[T any](err error) TurnResult[T] {
	return TurnResult[T]{Kind: TurnFatal, Err: err}
}

func (r TurnResult[T]) String() string {
	switch r.Kind {
	case TurnError:
		return fmt.Sprintf("error(%s)", r.Message)
	case TurnFatal:
		return fmt.Sprintf("fatal(%v)", r.Err)
	default:
		return string(r.Kind)
	}
}
