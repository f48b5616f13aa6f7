package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Tool is a capability the model can invoke
type Tool interface {
	Name() string
	Description() string

	// ArgsSchema returns the JSON schema of the arguments object
	ArgsSchema() map[string]interface{}

	// Run executes the tool synchronously
	Run(ctx context.Context, args interface{}) (interface{}, error)
}

// ErrorKind classifies tool failures
type ErrorKind string

const (
	ErrorKindRuntime ErrorKind = "runtime"
	ErrorKindSerde   ErrorKind = "serde"
)

// Error is returned by tools that fail
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Kind == ErrorKindSerde {
		return fmt.Sprintf("serialization error: %v", e.Err)
	}
	return fmt.Sprintf("runtime error: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Runtime wraps err as a runtime tool error
func Runtime(err error) error {
	return &Error{Kind: ErrorKindRuntime, Err: err}
}

// Serde wraps err as an argument or result encoding error
func Serde(err error) error {
	return &Error{Kind: ErrorKindSerde, Err: err}
}

// IsSerde reports whether err is a serde tool error
func IsSerde(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == ErrorKindSerde
}

// CallResult is the outcome of resolving one tool call
type CallResult struct {
	ToolName  string      `json:"tool_name"`
	Success   bool        `json:"success"`
	Arguments interface{} `json:"arguments"`
	Result    interface{} `json:"result"`
}

// ResultText renders the result for the conversation.
// String results are used as-is, everything else is JSON encoded.
func (r CallResult) ResultText() string {
	if s, ok := r.Result.(string); ok && r.Success {
		return s
	}
	data, err := json.Marshal(r.Result)
	if err != nil {
		return fmt.Sprintf("%v", r.Result)
	}
	return string(data)
}

// ErrorMessage returns the error payload of a failed result
func (r CallResult) ErrorMessage() string {
	if r.Success {
		return ""
	}
	if m, ok := r.Result.(map[string]interface{}); ok {
		if msg, ok := m["error"].(string); ok {
			return msg
		}
	}
	return r.ResultText()
}

func failure(name string, args interface{}, msg string) CallResult {
	return CallResult{
		ToolName:  name,
		Success:   false,
		Arguments: args,
		Result:    map[string]interface{}{"error": msg},
	}
}
