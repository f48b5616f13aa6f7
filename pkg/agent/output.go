package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/harun/turnkit/pkg/chat"
	"github.com/harun/turnkit/pkg/tool"
	"github.com/xeipuuv/gojsonschema"
)

// Output is the aggregated result of a run
type Output struct {
	Response        string            `json:"response"`
	ToolCalls       []tool.CallResult `json:"tool_calls"`
	MaxTurnsReached bool              `json:"max_turns_reached,omitempty"`
	Turns           int               `json:"turns"`
}

// ExtractOutput decodes the final text into T.
// With a schema the text must be JSON that validates against it.
// A string T without a schema receives the text unchanged.
func ExtractOutput[T any](out Output, format *chat.StructuredOutputFormat) (T, error) {
	var v T
	raw := stripCodeFence(out.Response)

	if format != nil && len(format.Schema) > 0 {
		if err := validateAgainst(format.Schema, raw); err != nil {
			return v, &OutputError{Raw: out.Response, Err: err}
		}
	} else if s, ok := any(&v).(*string); ok {
		*s = out.Response
		return v, nil
	}

	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return v, &OutputError{Raw: out.Response, Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	return v, nil
}

func validateAgainst(schema map[string]interface{}, raw string) error {
	if !json.Valid([]byte(raw)) {
		return errors.New("response is not valid JSON")
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewStringLoader(raw))
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return fmt.Errorf("validation errors: %v", errs)
	}
	return nil
}

// stripCodeFence removes a surrounding Markdown code fence
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
