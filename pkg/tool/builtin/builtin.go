// Package builtin provides small tools used by the CLI and tests.
package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/harun/turnkit/pkg/tool"
)

// Addition adds two numbers
func Addition() tool.Tool {
	return tool.MustNew(tool.Definition{
		Name:        "Addition",
		Description: "Adds two numbers and returns the sum.",
		Parameters: []tool.Parameter{
			{Name: "left", Type: "number", Description: "Left operand", Required: true},
			{Name: "right", Type: "number", Description: "Right operand", Required: true},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			left, err := number(params, "left")
			if err != nil {
				return nil, err
			}
			right, err := number(params, "right")
			if err != nil {
				return nil, err
			}
			return left + right, nil
		},
	})
}

// Echo returns its input text
func Echo() tool.Tool {
	return tool.MustNew(tool.Definition{
		Name:        "Echo",
		Description: "Returns the given text unchanged.",
		Parameters: []tool.Parameter{
			{Name: "text", Type: "string", Description: "Text to echo", Required: true},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			text, _ := params["text"].(string)
			return text, nil
		},
	})
}

// CurrentTime reports the current time, optionally in a named location
func CurrentTime() tool.Tool {
	return tool.MustNew(tool.Definition{
		Name:        "CurrentTime",
		Description: "Returns the current time in RFC3339 format.",
		Parameters: []tool.Parameter{
			{Name: "timezone", Type: "string", Description: "IANA time zone name", Default: "UTC"},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			name, _ := params["timezone"].(string)
			loc, err := time.LoadLocation(name)
			if err != nil {
				return nil, fmt.Errorf("unknown timezone %q", name)
			}
			return time.Now().In(loc).Format(time.RFC3339), nil
		},
	})
}

// All returns every builtin tool
func All() []tool.Tool {
	return []tool.Tool{Addition(), Echo(), CurrentTime()}
}

func number(params map[string]interface{}, key string) (float64, error) {
	switch v := params[key].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%s must be a number", key)
	}
}
