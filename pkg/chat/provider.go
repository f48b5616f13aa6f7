package chat

import "context"

// Provider is the narrow LLM surface the agent loop consumes.
// Vendor adapters live under pkg/provider.
type Provider interface {
	// Chat sends messages without tool definitions
	Chat(ctx context.Context, messages []ChatMessage, schema *StructuredOutputFormat) (Response, error)

	// ChatWithTools sends messages with the given tool definitions attached
	ChatWithTools(ctx context.Context, messages []ChatMessage, tools []ToolSchema, schema *StructuredOutputFormat) (Response, error)
}

// Response is a single model reply
type Response interface {
	Text() string
	ToolCalls() []ToolCall
}

// FinishReasoner is implemented by responses that expose why generation stopped
type FinishReasoner interface {
	FinishReason() string
}

// FinishToolCalls is the finish reason reported when the model stopped to call tools
const FinishToolCalls = "tool_calls"

// BasicResponse is a plain value Response used by adapters and tests
type BasicResponse struct {
	Content string     `json:"text,omitempty"`
	Calls   []ToolCall `json:"tool_calls,omitempty"`
	Finish  string     `json:"finish_reason,omitempty"`
	Usage   *Usage     `json:"usage,omitempty"`
}

// Usage tracks token consumption reported by the vendor
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Text returns the response text
func (r *BasicResponse) Text() string { return r.Content }

// ToolCalls returns the requested tool calls
func (r *BasicResponse) ToolCalls() []ToolCall { return r.Calls }

// FinishReason returns the vendor finish reason, if any
func (r *BasicResponse) FinishReason() string { return r.Finish }

// ToolSchema is the definition of a tool sent to the model
type ToolSchema struct {
	Type     string         `json:"type"`
	Function FunctionSchema `json:"function"`
}

// FunctionSchema describes a callable function
type FunctionSchema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// StructuredOutputFormat requests a JSON-shaped final answer from the model
type StructuredOutputFormat struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Schema      map[string]interface{} `json:"schema,omitempty"`
	Strict      bool                   `json:"strict,omitempty"`
}
