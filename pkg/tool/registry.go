package tool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/harun/turnkit/internal/observability"
	"github.com/harun/turnkit/internal/tracing"
	"github.com/harun/turnkit/pkg/chat"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Registry holds tools in registration order
type Registry struct {
	mu    sync.RWMutex
	tools []Tool
}

// NewRegistry creates a registry with the given tools
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register appends a tool. A duplicate name is kept but shadowed by the earlier tool.
func (r *Registry) Register(t Tool) {
	if t == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.tools {
		if existing.Name() == t.Name() {
			log.Warn().Str("tool", t.Name()).Msg("Duplicate tool name, first registration wins")
			break
		}
	}
	r.tools = append(r.tools, t)

	log.Debug().Str("tool", t.Name()).Msg("Tool registered")
}

// Find returns the first tool with the given name
func (r *Registry) Find(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.tools {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

// Tools returns a snapshot of registered tools
func (r *Registry) Tools() []Tool {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]Tool(nil), r.tools...)
}

// Names returns tool names in registration order
func (r *Registry) Names() []string {
	tools := r.Tools()
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name())
	}
	return names
}

// Len returns the number of registered tools
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tools)
}

// Schemas derives the model-facing definitions of every tool
func (r *Registry) Schemas() []chat.ToolSchema {
	tools := r.Tools()
	schemas := make([]chat.ToolSchema, 0, len(tools))
	for _, t := range tools {
		schemas = append(schemas, SchemaOf(t))
	}
	return schemas
}

// SchemaOf builds the model-facing definition of a tool
func SchemaOf(t Tool) chat.ToolSchema {
	params := t.ArgsSchema()
	if params == nil {
		params = map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
	}
	return chat.ToolSchema{
		Type: chat.ToolCallType,
		Function: chat.FunctionSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  params,
		},
	}
}

// Execute resolves and runs a single tool call
func (r *Registry) Execute(ctx context.Context, call chat.ToolCall) CallResult {
	name := call.Function.Name
	startTime := time.Now()

	ctx, span := tracing.StartSpan(ctx, "turnkit.tool", "tool.execute",
		attribute.String("tool.name", name),
		attribute.String("tool.call_id", call.ID),
	)
	defer span.End()

	result := r.resolve(ctx, call)

	duration := time.Since(startTime)
	observability.RecordToolExecution(name, duration, result.Success)
	span.SetAttributes(attribute.Bool("tool.success", result.Success))
	if !result.Success {
		span.SetStatus(codes.Error, result.ErrorMessage())
	}

	return result
}

// ExecuteAll runs calls sequentially and returns one result per call in order
func (r *Registry) ExecuteAll(ctx context.Context, calls []chat.ToolCall) []CallResult {
	results := make([]CallResult, 0, len(calls))
	for _, call := range calls {
		results = append(results, r.Execute(ctx, call))
	}
	return results
}

func (r *Registry) resolve(ctx context.Context, call chat.ToolCall) (result CallResult) {
	name := call.Function.Name

	t, ok := r.Find(name)
	if !ok {
		log.Error().Str("tool", name).Msg("Tool not found")
		requested, _ := call.DecodeArguments()
		return failure(name, requested, fmt.Sprintf("Tool '%s' not found", name))
	}

	args, err := call.DecodeArguments()
	if err != nil {
		log.Error().Str("tool", name).Err(err).Msg("Failed to parse tool arguments")
		return failure(name, call.Function.Arguments, fmt.Sprintf("Failed to parse arguments: %v", err))
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("tool", name).Interface("panic", rec).Msg("Tool panicked")
			result = failure(name, args, fmt.Sprintf("tool panicked: %v", rec))
		}
	}()

	output, err := t.Run(ctx, args)
	if err != nil {
		log.Error().Str("tool", name).Err(err).Msg("Tool execution failed")
		return failure(name, args, err.Error())
	}

	log.Debug().Str("tool", name).Msg("Tool execution completed")

	return CallResult{
		ToolName:  name,
		Success:   true,
		Arguments: args,
		Result:    output,
	}
}
