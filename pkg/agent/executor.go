package agent

import (
	"context"

	"github.com/google/uuid"
	"github.com/harun/turnkit/pkg/chat"
	"github.com/harun/turnkit/pkg/event"
	"github.com/harun/turnkit/pkg/memory"
	"github.com/harun/turnkit/pkg/tool"
	"github.com/rs/zerolog"
)

// DefaultMaxTurns bounds a run when ExecutorConfig.MaxTurns is not set
const DefaultMaxTurns = 10

const defaultSystemPrompt = "You are a helpful assistant."

// ExecutorConfig configures the turn loop
type ExecutorConfig struct {
	MaxTurns int `json:"max_turns" mapstructure:"max_turns"`
}

// DefaultExecutorConfig returns the default loop configuration
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{MaxTurns: DefaultMaxTurns}
}

func (c ExecutorConfig) maxTurns() int {
	if c.MaxTurns <= 0 {
		return DefaultMaxTurns
	}
	return c.MaxTurns
}

// AgentConfig identifies an agent to its executor
type AgentConfig struct {
	ID           uuid.UUID                    `json:"id"`
	Name         string                       `json:"name"`
	Description  string                       `json:"description"`
	OutputSchema *chat.StructuredOutputFormat `json:"output_schema,omitempty"`
}

// SystemPrompt returns the instruction message sent ahead of the conversation
func (c AgentConfig) SystemPrompt() string {
	if c.Description == "" {
		return defaultSystemPrompt
	}
	return c.Description
}

// Run bundles everything one execution needs
type Run struct {
	LLM    chat.Provider
	Memory memory.Provider // optional
	Tools  *tool.Registry
	Agent  AgentConfig
	Task   *Task
	State  *State
	Events event.Sink
	Logger zerolog.Logger
}

// Executor drives a task to an Output
type Executor interface {
	Name() string
	Config() ExecutorConfig
	Execute(ctx context.Context, run Run) (Output, error)
}

func (r *Run) normalize() {
	if r.Events == nil {
		r.Events = event.Discard
	}
	if r.State == nil {
		r.State = NewState()
	}
	if r.Tools == nil {
		r.Tools = tool.NewRegistry()
	}
}

// emit sends without caring whether the observer kept up
func (r *Run) emit(e event.Event) {
	_ = r.Events.Send(e)
}
