package agent

import (
	"context"
	"fmt"

	"github.com/harun/turnkit/internal/tracing"
	"github.com/harun/turnkit/pkg/chat"
	"github.com/harun/turnkit/pkg/event"
)

// ReActExecutor reasons over the full memory each turn.
// Without memory it falls back to the run's conversation buffer.
type ReActExecutor struct {
	config ExecutorConfig
}

// NewReActExecutor creates a ReAct executor
func NewReActExecutor(cfg ExecutorConfig) *ReActExecutor {
	return &ReActExecutor{config: cfg}
}

// Name returns "react"
func (e *ReActExecutor) Name() string { return "react" }

// Config returns the executor settings
func (e *ReActExecutor) Config() ExecutorConfig { return e.config }

// Execute drives run to completion, recalling memory every turn
func (e *ReActExecutor) Execute(ctx context.Context, run Run) (Output, error) {
	return execute(ctx, e.Name(), e.config, run, true)
}

// DefaultExecutor keeps context in a run-local buffer seeded from prior state.
// Memory, when attached, is written through but never read back.
type DefaultExecutor struct {
	config ExecutorConfig
}

// NewDefaultExecutor creates a default executor
func NewDefaultExecutor(cfg ExecutorConfig) *DefaultExecutor {
	return &DefaultExecutor{config: cfg}
}

// Name returns "default"
func (e *DefaultExecutor) Name() string { return "default" }

// Config returns the executor settings
func (e *DefaultExecutor) Config() ExecutorConfig { return e.config }

// Execute drives run to completion over the run-local buffer
func (e *DefaultExecutor) Execute(ctx context.Context, run Run) (Output, error) {
	return execute(ctx, e.Name(), e.config, run, false)
}

// NewExecutor returns the executor registered under name
func NewExecutor(name string, cfg ExecutorConfig) (Executor, error) {
	switch name {
	case "", "react":
		return NewReActExecutor(cfg), nil
	case "default":
		return NewDefaultExecutor(cfg), nil
	default:
		return nil, fmt.Errorf("unknown executor %q", name)
	}
}

func execute(ctx context.Context, name string, cfg ExecutorConfig, run Run, recall bool) (Output, error) {
	if run.LLM == nil {
		return Output{}, fmt.Errorf("llm provider is required")
	}
	if run.Task == nil {
		return Output{}, fmt.Errorf("task is required")
	}
	run.normalize()

	logger := tracing.LoggerFromContext(ctx, run.Logger).With().Str("executor", name).Logger()

	conv := NewConversation(run.State.Messages()...)
	start := conv.Len()
	defer func() {
		for _, msg := range conv.Since(start) {
			run.State.RecordConversation(msg)
		}
	}()

	engine := newTurnEngine(&run, conv, recall, logger)
	engine.append(ctx, chat.Text(chat.RoleUser, run.Task.Prompt))

	run.emit(event.TaskStarted(run.Task.SubmissionID.String(), run.Agent.ID.String(), run.Task.Prompt))

	logger.Debug().
		Int("max_turns", cfg.maxTurns()).
		Int("tools", run.Tools.Len()).
		Bool("memory", run.Memory != nil).
		Msg("Executing task")

	return drive(ctx, name, cfg, &run, logger, engine.processTurn)
}
