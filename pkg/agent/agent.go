package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harun/turnkit/internal/observability"
	"github.com/harun/turnkit/internal/tracing"
	"github.com/harun/turnkit/pkg/chat"
	"github.com/harun/turnkit/pkg/event"
	"github.com/harun/turnkit/pkg/memory"
	"github.com/harun/turnkit/pkg/tool"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Config holds agent configuration
type Config struct {
	ID           uuid.UUID // generated when zero
	Name         string
	Description  string
	OutputSchema *chat.StructuredOutputFormat
	Executor     Executor // defaults to a ReActExecutor
	Tools        []tool.Tool
	Memory       memory.Provider
	Logger       zerolog.Logger
}

// Agent binds an identity, tools, memory and an executor
type Agent struct {
	config   AgentConfig
	executor Executor
	tools    *tool.Registry
	memory   memory.Provider
	state    *State
	logger   zerolog.Logger
}

// RunResult is the caller-facing outcome of Agent.Run
type RunResult struct {
	Success      bool                   `json:"success"`
	Output       *Output                `json:"output,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// New creates an agent
func New(cfg Config) (*Agent, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("agent name is required")
	}

	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	if cfg.Executor == nil {
		cfg.Executor = NewReActExecutor(DefaultExecutorConfig())
	}

	return &Agent{
		config: AgentConfig{
			ID:           cfg.ID,
			Name:         cfg.Name,
			Description:  cfg.Description,
			OutputSchema: cfg.OutputSchema,
		},
		executor: cfg.Executor,
		tools:    tool.NewRegistry(cfg.Tools...),
		memory:   cfg.Memory,
		state:    NewState(),
		logger:   cfg.Logger.With().Str("agent", cfg.Name).Logger(),
	}, nil
}

func (a *Agent) ID() uuid.UUID { return a.config.ID }
func (a *Agent) Name() string { return a.config.Name }
func (a *Agent) Description() string { return a.config.Description }
func (a *Agent) Config() AgentConfig { return a.config }
func (a *Agent) Executor() Executor { return a.executor }
func (a *Agent) Tools() *tool.Registry { return a.tools }
func (a *Agent) Memory() memory.Provider { return a.memory }
func (a *Agent) State() *State { return a.state }

// Run executes task and reports the outcome to sink.
// The returned error is the executor error or an *OutputError.
func (a *Agent) Run(ctx context.Context, llm chat.Provider, task *Task, sink event.Sink) (RunResult, error) {
	if task == nil {
		return RunResult{}, fmt.Errorf("task is required")
	}
	if sink == nil {
		sink = event.Discard
	}

	startTime := time.Now()
	ctx = tracing.NewAgentRunContext(ctx, a.config.ID.String())
	ctx = tracing.WithSubmissionID(ctx, task.SubmissionID.String())

	ctx, span := tracing.StartSpan(ctx, "turnkit.agent", "agent.run",
		attribute.String("agent.name", a.config.Name),
		attribute.String("agent.executor", a.executor.Name()),
		attribute.String("task.submission_id", task.SubmissionID.String()),
	)
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, a.logger)

	agentID := a.config.ID
	task.AgentID = &agentID
	a.state.RecordTask(*task)

	logger.Info().Int("prompt_length", len(task.Prompt)).Msg("Starting agent run")

	out, err := a.executor.Execute(ctx, Run{
		LLM:    llm,
		Memory: a.memory,
		Tools:  a.tools,
		Agent:  a.config,
		Task:   task,
		State:  a.state,
		Events: sink,
		Logger: a.logger,
	})

	var result event.TaskResult
	if err == nil {
		result, err = a.taskResult(out)
	} else if errors.Is(err, ErrAborted) {
		result = event.Aborted()
	} else {
		result = event.Failure(err.Error())
	}

	task.Finish(result)
	a.state.UpdateTask(*task)

	duration := time.Since(startTime)
	metadata := map[string]interface{}{
		"executor":      a.executor.Name(),
		"agent_id":      agentID.String(),
		"submission_id": task.SubmissionID.String(),
		"duration_ms":   duration.Milliseconds(),
	}

	taskStatus := "success"
	if err != nil {
		taskStatus = "failure"
		if result.Kind == event.ResultAborted {
			taskStatus = "aborted"
		}
	}
	observability.RecordTask(a.executor.Name(), taskStatus, duration)

	if err != nil {
		_ = sink.Send(event.TaskError(task.SubmissionID.String(), result))

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error().Err(err).Dur("duration", duration).Msg("Agent run failed")

		res := RunResult{Success: false, ErrorMessage: err.Error(), Metadata: metadata}
		if IsOutputError(err) {
			res.Output = &out
		}
		return res, err
	}

	_ = sink.Send(event.TaskComplete(task.SubmissionID.String(), result))

	metadata["turns"] = out.Turns
	metadata["max_turns_reached"] = out.MaxTurnsReached
	span.SetAttributes(
		attribute.Int("agent.turns", out.Turns),
		attribute.Int("agent.tool_calls", len(out.ToolCalls)),
	)
	logger.Info().
		Dur("duration", duration).
		Int("turns", out.Turns).
		Int("tool_calls", len(out.ToolCalls)).
		Bool("max_turns_reached", out.MaxTurnsReached).
		Msg("Agent run completed")

	return RunResult{Success: true, Output: &out, Metadata: metadata}, nil
}

func (a *Agent) taskResult(out Output) (event.TaskResult, error) {
	if a.config.OutputSchema == nil || len(a.config.OutputSchema.Schema) == 0 {
		return event.Success(out.Response), nil
	}

	v, err := ExtractOutput[interface{}](out, a.config.OutputSchema)
	if err != nil {
		return event.Failure(err.Error()), err
	}
	return event.Value(v), nil
}
