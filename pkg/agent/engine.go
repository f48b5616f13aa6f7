package agent

import (
	"context"
	"errors"
	"time"

	"github.com/harun/turnkit/internal/observability"
	"github.com/harun/turnkit/internal/tracing"
	"github.com/harun/turnkit/pkg/chat"
	"github.com/harun/turnkit/pkg/event"
	"github.com/harun/turnkit/pkg/tool"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// turnEngine processes single turns for one run
type turnEngine struct {
	run    *Run
	conv   *Conversation
	recall bool
	logger zerolog.Logger
}

func newTurnEngine(run *Run, conv *Conversation, recall bool, logger zerolog.Logger) *turnEngine {
	return &turnEngine{run: run, conv: conv, recall: recall && run.Memory != nil, logger: logger}
}

// processTurn performs one model exchange and resolves any tool calls it requests
func (e *turnEngine) processTurn(ctx context.Context) TurnResult[Output] {
	messages, err := e.context(ctx)
	if err != nil {
		return Errorf[Output]("memory recall failed: %v", err)
	}

	resp, err := e.callLLM(ctx, messages)
	if err != nil {
		return Fatal[Output](err)
	}

	text := resp.Text()
	calls := resp.ToolCalls()

	if len(calls) == 0 {
		if fr, ok := resp.(chat.FinishReasoner); ok && fr.FinishReason() == chat.FinishToolCalls {
			return Fatal[Output](&LLMError{Err: errors.New("response signalled tool calls but carried none")})
		}

		if text != "" {
			e.append(ctx, chat.Text(chat.RoleAssistant, text))
		}
		return Complete(Output{Response: text, ToolCalls: []tool.CallResult{}})
	}

	e.append(ctx, chat.ToolUse(text, calls))

	results := make([]tool.CallResult, 0, len(calls))
	resultCalls := make([]chat.ToolCall, 0, len(calls))

	for _, call := range calls {
		e.run.emit(event.ToolCallRequested(call.ID, call.Function.Name, call.Function.Arguments))

		res := e.run.Tools.Execute(ctx, call)

		if res.Success {
			e.run.emit(event.ToolCallCompleted(call.ID, res.ToolName, res.Result))
		} else {
			e.run.emit(event.ToolCallFailed(call.ID, res.ToolName, res.ErrorMessage()))
		}

		e.logger.Debug().
			Str("tool", res.ToolName).
			Str("call_id", call.ID).
			Bool("success", res.Success).
			Msg("Tool call resolved")

		results = append(results, res)
		resultCalls = append(resultCalls, chat.ToolCall{
			ID:   call.ID,
			Type: call.Type,
			Function: chat.FunctionCall{
				Name:      call.Function.Name,
				Arguments: res.ResultText(),
			},
		})
	}

	e.append(ctx, chat.ToolResult(resultCalls))

	for _, res := range results {
		e.run.State.RecordToolCall(res)
	}

	return Continue(&Output{Response: text, ToolCalls: results})
}

// context assembles the messages sent to the model, always led by a system message
func (e *turnEngine) context(ctx context.Context) ([]chat.ChatMessage, error) {
	var messages []chat.ChatMessage
	if e.recall {
		recalled, err := e.run.Memory.Recall(ctx, "", 0)
		if err != nil {
			return nil, err
		}
		messages = recalled
	} else {
		messages = e.conv.Messages()
	}

	if len(messages) == 0 || messages[0].Role != chat.RoleSystem {
		system := chat.Text(chat.RoleSystem, e.run.Agent.SystemPrompt())
		messages = append([]chat.ChatMessage{system}, messages...)
	}
	return messages, nil
}

func (e *turnEngine) callLLM(ctx context.Context, messages []chat.ChatMessage) (chat.Response, error) {
	ctx, span := tracing.StartSpan(ctx, "turnkit.agent", "llm.call",
		attribute.Int("llm.messages", len(messages)),
		attribute.Int("llm.tools", e.run.Tools.Len()),
	)
	defer span.End()

	startTime := time.Now()
	schema := e.run.Agent.OutputSchema

	var (
		resp chat.Response
		err  error
	)
	if e.run.Tools.Len() > 0 {
		resp, err = e.run.LLM.ChatWithTools(ctx, messages, e.run.Tools.Schemas(), schema)
	} else {
		resp, err = e.run.LLM.Chat(ctx, messages, schema)
	}
	if err == nil && resp == nil {
		err = errors.New("provider returned no response")
	}

	observability.RecordLLMCall(time.Since(startTime), err == nil)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Error().Err(err).Msg("LLM call failed")
		return nil, &LLMError{Err: err}
	}

	span.SetAttributes(attribute.Int("llm.tool_calls", len(resp.ToolCalls())))
	return resp, nil
}

// append records msg in the run buffer and, when attached, in memory
func (e *turnEngine) append(ctx context.Context, msg chat.ChatMessage) {
	e.conv.Append(msg)
	if e.run.Memory == nil {
		return
	}
	if err := e.run.Memory.Remember(ctx, msg); err != nil {
		e.logger.Warn().Err(err).Str("kind", string(msg.Kind)).Msg("Failed to store message in memory")
	}
}
