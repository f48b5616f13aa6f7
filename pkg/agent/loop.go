package agent

import (
	"context"
	"time"

	"github.com/harun/turnkit/internal/observability"
	"github.com/harun/turnkit/internal/tracing"
	"github.com/harun/turnkit/pkg/event"
	"github.com/harun/turnkit/pkg/tool"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// turnFunc runs one turn
type turnFunc func(ctx context.Context) TurnResult[Output]

// drive runs turns until one completes, one fails fatally, or the budget is spent.
// Tool results from every turn are accumulated into the returned Output.
func drive(ctx context.Context, executor string, cfg ExecutorConfig, run *Run, logger zerolog.Logger, turn turnFunc) (Output, error) {
	maxTurns := cfg.maxTurns()

	var (
		accumulated []tool.CallResult
		lastText    string
	)

	for n := 1; n <= maxTurns; n++ {
		if err := ctx.Err(); err != nil {
			logger.Warn().Err(err).Int("turn", n).Msg("Run aborted")
			return Output{}, aborted(err)
		}

		run.emit(event.TurnStarted(n, maxTurns))

		turnCtx, span := tracing.StartSpan(ctx, "turnkit.agent", "agent.turn",
			attribute.String("agent.executor", executor),
			attribute.Int("agent.turn", n),
			attribute.Int("agent.max_turns", maxTurns),
		)
		startTime := time.Now()

		res := turn(turnCtx)

		observability.RecordTurn(executor, string(res.Kind), time.Since(startTime))
		span.SetAttributes(attribute.String("agent.turn_result", string(res.Kind)))

		switch res.Kind {
		case TurnComplete:
			span.End()
			out := *res.Value
			out.ToolCalls = append(accumulated, out.ToolCalls...)
			if out.ToolCalls == nil {
				out.ToolCalls = []tool.CallResult{}
			}
			out.Turns = n
			run.emit(event.TurnCompleted(n, true))
			logger.Debug().Int("turn", n).Int("tool_calls", len(out.ToolCalls)).Msg("Run completed")
			return out, nil

		case TurnContinue:
			span.End()
			if res.Value != nil {
				accumulated = append(accumulated, res.Value.ToolCalls...)
				if res.Value.Response != "" {
					lastText = res.Value.Response
				}
			}
			run.emit(event.TurnCompleted(n, false))

		case TurnError:
			span.SetStatus(codes.Error, res.Message)
			span.End()
			logger.Warn().Int("turn", n).Str("error", res.Message).Msg("Recoverable turn error")
			run.emit(event.TurnCompleted(n, false))

		case TurnFatal:
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
			span.End()
			logger.Error().Err(res.Err).Int("turn", n).Msg("Fatal turn error")
			return Output{}, res.Err
		}
	}

	if lastText != "" || len(accumulated) > 0 {
		logger.Warn().
			Int("max_turns", maxTurns).
			Int("tool_calls", len(accumulated)).
			Msg("Turn budget exhausted, returning partial result")
		return Output{
			Response:        lastText,
			ToolCalls:       accumulated,
			MaxTurnsReached: true,
			Turns:           maxTurns,
		}, nil
	}

	return Output{}, &MaxTurnsError{MaxTurns: maxTurns}
}
