package event

import (
	"github.com/rs/zerolog"
)

// LogSink writes each event as a structured log line
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(e Event) error {
	var entry *zerolog.Event
	switch e.Type {
	case TypeTaskError, TypeToolCallFailed:
		entry = s.logger.Warn()
	case TypeTurnStarted, TypeTurnCompleted:
		entry = s.logger.Debug()
	default:
		entry = s.logger.Info()
	}

	entry = entry.Str("event", string(e.Type))

	switch e.Type {
	case TypeNewTask, TypeTaskStarted:
		entry = entry.Str("sub_id", e.SubmissionID).Str("agent_id", e.AgentID)
	case TypeTaskComplete, TypeTaskError:
		entry = entry.Str("sub_id", e.SubmissionID)
		if e.TaskResult != nil {
			entry = entry.Str("result_kind", string(e.TaskResult.Kind))
			if e.TaskResult.Error != "" {
				entry = entry.Str("error", e.TaskResult.Error)
			}
		}
	case TypeTurnStarted:
		entry = entry.Int("turn", e.TurnNumber).Int("max_turns", e.MaxTurns)
	case TypeTurnCompleted:
		entry = entry.Int("turn", e.TurnNumber).Bool("final", e.FinalTurn)
	case TypeToolCallRequested:
		entry = entry.Str("call_id", e.CallID).Str("tool", e.ToolName)
	case TypeToolCallCompleted:
		entry = entry.Str("call_id", e.CallID).Str("tool", e.ToolName).RawJSON("result", nonEmptyJSON(e.Result))
	case TypeToolCallFailed:
		entry = entry.Str("call_id", e.CallID).Str("tool", e.ToolName).Str("error", e.Error)
	}

	entry.Msg("Agent event")
	return nil
}

func nonEmptyJSON(raw []byte) []byte {
	if len(raw) == 0 {
		return []byte("null")
	}
	return raw
}
