package tracing

import (
	"context"

	"github.com/rs/zerolog"
)

// LoggerFromContext adds the tracing fields present in ctx to logger
func LoggerFromContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	fields := logger.With()
	if tc.TraceID != "" {
		fields = fields.Str("trace_id", tc.TraceID)
	}
	if tc.RunID != "" {
		fields = fields.Str("run_id", tc.RunID)
	}
	if tc.AgentID != "" {
		fields = fields.Str("agent_id", tc.AgentID)
	}
	if tc.SessionID != "" {
		fields = fields.Str("session_id", tc.SessionID)
	}
	if tc.SubmissionID != "" {
		fields = fields.Str("submission_id", tc.SubmissionID)
	}

	return fields.Logger()
}

// Detach returns a background context carrying the tracing values of ctx.
// Work that must outlive a request keeps its correlation IDs this way.
func Detach(ctx context.Context) context.Context {
	tc := FromContext(ctx)
	out := context.Background()
	if tc.TraceID != "" {
		out = WithTraceID(out, tc.TraceID)
	}
	if tc.RunID != "" {
		out = WithRunID(out, tc.RunID)
	}
	if tc.AgentID != "" {
		out = WithAgentID(out, tc.AgentID)
	}
	if tc.SessionID != "" {
		out = WithSessionID(out, tc.SessionID)
	}
	if tc.SubmissionID != "" {
		out = WithSubmissionID(out, tc.SubmissionID)
	}
	return out
}
