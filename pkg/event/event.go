package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type is the wire name of an event
type Type string

const (
	TypeNewTask           Type = "new_task"
	TypeTaskStarted       Type = "task_started"
	TypeTaskComplete      Type = "task_complete"
	TypeTaskError         Type = "task_error"
	TypeTurnStarted       Type = "turn_started"
	TypeTurnCompleted     Type = "turn_completed"
	TypeToolCallRequested Type = "tool_call_requested"
	TypeToolCallCompleted Type = "tool_call_completed"
	TypeToolCallFailed    Type = "tool_call_failed"
)

var knownTypes = map[Type]bool{
	TypeNewTask: true, TypeTaskStarted: true, TypeTaskComplete: true, TypeTaskError: true,
	TypeTurnStarted: true, TypeTurnCompleted: true,
	TypeToolCallRequested: true, TypeToolCallCompleted: true, TypeToolCallFailed: true,
}

// ResultKind classifies a task outcome
type ResultKind string

const (
	ResultSuccess ResultKind = "success"
	ResultValue   ResultKind = "value"
	ResultFailure ResultKind = "failure"
	ResultAborted ResultKind = "aborted"
)

// TaskResult is the terminal outcome reported with task events
type TaskResult struct {
	Kind  ResultKind      `json:"kind"`
	Value json.RawMessage `json:"value,omitempty"`
	Error string          `json:"error,omitempty"`
}

// Success reports a plain text result
func Success(text string) TaskResult {
	raw, _ := json.Marshal(text)
	return TaskResult{Kind: ResultSuccess, Value: raw}
}

// Value reports a structured result
func Value(v interface{}) TaskResult {
	raw, err := json.Marshal(v)
	if err != nil {
		return Failure(fmt.Sprintf("failed to encode result: %v", err))
	}
	return TaskResult{Kind: ResultValue, Value: raw}
}

// Failure reports an error result
func Failure(msg string) TaskResult {
	return TaskResult{Kind: ResultFailure, Error: msg}
}

// Aborted reports a cancelled task
func Aborted() TaskResult {
	return TaskResult{Kind: ResultAborted}
}

// Event is one lifecycle notification. Only the fields of its Type are meaningful.
type Event struct {
	Type      Type
	Timestamp time.Time

	SubmissionID    string
	AgentID         string
	Prompt          string
	TaskDescription string
	TaskResult      *TaskResult

	TurnNumber int
	MaxTurns   int
	FinalTurn  bool

	CallID    string
	ToolName  string
	Arguments string
	Result    json.RawMessage
	Error     string
}

func NewTask(subID, agentID, prompt string) Event {
	return stamp(Event{Type: TypeNewTask, SubmissionID: subID, AgentID: agentID, Prompt: prompt})
}

func TaskStarted(subID, agentID, description string) Event {
	return stamp(Event{Type: TypeTaskStarted, SubmissionID: subID, AgentID: agentID, TaskDescription: description})
}

func TaskComplete(subID string, result TaskResult) Event {
	return stamp(Event{Type: TypeTaskComplete, SubmissionID: subID, TaskResult: &result})
}

func TaskError(subID string, result TaskResult) Event {
	return stamp(Event{Type: TypeTaskError, SubmissionID: subID, TaskResult: &result})
}

func TurnStarted(turn, maxTurns int) Event {
	return stamp(Event{Type: TypeTurnStarted, TurnNumber: turn, MaxTurns: maxTurns})
}

func TurnCompleted(turn int, final bool) Event {
	return stamp(Event{Type: TypeTurnCompleted, TurnNumber: turn, FinalTurn: final})
}

func ToolCallRequested(id, name, arguments string) Event {
	return stamp(Event{Type: TypeToolCallRequested, CallID: id, ToolName: name, Arguments: arguments})
}

// ToolCallCompleted carries the JSON result of a successful call
func ToolCallCompleted(id, name string, result interface{}) Event {
	raw, err := json.Marshal(result)
	if err != nil {
		raw, _ = json.Marshal(fmt.Sprintf("%v", result))
	}
	return stamp(Event{Type: TypeToolCallCompleted, CallID: id, ToolName: name, Result: raw})
}

func ToolCallFailed(id, name, errMsg string) Event {
	return stamp(Event{Type: TypeToolCallFailed, CallID: id, ToolName: name, Error: errMsg})
}

func stamp(e Event) Event {
	e.Timestamp = time.Now().UTC()
	return e
}

// MarshalJSON writes only the fields that belong to the event type
func (e Event) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"type":      e.Type,
		"timestamp": e.Timestamp,
	}

	switch e.Type {
	case TypeNewTask:
		out["sub_id"] = e.SubmissionID
		out["agent_id"] = e.AgentID
		out["prompt"] = e.Prompt
	case TypeTaskStarted:
		out["sub_id"] = e.SubmissionID
		out["agent_id"] = e.AgentID
		out["task_description"] = e.TaskDescription
	case TypeTaskComplete, TypeTaskError:
		out["sub_id"] = e.SubmissionID
		out["result"] = e.TaskResult
	case TypeTurnStarted:
		out["turn_number"] = e.TurnNumber
		out["max_turns"] = e.MaxTurns
	case TypeTurnCompleted:
		out["turn_number"] = e.TurnNumber
		out["final_turn"] = e.FinalTurn
	case TypeToolCallRequested:
		out["id"] = e.CallID
		out["tool_name"] = e.ToolName
		out["arguments"] = e.Arguments
	case TypeToolCallCompleted:
		out["id"] = e.CallID
		out["tool_name"] = e.ToolName
		out["result"] = e.Result
	case TypeToolCallFailed:
		out["id"] = e.CallID
		out["tool_name"] = e.ToolName
		out["error"] = e.Error
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}

	return json.Marshal(out)
}

type wireEvent struct {
	Type            Type            `json:"type"`
	Timestamp       time.Time       `json:"timestamp"`
	SubmissionID    string          `json:"sub_id"`
	AgentID         string          `json:"agent_id"`
	Prompt          string          `json:"prompt"`
	TaskDescription string          `json:"task_description"`
	TurnNumber      int             `json:"turn_number"`
	MaxTurns        int             `json:"max_turns"`
	FinalTurn       bool            `json:"final_turn"`
	CallID          string          `json:"id"`
	ToolName        string          `json:"tool_name"`
	Arguments       string          `json:"arguments"`
	Result          json.RawMessage `json:"result"`
	Error           string          `json:"error"`
}

// UnmarshalJSON decodes the form written by MarshalJSON
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if !knownTypes[w.Type] {
		return fmt.Errorf("unknown event type %q", w.Type)
	}

	*e = Event{
		Type:            w.Type,
		Timestamp:       w.Timestamp,
		SubmissionID:    w.SubmissionID,
		AgentID:         w.AgentID,
		Prompt:          w.Prompt,
		TaskDescription: w.TaskDescription,
		TurnNumber:      w.TurnNumber,
		MaxTurns:        w.MaxTurns,
		FinalTurn:       w.FinalTurn,
		CallID:          w.CallID,
		ToolName:        w.ToolName,
		Arguments:       w.Arguments,
		Error:           w.Error,
	}

	switch w.Type {
	case TypeTaskComplete, TypeTaskError:
		if len(w.Result) > 0 && string(w.Result) != "null" {
			var tr TaskResult
			if err := json.Unmarshal(w.Result, &tr); err != nil {
				return fmt.Errorf("invalid task result: %w", err)
			}
			e.TaskResult = &tr
		}
	case TypeToolCallCompleted:
		e.Result = w.Result
	}

	return nil
}
