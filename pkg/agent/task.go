package agent

import (
	"github.com/google/uuid"
	"github.com/harun/turnkit/pkg/event"
)

// Task is a unit of work submitted to an agent
type Task struct {
	Prompt       string            `json:"prompt"`
	SubmissionID uuid.UUID         `json:"submission_id"`
	Completed    bool              `json:"completed"`
	Result       *event.TaskResult `json:"result,omitempty"`
	AgentID      *uuid.UUID        `json:"agent_id,omitempty"`
}

// NewTask creates a task with a fresh submission ID
func NewTask(prompt string) *Task {
	return &Task{
		Prompt:       prompt,
		SubmissionID: uuid.New(),
	}
}

// Finish marks the task terminal with result
func (t *Task) Finish(result event.TaskResult) {
	t.Completed = true
	t.Result = &result
}
