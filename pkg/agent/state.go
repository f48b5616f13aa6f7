package agent

import (
	"sync"

	"github.com/harun/turnkit/pkg/chat"
	"github.com/harun/turnkit/pkg/tool"
)

// History is the snapshot form of State
type History struct {
	Messages  []chat.ChatMessage `json:"messages"`
	ToolCalls []tool.CallResult  `json:"tool_calls"`
	Tasks     []Task             `json:"tasks"`
}

// State is the agent's cumulative record across runs
type State struct {
	mu      sync.RWMutex
	history History
}

func NewState() *State {
	return &State{}
}

// RecordConversation appends a message to the conversation history
func (s *State) RecordConversation(msg chat.ChatMessage) {
	s.mu.Lock()
	s.history.Messages = append(s.history.Messages, msg.Clone())
	s.mu.Unlock()
}

// RecordToolCall appends a tool result
func (s *State) RecordToolCall(res tool.CallResult) {
	s.mu.Lock()
	s.history.ToolCalls = append(s.history.ToolCalls, res)
	s.mu.Unlock()
}

// RecordTask stores a copy of task
func (s *State) RecordTask(task Task) {
	s.mu.Lock()
	s.history.Tasks = append(s.history.Tasks, task)
	s.mu.Unlock()
}

// UpdateTask replaces the recorded task with the same submission ID, appending it when absent
func (s *State) UpdateTask(task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.history.Tasks {
		if s.history.Tasks[i].SubmissionID == task.SubmissionID {
			s.history.Tasks[i] = task
			return
		}
	}
	s.history.Tasks = append(s.history.Tasks, task)
}

func (s *State) Messages() []chat.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return chat.CloneMessages(s.history.Messages)
}

func (s *State) ToolCalls() []tool.CallResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]tool.CallResult(nil), s.history.ToolCalls...)
}

func (s *State) Tasks() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Task(nil), s.history.Tasks...)
}

// Snapshot copies the full history
func (s *State) Snapshot() History {
	return History{
		Messages:  s.Messages(),
		ToolCalls: s.ToolCalls(),
		Tasks:     s.Tasks(),
	}
}

// Clear forgets everything
func (s *State) Clear() {
	s.mu.Lock()
	s.history = History{}
	s.mu.Unlock()
}

// Conversation is the message buffer of a single run
type Conversation struct {
	mu       sync.RWMutex
	messages []chat.ChatMessage
}

// NewConversation creates a buffer seeded with msgs
func NewConversation(msgs ...chat.ChatMessage) *Conversation {
	return &Conversation{messages: chat.CloneMessages(msgs)}
}

func (c *Conversation) Append(msg chat.ChatMessage) {
	c.mu.Lock()
	c.messages = append(c.messages, msg.Clone())
	c.mu.Unlock()
}

// Messages returns a copy of the buffer
func (c *Conversation) Messages() []chat.ChatMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return chat.CloneMessages(c.messages)
}

// Since returns a copy of the messages from index i on
func (c *Conversation) Since(i int) []chat.ChatMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i >= len(c.messages) {
		return nil
	}
	if i < 0 {
		i = 0
	}
	return chat.CloneMessages(c.messages[i:])
}

func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}
