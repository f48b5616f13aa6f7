// Package scripted is a deterministic chat.Provider that replays canned responses.
package scripted

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/harun/turnkit/pkg/chat"
	"gopkg.in/yaml.v3"
)

// ErrExhausted is returned once every step has been consumed
var ErrExhausted = errors.New("script exhausted")

// Step is one scripted model reply
type Step struct {
	Text         string     `yaml:"text,omitempty"`
	ToolCalls    []ToolCall `yaml:"tool_calls,omitempty"`
	FinishReason string     `yaml:"finish_reason,omitempty"`
	Error        string     `yaml:"error,omitempty"`
}

// ToolCall is the YAML form of chat.ToolCall
type ToolCall struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Arguments string `yaml:"arguments"`
}

// Script is a prompt and the replies to play back for it
type Script struct {
	Prompt string `yaml:"prompt,omitempty"`
	Steps  []Step `yaml:"steps"`
	// Repeat replays the last step forever instead of running out
	Repeat bool `yaml:"repeat,omitempty"`
}

// Request is a recorded provider call
type Request struct {
	Messages []chat.ChatMessage
	Tools    []chat.ToolSchema
	Schema   *chat.StructuredOutputFormat
}

// Provider replays a Script
type Provider struct {
	mu       sync.Mutex
	script   Script
	index    int
	requests []Request
}

// New creates a provider from steps
func New(steps ...Step) *Provider {
	return FromScript(Script{Steps: steps})
}

// FromScript creates a provider for s
func FromScript(s Script) *Provider {
	s.Steps = append([]Step(nil), s.Steps...)
	return &Provider{script: s}
}

// Load reads a YAML script file
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML script
func Parse(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("script has no steps")
	}
	return &s, nil
}

func (p *Provider) Chat(ctx context.Context, messages []chat.ChatMessage, schema *chat.StructuredOutputFormat) (chat.Response, error) {
	return p.next(ctx, Request{Messages: messages, Schema: schema})
}

func (p *Provider) ChatWithTools(ctx context.Context, messages []chat.ChatMessage, tools []chat.ToolSchema, schema *chat.StructuredOutputFormat) (chat.Response, error) {
	return p.next(ctx, Request{Messages: messages, Tools: tools, Schema: schema})
}

func (p *Provider) next(ctx context.Context, req Request) (chat.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	req.Messages = chat.CloneMessages(req.Messages)
	p.requests = append(p.requests, req)

	if len(p.script.Steps) == 0 {
		return nil, ErrExhausted
	}

	idx := p.index
	if idx >= len(p.script.Steps) {
		if !p.script.Repeat {
			return nil, fmt.Errorf("%w at step %d", ErrExhausted, idx+1)
		}
		idx = len(p.script.Steps) - 1
	}
	p.index++

	step := p.script.Steps[idx]
	if step.Error != "" {
		return nil, errors.New(step.Error)
	}

	resp := &chat.BasicResponse{Content: step.Text, Finish: step.FinishReason}
	for i, tc := range step.ToolCalls {
		id := tc.ID
		if id == "" || (p.script.Repeat && p.index > len(p.script.Steps)) {
			id = fmt.Sprintf("call_%d_%d", p.index, i+1)
		}
		resp.Calls = append(resp.Calls, chat.ToolCall{
			ID:       id,
			Type:     chat.ToolCallType,
			Function: chat.FunctionCall{Name: tc.Name, Arguments: tc.Arguments},
		})
	}
	return resp, nil
}

// Requests returns every call made so far
func (p *Provider) Requests() []Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Request(nil), p.requests...)
}

// Calls returns the number of provider calls
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// Prompt returns the script prompt
func (p *Provider) Prompt() string {
	return p.script.Prompt
}
