package agent

import (
	"context"
	"errors"
	"os"
	"strconv"

	"github.com/harun/turnkit/pkg/chat"
	"github.com/harun/turnkit/pkg/memory"
	"github.com/harun/turnkit/pkg/provider/scripted"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
)

var testLogger = zerolog.New(os.Stdout).Level(zerolog.ErrorLevel)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Chat(ctx context.Context, messages []chat.ChatMessage, schema *chat.StructuredOutputFormat) (chat.Response, error) {
	args := m.Called(ctx, messages, schema)
	resp, _ := args.Get(0).(chat.Response)
	return resp, args.Error(1)
}

func (m *mockProvider) ChatWithTools(ctx context.Context, messages []chat.ChatMessage, tools []chat.ToolSchema, schema *chat.StructuredOutputFormat) (chat.Response, error) {
	args := m.Called(ctx, messages, tools, schema)
	resp, _ := args.Get(0).(chat.Response)
	return resp, args.Error(1)
}

// recallFailingMemory stores messages but refuses to read them back
type recallFailingMemory struct {
	*memory.SlidingWindow
}

func (m recallFailingMemory) Recall(ctx context.Context, query string, limit int) ([]chat.ChatMessage, error) {
	return nil, errors.New("memory offline")
}

// rememberFailingMemory never stores anything
type rememberFailingMemory struct {
	*memory.SlidingWindow
}

func (m rememberFailingMemory) Remember(ctx context.Context, msg chat.ChatMessage) error {
	return errors.New("disk full")
}

func toolStep(calls ...scripted.ToolCall) scripted.Step {
	return scripted.Step{ToolCalls: calls}
}

func addCall(id string, left, right int) scripted.ToolCall {
	return scripted.ToolCall{
		ID:        id,
		Name:      "Addition",
		Arguments: `{"left":` + strconv.Itoa(left) + `,"right":` + strconv.Itoa(right) + `}`,
	}
}
