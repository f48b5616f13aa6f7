package scripted

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/harun/turnkit/pkg/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const addScript = `
prompt: Add 2 and 3
steps:
  - tool_calls:
      - id: call_1
        name: Addition
        arguments: '{"left":2,"right":3}'
  - text: "5"
`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(addScript))
	require.NoError(t, err)

	assert.Equal(t, "Add 2 and 3", s.Prompt)
	require.Len(t, s.Steps, 2)
	assert.Equal(t, "Addition", s.Steps[0].ToolCalls[0].Name)
	assert.Equal(t, "5", s.Steps[1].Text)

	_, err = Parse([]byte("steps: []"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(t, os.WriteFile(path, []byte(addScript), 0644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, s.Steps, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestProvider_Replay(t *testing.T) {
	s, err := Parse([]byte(addScript))
	require.NoError(t, err)
	p := FromScript(*s)
	ctx := context.Background()
	msgs := []chat.ChatMessage{chat.Text(chat.RoleUser, "Add 2 and 3")}

	first, err := p.ChatWithTools(ctx, msgs, []chat.ToolSchema{{Type: "function"}}, nil)
	require.NoError(t, err)
	require.Len(t, first.ToolCalls(), 1)
	assert.Equal(t, "call_1", first.ToolCalls()[0].ID)
	assert.Equal(t, `{"left":2,"right":3}`, first.ToolCalls()[0].Function.Arguments)

	second, err := p.Chat(ctx, msgs, nil)
	require.NoError(t, err)
	assert.Equal(t, "5", second.Text())
	assert.Empty(t, second.ToolCalls())

	_, err = p.Chat(ctx, msgs, nil)
	assert.ErrorIs(t, err, ErrExhausted)

	reqs := p.Requests()
	require.Len(t, reqs, 3)
	assert.Len(t, reqs[0].Tools, 1)
	assert.Nil(t, reqs[1].Tools)
	assert.Equal(t, 3, p.Calls())
	assert.Equal(t, "Add 2 and 3", p.Prompt())
}

func TestProvider_Repeat(t *testing.T) {
	p := FromScript(Script{
		Repeat: true,
		Steps:  []Step{{ToolCalls: []ToolCall{{ID: "fixed", Name: "Echo", Arguments: `{"text":"x"}`}}}},
	})

	ids := map[string]bool{}
	for i := 0; i < 3; i++ {
		resp, err := p.Chat(context.Background(), nil, nil)
		require.NoError(t, err)
		require.Len(t, resp.ToolCalls(), 1)
		ids[resp.ToolCalls()[0].ID] = true
	}
	assert.Len(t, ids, 3)
}

func TestProvider_ErrorStep(t *testing.T) {
	p := New(Step{Error: "rate limited"})

	_, err := p.Chat(context.Background(), nil, nil)
	assert.EqualError(t, err, "rate limited")
}

func TestProvider_CancelledContext(t *testing.T) {
	p := New(Step{Text: "never"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Chat(ctx, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, p.Calls())
}
