package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/harun/turnkit/pkg/chat"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const toolUseMessage = `{
  "id": "msg_1",
  "type": "message",
  "role": "assistant",
  "model": "claude-3-5-haiku-latest",
  "content": [
    {"type": "text", "text": "Adding now."},
    {"type": "tool_use", "id": "toolu_1", "name": "Addition", "input": {"left": 2, "right": 3}}
  ],
  "stop_reason": "tool_use",
  "stop_sequence": null,
  "usage": {"input_tokens": 20, "output_tokens": 9}
}`

func TestNew(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	p, err := New(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, p.Model())
	assert.Equal(t, DefaultMaxTokens, p.config.MaxTokens)
}

func TestProvider_ChatWithTools(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(toolUseMessage))
	}))
	defer srv.Close()

	p, err := New(Config{APIKey: "test-key", BaseURL: srv.URL, Logger: zerolog.Nop()})
	require.NoError(t, err)

	tools := []chat.ToolSchema{{
		Type: "function",
		Function: chat.FunctionSchema{
			Name:        "Addition",
			Description: "Adds two numbers",
			Parameters: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{"left": map[string]interface{}{"type": "number"}},
				"required":   []string{"left"},
			},
		},
	}}
	msgs := []chat.ChatMessage{
		chat.Text(chat.RoleSystem, "You add."),
		chat.Text(chat.RoleUser, "Add 2 and 3"),
	}

	resp, err := p.ChatWithTools(context.Background(), msgs, tools, nil)
	require.NoError(t, err)

	t.Run("should map text and tool use blocks", func(t *testing.T) {
		assert.Equal(t, "Adding now.", resp.Text())
		require.Len(t, resp.ToolCalls(), 1)
		call := resp.ToolCalls()[0]
		assert.Equal(t, "toolu_1", call.ID)
		assert.Equal(t, "Addition", call.Function.Name)
		assert.JSONEq(t, `{"left":2,"right":3}`, call.Function.Arguments)

		fr, ok := resp.(chat.FinishReasoner)
		require.True(t, ok)
		assert.Equal(t, chat.FinishToolCalls, fr.FinishReason())
	})

	t.Run("should lift system messages out of the conversation", func(t *testing.T) {
		sent, ok := body["messages"].([]interface{})
		require.True(t, ok)
		assert.Len(t, sent, 1)

		system, ok := body["system"].([]interface{})
		require.True(t, ok)
		require.Len(t, system, 1)
		assert.Equal(t, "You add.", system[0].(map[string]interface{})["text"])
		assert.EqualValues(t, DefaultMaxTokens, body["max_tokens"])
	})
}

func TestConvertMessages(t *testing.T) {
	calls := []chat.ToolCall{{ID: "t1", Type: chat.ToolCallType, Function: chat.FunctionCall{Name: "Echo", Arguments: `{"text":"x"}`}}}
	results := []chat.ToolCall{{ID: "t1", Type: chat.ToolCallType, Function: chat.FunctionCall{Name: "Echo", Arguments: "x"}}}

	system, msgs, err := convertMessages([]chat.ChatMessage{
		chat.Text(chat.RoleSystem, "sys"),
		chat.Text(chat.RoleUser, "hi"),
		chat.ToolUse("calling", calls),
		chat.ToolResult(results),
		chat.Image(chat.RoleUser, chat.ImagePNG, []byte{0x89, 0x50}),
		chat.PDF(chat.RoleUser, []byte("%PDF")),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"sys"}, system)
	require.Len(t, msgs, 5)
	assert.Len(t, msgs[1].Content, 2)
	require.Len(t, msgs[2].Content, 1)
	require.NotNil(t, msgs[2].Content[0].OfToolResult)
	assert.Equal(t, "t1", msgs[2].Content[0].OfToolResult.ToolUseID)
	assert.NotNil(t, msgs[3].Content[0].OfImage)
	assert.NotNil(t, msgs[4].Content[0].OfDocument)
}

func TestToolInput(t *testing.T) {
	assert.Equal(t, map[string]interface{}{}, toolInput(""))
	assert.Equal(t, map[string]interface{}{}, toolInput("{oops"))
	assert.Equal(t, json.RawMessage(`{"a":1}`), toolInput(`{"a":1}`))
}

func TestRequiredFields(t *testing.T) {
	assert.Equal(t, []string{"a"}, requiredFields([]string{"a"}))
	assert.Equal(t, []string{"a", "b"}, requiredFields([]interface{}{"a", "b", 3}))
	assert.Nil(t, requiredFields(nil))
}
