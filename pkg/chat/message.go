package chat

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role identifies the author of a message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// MessageKind describes the structure carried by a message
type MessageKind string

const (
	KindText       MessageKind = "text"
	KindToolUse    MessageKind = "tool_use"
	KindToolResult MessageKind = "tool_result"
	KindImage      MessageKind = "image"
	KindImageURL   MessageKind = "image_url"
	KindPDF        MessageKind = "pdf"
)

// ImageMime is the encoding of inline image data
type ImageMime string

const (
	ImageJPEG ImageMime = "jpeg"
	ImagePNG  ImageMime = "png"
	ImageGIF  ImageMime = "gif"
	ImageWEBP ImageMime = "webp"
)

// MimeType returns the IANA media type for the image encoding
func (m ImageMime) MimeType() string {
	return "image/" + string(m)
}

// ChatMessage is a single conversation entry
type ChatMessage struct {
	Role      Role        `json:"role"`
	Kind      MessageKind `json:"kind"`
	Content   string      `json:"content"`
	ToolCalls []ToolCall  `json:"tool_calls,omitempty"`
	ImageMime ImageMime   `json:"image_mime,omitempty"`
	Data      []byte      `json:"data,omitempty"`
	URL       string      `json:"url,omitempty"`
}

// ToolCall is a model request to invoke a named tool
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall names the tool and carries its JSON-encoded arguments
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCallType is the only call type models emit today
const ToolCallType = "function"

// Text creates a plain text message
func Text(role Role, content string) ChatMessage {
	return ChatMessage{Role: role, Kind: KindText, Content: content}
}

// ToolUse creates the assistant announcement of one or more tool calls
func ToolUse(content string, calls []ToolCall) ChatMessage {
	return ChatMessage{
		Role:      RoleAssistant,
		Kind:      KindToolUse,
		Content:   content,
		ToolCalls: cloneCalls(calls),
	}
}

// ToolResult creates a tool-authored message whose calls carry textual results in Arguments
func ToolResult(calls []ToolCall) ChatMessage {
	return ChatMessage{
		Role:      RoleTool,
		Kind:      KindToolResult,
		ToolCalls: cloneCalls(calls),
	}
}

// Image creates an inline image message
func Image(role Role, mime ImageMime, data []byte) ChatMessage {
	return ChatMessage{Role: role, Kind: KindImage, ImageMime: mime, Data: append([]byte(nil), data...)}
}

// ImageURL creates a message referencing a remote image
func ImageURL(role Role, url string) ChatMessage {
	return ChatMessage{Role: role, Kind: KindImageURL, URL: url}
}

// PDF creates an inline document message
func PDF(role Role, data []byte) ChatMessage {
	return ChatMessage{Role: role, Kind: KindPDF, Data: append([]byte(nil), data...)}
}

// Clone returns a deep copy of the message
func (m ChatMessage) Clone() ChatMessage {
	out := m
	out.ToolCalls = cloneCalls(m.ToolCalls)
	if m.Data != nil {
		out.Data = append([]byte(nil), m.Data...)
	}
	return out
}

// IsToolUse reports whether the message announces tool calls
func (m ChatMessage) IsToolUse() bool {
	return m.Kind == KindToolUse
}

// String renders a short form used in logs
func (m ChatMessage) String() string {
	switch m.Kind {
	case KindToolUse, KindToolResult:
		names := make([]string, 0, len(m.ToolCalls))
		for _, c := range m.ToolCalls {
			names = append(names, c.Function.Name)
		}
		return fmt.Sprintf("%s[%s](%s)", m.Role, m.Kind, strings.Join(names, ","))
	case KindImage, KindPDF:
		return fmt.Sprintf("%s[%s](%d bytes)", m.Role, m.Kind, len(m.Data))
	case KindImageURL:
		return fmt.Sprintf("%s[%s](%s)", m.Role, m.Kind, m.URL)
	default:
		return fmt.Sprintf("%s: %s", m.Role, m.Content)
	}
}

// CloneMessages deep-copies a message slice
func CloneMessages(msgs []ChatMessage) []ChatMessage {
	if msgs == nil {
		return nil
	}
	out := make([]ChatMessage, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

// DecodeArguments parses the call arguments as JSON.
// Empty arguments decode to an empty object.
func (c ToolCall) DecodeArguments() (interface{}, error) {
	raw := strings.TrimSpace(c.Function.Arguments)
	if raw == "" {
		return map[string]interface{}{}, nil
	}
	var args interface{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	return args, nil
}

func cloneCalls(calls []ToolCall) []ToolCall {
	if calls == nil {
		return nil
	}
	return append([]ToolCall(nil), calls...)
}
