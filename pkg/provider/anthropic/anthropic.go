// Package anthropic adapts the Anthropic Messages API to chat.Provider.
package anthropic

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/harun/turnkit/pkg/chat"
	"github.com/rs/zerolog"
)

const (
	// DefaultModel is used when Config.Model is empty
	DefaultModel = "claude-3-5-haiku-latest"
	// DefaultMaxTokens is sent when Config.MaxTokens is not set; the API requires one
	DefaultMaxTokens = 4096
)

// Config configures the Anthropic provider
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	MaxRetries  int // SDK default when zero
	Logger      zerolog.Logger
}

// Provider implements chat.Provider for Anthropic Claude
type Provider struct {
	client anthropic.Client
	config Config
}

// New creates a new Anthropic provider
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}

	return &Provider{
		client: anthropic.NewClient(opts...),
		config: cfg,
	}, nil
}

// Model returns the configured model name
func (p *Provider) Model() string {
	return p.config.Model
}

func (p *Provider) Chat(ctx context.Context, messages []chat.ChatMessage, schema *chat.StructuredOutputFormat) (chat.Response, error) {
	return p.ChatWithTools(ctx, messages, nil, schema)
}

func (p *Provider) ChatWithTools(ctx context.Context, messages []chat.ChatMessage, tools []chat.ToolSchema, schema *chat.StructuredOutputFormat) (chat.Response, error) {
	params, err := p.buildParams(messages, tools, schema)
	if err != nil {
		return nil, err
	}

	response, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}

	var content strings.Builder
	resp := &chat.BasicResponse{
		Usage: &chat.Usage{
			InputTokens:  int(response.Usage.InputTokens),
			OutputTokens: int(response.Usage.OutputTokens),
		},
	}

	for _, block := range response.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			content.WriteString(b.Text)
		case anthropic.ToolUseBlock:
			args := b.JSON.Input.Raw()
			if args == "" {
				args = "{}"
			}
			resp.Calls = append(resp.Calls, chat.ToolCall{
				ID:       b.ID,
				Type:     chat.ToolCallType,
				Function: chat.FunctionCall{Name: b.Name, Arguments: args},
			})
		}
	}
	resp.Content = content.String()

	resp.Finish = string(response.StopReason)
	if response.StopReason == anthropic.StopReasonToolUse {
		resp.Finish = chat.FinishToolCalls
	}

	p.config.Logger.Debug().
		Str("model", p.config.Model).
		Str("stop_reason", string(response.StopReason)).
		Int("tool_calls", len(resp.Calls)).
		Int64("input_tokens", response.Usage.InputTokens).
		Int64("output_tokens", response.Usage.OutputTokens).
		Msg("Anthropic message received")

	return resp, nil
}

func (p *Provider) buildParams(messages []chat.ChatMessage, tools []chat.ToolSchema, schema *chat.StructuredOutputFormat) (anthropic.MessageNewParams, error) {
	system, converted, err := convertMessages(messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	if schema != nil && len(schema.Schema) > 0 {
		instruction, err := schemaInstruction(schema)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		system = append(system, instruction)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.config.Model),
		Messages:  converted,
		MaxTokens: int64(p.config.MaxTokens),
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}
	if p.config.Temperature > 0 {
		params.Temperature = anthropic.Float(p.config.Temperature)
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}
	return params, nil
}

// convertMessages splits out system text and maps the rest to Messages API turns
func convertMessages(messages []chat.ChatMessage) ([]string, []anthropic.MessageParam, error) {
	var system []string
	out := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		switch msg.Kind {
		case chat.KindToolUse:
			blocks := []anthropic.ContentBlockParamUnion{}
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, toolInput(tc.Function.Arguments), tc.Function.Name))
			}
			out = append(out, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: blocks,
			})

		case chat.KindToolResult:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.ToolCalls))
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolResultBlock(tc.ID, tc.Function.Arguments, false))
			}
			out = append(out, anthropic.NewUserMessage(blocks...))

		case chat.KindImage:
			data := base64.StdEncoding.EncodeToString(msg.Data)
			out = append(out, anthropic.NewUserMessage(anthropic.NewImageBlockBase64(msg.ImageMime.MimeType(), data)))

		case chat.KindImageURL:
			out = append(out, anthropic.NewUserMessage(anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: msg.URL})))

		case chat.KindPDF:
			data := base64.StdEncoding.EncodeToString(msg.Data)
			out = append(out, anthropic.NewUserMessage(anthropic.NewDocumentBlock(anthropic.Base64PDFSourceParam{Data: data})))

		default:
			switch msg.Role {
			case chat.RoleSystem:
				system = append(system, msg.Content)
			case chat.RoleAssistant:
				out = append(out, anthropic.MessageParam{
					Role:    anthropic.MessageParamRoleAssistant,
					Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Content)},
				})
			default:
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
			}
		}
	}
	return system, out, nil
}

func toolInput(arguments string) interface{} {
	if arguments == "" || !json.Valid([]byte(arguments)) {
		return map[string]interface{}{}
	}
	return json.RawMessage(arguments)
}

func convertTools(tools []chat.ToolSchema) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		toolParam := anthropic.ToolParam{
			Name:        t.Function.Name,
			Description: anthropic.String(t.Function.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: t.Function.Parameters["properties"],
			},
		}
		toolParam.InputSchema.Required = requiredFields(t.Function.Parameters["required"])
		out = append(out, anthropic.ToolUnionParam{OfTool: &toolParam})
	}
	return out
}

func requiredFields(v interface{}) []string {
	switch req := v.(type) {
	case []string:
		return req
	case []interface{}:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func schemaInstruction(schema *chat.StructuredOutputFormat) (string, error) {
	data, err := json.Marshal(schema.Schema)
	if err != nil {
		return "", fmt.Errorf("failed to encode output schema: %w", err)
	}
	return "Respond only with a JSON document that validates against this JSON schema:\n" + string(data), nil
}
