// Package openai adapts the OpenAI chat completions API to chat.Provider.
package openai

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/harun/turnkit/pkg/chat"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"
)

// DefaultModel is used when Config.Model is empty
const DefaultModel = "gpt-4o-mini"

// Config configures the OpenAI provider
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	// MaxRetries overrides the SDK retry count when positive
	MaxRetries int
	Logger     zerolog.Logger
}

// Provider implements chat.Provider for OpenAI compatible endpoints
type Provider struct {
	client openai.Client
	config Config
}

// New creates a new OpenAI provider
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}

	return &Provider{
		client: openai.NewClient(opts...),
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

	response, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}

	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned")
	}
	choice := response.Choices[0]

	resp := &chat.BasicResponse{
		Content: choice.Message.Content,
		Finish:  choice.FinishReason,
		Usage: &chat.Usage{
			InputTokens:  int(response.Usage.PromptTokens),
			OutputTokens: int(response.Usage.CompletionTokens),
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		resp.Calls = append(resp.Calls, chat.ToolCall{
			ID:   tc.ID,
			Type: chat.ToolCallType,
			Function: chat.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}

	p.config.Logger.Debug().
		Str("model", p.config.Model).
		Str("finish_reason", choice.FinishReason).
		Int("tool_calls", len(resp.Calls)).
		Int64("prompt_tokens", response.Usage.PromptTokens).
		Int64("completion_tokens", response.Usage.CompletionTokens).
		Msg("OpenAI completion received")

	return resp, nil
}

func (p *Provider) buildParams(messages []chat.ChatMessage, tools []chat.ToolSchema, schema *chat.StructuredOutputFormat) (openai.ChatCompletionNewParams, error) {
	converted, err := convertMessages(messages)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.config.Model),
		Messages: converted,
	}
	if p.config.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.config.MaxTokens))
	}
	if p.config.Temperature > 0 {
		params.Temperature = openai.Float(p.config.Temperature)
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}
	if schema != nil && len(schema.Schema) > 0 {
		params.ResponseFormat = responseFormat(schema)
	}
	return params, nil
}

func convertMessages(messages []chat.ChatMessage) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))

	for _, msg := range messages {
		switch msg.Kind {
		case chat.KindToolUse:
			toolCalls := make([]openai.ChatCompletionMessageToolCall, 0, len(msg.ToolCalls))
			for _, tc := range msg.ToolCalls {
				toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunction{
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					},
				})
			}
			assistantMsg := openai.ChatCompletionMessage{
				Role:      "assistant",
				Content:   msg.Content,
				ToolCalls: toolCalls,
			}
			out = append(out, assistantMsg.ToParam())

		case chat.KindToolResult:
			// one tool message per call, results travel in Arguments
			for _, tc := range msg.ToolCalls {
				out = append(out, openai.ToolMessage(tc.Function.Arguments, tc.ID))
			}

		case chat.KindImage:
			url := fmt.Sprintf("data:%s;base64,%s", msg.ImageMime.MimeType(), base64.StdEncoding.EncodeToString(msg.Data))
			out = append(out, imageMessage(url))

		case chat.KindImageURL:
			out = append(out, imageMessage(msg.URL))

		case chat.KindPDF:
			return nil, fmt.Errorf("pdf messages are not supported by the openai provider")

		default:
			switch msg.Role {
			case chat.RoleSystem:
				out = append(out, openai.SystemMessage(msg.Content))
			case chat.RoleAssistant:
				out = append(out, openai.AssistantMessage(msg.Content))
			default:
				out = append(out, openai.UserMessage(msg.Content))
			}
		}
	}
	return out, nil
}

func imageMessage(url string) openai.ChatCompletionMessageParamUnion {
	return openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: url}),
	})
}

func convertTools(tools []chat.ToolSchema) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        t.Function.Name,
				Description: openai.String(t.Function.Description),
				Parameters:  openai.FunctionParameters(t.Function.Parameters),
			},
		})
	}
	return out
}

func responseFormat(schema *chat.StructuredOutputFormat) openai.ChatCompletionNewParamsResponseFormatUnion {
	jsonSchema := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:   schema.Name,
		Schema: schema.Schema,
		Strict: openai.Bool(schema.Strict),
	}
	if jsonSchema.Name == "" {
		jsonSchema.Name = "output"
	}
	if schema.Description != "" {
		jsonSchema.Description = openai.String(schema.Description)
	}
	return openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: jsonSchema},
	}
}
