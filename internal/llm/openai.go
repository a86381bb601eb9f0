package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
	"github.com/rs/zerolog"
)

// OpenAIConfig holds chat completion API settings.
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// OpenAIProvider implements Generator against an OpenAI-compatible
// chat completions API.
type OpenAIProvider struct {
	client oai.Client
	config OpenAIConfig
	logger zerolog.Logger
}

// NewOpenAIProvider constructs the provider.
func NewOpenAIProvider(config OpenAIConfig, logger zerolog.Logger) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("llm: API key must not be empty")
	}
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
	}
	if config.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(config.BaseURL))
	}
	if config.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: config.Timeout,
		}))
	}

	return &OpenAIProvider{
		client: oai.NewClient(reqOpts...),
		config: config,
		logger: logger.With().Str("provider", "openai-chat").Logger(),
	}, nil
}

// Generate runs one chat completion over the conversation.
func (p *OpenAIProvider) Generate(ctx context.Context, messages []Message, tools []Tool) (*Reply, error) {
	params, err := p.buildParams(messages, tools)
	if err != nil {
		return nil, fmt.Errorf("llm: build params: %w", err)
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("llm: empty choices in response")
	}

	choice := resp.Choices[0]
	reply := &Reply{Content: choice.Message.Content}
	for _, tc := range choice.Message.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	p.logger.Debug().
		Dur("time", time.Since(start)).
		Int("toolCalls", len(reply.ToolCalls)).
		Msg("Completion received")
	return reply, nil
}

func (p *OpenAIProvider) buildParams(messages []Message, tools []Tool) (oai.ChatCompletionNewParams, error) {
	var converted []oai.ChatCompletionMessageParamUnion
	for _, m := range messages {
		msg, err := convertMessage(m)
		if err != nil {
			return oai.ChatCompletionNewParams{}, err
		}
		converted = append(converted, msg)
	}

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.config.Model),
		Messages: converted,
	}

	if p.config.Temperature != 0 {
		params.Temperature = param.NewOpt(p.config.Temperature)
	}
	if p.config.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(p.config.MaxTokens))
	}

	for _, t := range tools {
		params.Tools = append(params.Tools, oai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: param.NewOpt(t.Description),
				Parameters:  shared.FunctionParameters(t.Parameters),
			},
		})
	}

	return params, nil
}

func convertMessage(m Message) (oai.ChatCompletionMessageParamUnion, error) {
	switch m.Role {
	case "system":
		return oai.SystemMessage(m.Content), nil

	case "user":
		return oai.UserMessage(m.Content), nil

	case "assistant":
		asst := oai.ChatCompletionAssistantMessageParam{}
		if m.Content != "" {
			asst.Content.OfString = oai.String(m.Content)
		}
		for _, tc := range m.ToolCalls {
			asst.ToolCalls = append(asst.ToolCalls, oai.ChatCompletionMessageToolCallParam{
				ID: tc.ID,
				Function: oai.ChatCompletionMessageToolCallFunctionParam{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		return oai.ChatCompletionMessageParamUnion{OfAssistant: &asst}, nil

	case "tool":
		return oai.ToolMessage(m.Content, m.ToolCallID), nil

	default:
		return oai.ChatCompletionMessageParamUnion{}, fmt.Errorf("unknown message role %q", m.Role)
	}
}
