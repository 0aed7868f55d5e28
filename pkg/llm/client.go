// Package llm calls an OpenAI-compatible chat completions endpoint.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/EternisAI/persona-twin/pkg/apperr"
	"github.com/EternisAI/persona-twin/pkg/prompts"
)

// Params are the sampling settings of one completion. Zero values are left to the server.
type Params struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// DefaultParams are the chat defaults.
var DefaultParams = Params{Temperature: 0.7, TopP: 0.9, MaxTokens: 512}

// Completer turns a message list into the assistant's reply.
type Completer interface {
	Complete(ctx context.Context, messages []prompts.Message, params Params) (string, error)
}

var _ Completer = (*Client)(nil)

type Client struct {
	client *openai.Client
	model  string
	logger *log.Logger
}

type Input struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	Logger  *log.Logger
	// Options are appended after the defaults, e.g. option.WithHTTPClient in tests.
	Options []option.RequestOption
}

func New(input Input) (*Client, error) {
	if input.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if input.BaseURL == "" {
		return nil, apperr.Configuration("llm", "base URL is required")
	}
	if input.Model == "" {
		return nil, apperr.Configuration("llm", "model is required")
	}

	baseURL := input.BaseURL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	opts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
	}
	if input.APIKey != "" {
		opts = append(opts, option.WithAPIKey(input.APIKey))
	}
	if input.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(input.Timeout))
	}
	opts = append(opts, input.Options...)

	client := openai.NewClient(opts...)
	return &Client{client: &client, model: input.Model, logger: input.Logger}, nil
}

func (c *Client) Model() string { return c.model }

func toParams(messages []prompts.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case prompts.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case prompts.RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case prompts.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			return nil, apperr.InvalidInput("llm", "unsupported message role %q", m.Role)
		}
	}
	return out, nil
}

// Complete returns the first choice's content. Transport failures are
// BackendUnavailable; no choices or blank content is MalformedResponse.
func (c *Client) Complete(ctx context.Context, messages []prompts.Message, params Params) (string, error) {
	msgs, err := toParams(messages)
	if err != nil {
		return "", err
	}

	req := openai.ChatCompletionNewParams{
		Messages: msgs,
		Model:    c.model,
	}
	if params.Temperature > 0 {
		req.Temperature = openai.Float(params.Temperature)
	}
	if params.TopP > 0 {
		req.TopP = openai.Float(params.TopP)
	}
	if params.MaxTokens > 0 {
		req.MaxTokens = openai.Int(int64(params.MaxTokens))
	}

	start := time.Now()
	completion, err := c.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return "", apperr.BackendUnavailable("llm.complete", err)
	}
	if len(completion.Choices) == 0 {
		return "", apperr.Malformed("llm.complete", "no completion choices")
	}
	answer := strings.TrimSpace(completion.Choices[0].Message.Content)
	if answer == "" {
		return "", apperr.Malformed("llm.complete", "empty completion content")
	}

	c.logger.Debug("Completion finished",
		"model", c.model,
		"messages", len(messages),
		"completion_tokens", completion.Usage.CompletionTokens,
		"duration", time.Since(start))
	return answer, nil
}
