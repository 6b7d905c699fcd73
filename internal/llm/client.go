package llm

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	appErr "github.com/appforge/engine/pkg/errors"
)

// Message is one role-tagged turn in a completion request.
type Message struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required"`
}

// Client is the completion service the analyzer and chat endpoint depend on.
type Client interface {
	// Complete returns a single non-streaming text completion.
	Complete(ctx context.Context, messages []Message, maxTokens int) (string, error)
	// Stream emits completion text chunks through onChunk until the
	// message finishes or ctx is cancelled.
	Stream(ctx context.Context, messages []Message, maxTokens int, onChunk func(text string)) error
}

type anthropicClient struct {
	client *anthropic.Client
	model  anthropic.Model
}

// NewAnthropicClient builds a Client backed by the Anthropic Messages API.
func NewAnthropicClient(apiKey, baseURL, model string) (Client, error) {
	if apiKey == "" {
		return nil, appErr.New(appErr.CodeInvalid, "anthropic api key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	c := anthropic.NewClient(opts...)
	return &anthropicClient{client: &c, model: anthropic.Model(model)}, nil
}

func (c *anthropicClient) Complete(ctx context.Context, messages []Message, maxTokens int) (string, error) {
	params, err := c.params(messages, maxTokens)
	if err != nil {
		return "", err
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", appErr.Wrap(err, appErr.CodeExternal, "completion request failed")
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

func (c *anthropicClient) Stream(ctx context.Context, messages []Message, maxTokens int, onChunk func(string)) error {
	params, err := c.params(messages, maxTokens)
	if err != nil {
		return err
	}

	stream := c.client.Messages.NewStreaming(ctx, params)
	for stream.Next() {
		event := stream.Current()
		if e, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if e.Delta.Type == "text_delta" && e.Delta.Text != "" {
				onChunk(e.Delta.Text)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return appErr.Wrap(err, appErr.CodeExternal, "completion stream failed")
	}
	return nil
}

func (c *anthropicClient) params(messages []Message, maxTokens int) (anthropic.MessageNewParams, error) {
	converted := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "user":
			converted = append(converted, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case "assistant":
			converted = append(converted, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			return anthropic.MessageNewParams{}, appErr.New(appErr.CodeInvalid, "unsupported message role "+m.Role)
		}
	}
	return anthropic.MessageNewParams{
		Model:     c.model,
		Messages:  converted,
		MaxTokens: int64(maxTokens),
	}, nil
}
