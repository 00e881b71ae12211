package conduit

import (
	"context"
	"fmt"

	anthropic "github.com/liushuangls/go-anthropic/v2"

	"github.com/choruslabs/chorus/internal/engine"
)

// AnthropicClient is an engine.TextGenerator backed by the Anthropic
// Messages API, for personas configured against a hosted model instead
// of the local server.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
	policy Policy
}

var _ engine.TextGenerator = (*AnthropicClient)(nil)

// NewAnthropicClient creates an Anthropic-backed generator.
func NewAnthropicClient(apiKey, model string, policy Policy) *AnthropicClient {
	return &AnthropicClient{
		client: anthropic.NewClient(apiKey),
		model:  model,
		policy: policy,
	}
}

// Generate performs one Messages call and returns the concatenated text
// blocks.
func (c *AnthropicClient) Generate(ctx context.Context, prompt, system string, opts engine.GenOptions) (string, error) {
	return withRetry(ctx, c.policy, func(ctx context.Context) (string, error) {
		return c.complete(ctx, prompt, system, opts)
	})
}

// GenerateJSON performs one Messages call and unmarshals the response
// into out.
func (c *AnthropicClient) GenerateJSON(ctx context.Context, prompt, system string, opts engine.GenOptions, out any) error {
	text, err := c.Generate(ctx, prompt, system, opts)
	if err != nil {
		return err
	}
	return UnmarshalResponse(text, out)
}

func (c *AnthropicClient) complete(ctx context.Context, prompt, system string, opts engine.GenOptions) (string, error) {
	maxTokens := 4096
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}

	req := anthropic.MessagesRequest{
		Model: anthropic.Model(c.model),
		Messages: []anthropic.Message{
			{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(prompt)},
			},
		},
		MaxTokens: maxTokens,
	}
	if system != "" {
		req.MultiSystem = []anthropic.MessageSystemPart{{Type: "text", Text: system}}
	}
	if opts.Temperature > 0 {
		t := opts.Temperature
		req.Temperature = &t
	}

	resp, err := c.client.CreateMessages(ctx, req)
	if err != nil {
		return "", fmt.Errorf("messages call failed: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			text += *block.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("empty response from anthropic")
	}
	return text, nil
}
