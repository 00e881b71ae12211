// Package conduit implements the text-generation collaborator: prompt
// construction and chat-completion calls against a local
// OpenAI-compatible model server (or a hosted provider), with
// exponential-backoff retry. The execution engine treats every error
// returned from here as a per-state retry or fallback trigger and never
// retries the network call itself.
package conduit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"github.com/choruslabs/chorus/internal/engine"
)

// Client is an engine.TextGenerator backed by an OpenAI-compatible chat
// completion endpoint.
type Client struct {
	client *openai.Client
	model  string
	policy Policy
}

var _ engine.TextGenerator = (*Client)(nil)

// NewClient creates a Client. baseURL selects the server (empty = the
// provider's default); for a local server pass e.g.
// "http://localhost:11434/v1" with any non-empty API key.
func NewClient(apiKey, model, baseURL string, policy Policy) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
		policy: policy,
	}
}

// Generate performs one chat completion and returns the raw text.
func (c *Client) Generate(ctx context.Context, prompt, system string, opts engine.GenOptions) (string, error) {
	return withRetry(ctx, c.policy, func(ctx context.Context) (string, error) {
		return c.complete(ctx, prompt, system, opts)
	})
}

// GenerateJSON performs one chat completion and unmarshals the response
// into out, tolerating markdown code fences around the JSON body.
func (c *Client) GenerateJSON(ctx context.Context, prompt, system string, opts engine.GenOptions, out any) error {
	text, err := c.Generate(ctx, prompt, system, opts)
	if err != nil {
		return err
	}
	return UnmarshalResponse(text, out)
}

func (c *Client) complete(ctx context.Context, prompt, system string, opts engine.GenOptions) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: msgs,
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		t := opts.Temperature
		req.Temperature = &t
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from model server")
	}
	return resp.Choices[0].Message.Content, nil
}

// UnmarshalResponse parses a model response as JSON. Models frequently
// wrap JSON in ```json fences or lead with prose; both are stripped.
func UnmarshalResponse(text string, out any) error {
	body := strings.TrimSpace(text)

	if strings.HasPrefix(body, "```") {
		body = strings.TrimPrefix(body, "```json")
		body = strings.TrimPrefix(body, "```")
		if i := strings.LastIndex(body, "```"); i >= 0 {
			body = body[:i]
		}
		body = strings.TrimSpace(body)
	}

	if err := json.Unmarshal([]byte(body), out); err == nil {
		return nil
	}

	// Last resort: take the outermost JSON-looking span.
	start := strings.IndexAny(body, "[{")
	end := strings.LastIndexAny(body, "]}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(body[start:end+1]), out); err == nil {
			return nil
		}
	}

	return fmt.Errorf("response is not valid JSON: %s", engineTruncate(body))
}

func engineTruncate(s string) string {
	const n = 200
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
