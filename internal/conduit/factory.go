package conduit

import (
	"fmt"
	"os"

	"github.com/choruslabs/chorus/internal/engine"
)

// NewGenerator builds a TextGenerator for the given provider name.
// Supported providers:
//
//	"local":     OpenAI-compatible local model server (default
//	             http://localhost:11434/v1, overridable via
//	             LOCAL_MODEL_BASE_URL)
//	"openai":    hosted OpenAI-compatible endpoint (OPENAI_API_KEY,
//	             optional OPENAI_BASE_URL)
//	"anthropic": Anthropic Messages API (ANTHROPIC_API_KEY)
func NewGenerator(provider, model string) (engine.TextGenerator, error) {
	policy := DefaultPolicy()

	switch provider {
	case "", "local":
		baseURL := os.Getenv("LOCAL_MODEL_BASE_URL")
		if baseURL == "" {
			baseURL = "http://localhost:11434/v1"
		}
		// Local servers ignore the key but the SDK requires one.
		return NewClient("local", model, baseURL, policy), nil

	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not set")
		}
		return NewClient(apiKey, model, os.Getenv("OPENAI_BASE_URL"), policy), nil

	case "anthropic":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
		return NewAnthropicClient(apiKey, model, policy), nil
	}

	return nil, fmt.Errorf("unknown provider: %s (supported: local, openai, anthropic)", provider)
}
