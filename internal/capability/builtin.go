package capability

import (
	"context"
	"fmt"
	"strings"

	"github.com/choruslabs/chorus/internal/msgstore"
)

// Builtin capabilities backed by the message store. These are the
// "stored data" tools personas use to coordinate and remember.

// NewPublishMessage publishes a message to a topic on behalf of a
// persona.
func NewPublishMessage(store *msgstore.Store, sender string) Capability {
	return Capability{
		Name:        "publish_message",
		Description: "Publish a message to a named topic so other personas (or the user channel) can read it.",
		SchemaJSON:  `{"type":"object","properties":{"topic":{"type":"string","minLength":1},"body":{"type":"string","minLength":1}},"required":["topic","body"]}`,
		Fn: func(ctx context.Context, params map[string]any) (string, error) {
			topic, _ := params["topic"].(string)
			body, _ := params["body"].(string)
			msg, err := store.Publish(ctx, topic, sender, body)
			if err != nil {
				return "", fmt.Errorf("publish failed: %w", err)
			}
			return fmt.Sprintf("published message %s to topic %s", msg.ID, topic), nil
		},
	}
}

// NewReadMessages reads the most recent messages of a topic.
func NewReadMessages(store *msgstore.Store) Capability {
	return Capability{
		Name:        "read_messages",
		Description: "Read recent messages from a named topic of the shared message store.",
		SchemaJSON:  `{"type":"object","properties":{"topic":{"type":"string","minLength":1},"limit":{"type":"integer","minimum":1}},"required":["topic"]}`,
		Fn: func(ctx context.Context, params map[string]any) (string, error) {
			topic, _ := params["topic"].(string)
			limit := intParam(params, "limit", 20)
			msgs, err := store.ReadSince(ctx, topic, 0, limit)
			if err != nil {
				return "", fmt.Errorf("read failed: %w", err)
			}
			if len(msgs) == 0 {
				return fmt.Sprintf("no messages in topic %s", topic), nil
			}
			var b strings.Builder
			for _, m := range msgs {
				fmt.Fprintf(&b, "[%s] %s: %s\n", m.CreatedAt.Format("2006-01-02 15:04:05"), m.Sender, m.Body)
			}
			return b.String(), nil
		},
	}
}

// NewRecallMemory searches stored messages by free-text query via the
// store's full-text index.
func NewRecallMemory(store *msgstore.Store) Capability {
	return Capability{
		Name:        "recall_memory",
		Description: "Search previously stored messages and notes by free-text query.",
		SchemaJSON:  `{"type":"object","properties":{"query":{"type":"string","minLength":1},"limit":{"type":"integer","minimum":1}},"required":["query"]}`,
		Fn: func(ctx context.Context, params map[string]any) (string, error) {
			query, _ := params["query"].(string)
			limit := intParam(params, "limit", 5)
			msgs, err := store.Recall(ctx, query, limit)
			if err != nil {
				return "", fmt.Errorf("recall failed: %w", err)
			}
			if len(msgs) == 0 {
				return fmt.Sprintf("nothing recalled for %q", query), nil
			}
			var b strings.Builder
			for _, m := range msgs {
				fmt.Fprintf(&b, "(%s, %s) %s\n", m.Topic, m.Sender, m.Body)
			}
			return b.String(), nil
		},
	}
}

func intParam(params map[string]any, key string, fallback int) int {
	switch v := params[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return fallback
}
