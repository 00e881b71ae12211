// Package persona holds the explicit per-persona configuration records.
// There is no process-wide registry: a Persona is loaded, turned into an
// engine.Config, and handed to each Planner construction call.
package persona

import (
	"encoding/json"
	"fmt"
	"os"
)

// Persona configures one independent AI persona.
type Persona struct {
	ID           string   `json:"id"`
	Identity     string   `json:"identity"` // system prompt / persona identity text
	Provider     string   `json:"provider"` // local, openai, anthropic
	Model        string   `json:"model"`
	Temperature  float32  `json:"temperature"`
	MaxTokens    int      `json:"max_tokens"`
	Capabilities []string `json:"capabilities,omitempty"` // allowlist; empty = all
	VoiceTopic   string   `json:"voice_topic,omitempty"`  // where spoken results are published
}

// Validate reports configuration mistakes early, before a session runs.
func (p Persona) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("persona id must not be empty")
	}
	if p.Identity == "" {
		return fmt.Errorf("persona %s: identity must not be empty", p.ID)
	}
	if p.Model == "" {
		return fmt.Errorf("persona %s: model must not be empty", p.ID)
	}
	return nil
}

// Load reads persona records from a JSON file: either a single object or
// an array of objects.
func Load(path string) ([]Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read persona file: %w", err)
	}

	var personas []Persona
	if err := json.Unmarshal(data, &personas); err != nil {
		var single Persona
		if err2 := json.Unmarshal(data, &single); err2 != nil {
			return nil, fmt.Errorf("failed to parse persona file: %w", err)
		}
		personas = []Persona{single}
	}

	for _, p := range personas {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return personas, nil
}

// Defaults returns the three personas of the reference deployment. They
// differ in tone and model only; the engine treats them identically.
func Defaults() []Persona {
	return []Persona{
		{
			ID:          "sage",
			Identity:    "You are Sage, a calm and precise assistant. You answer factually and cite what you looked up.",
			Provider:    "local",
			Model:       "llama3.1",
			Temperature: 0.3,
			VoiceTopic:  "voice.sage",
		},
		{
			ID:          "scout",
			Identity:    "You are Scout, a curious researcher. You dig through the web and stored notes before answering.",
			Provider:    "local",
			Model:       "llama3.1",
			Temperature: 0.7,
			VoiceTopic:  "voice.scout",
		},
		{
			ID:          "quill",
			Identity:    "You are Quill, a concise writer. You deliver short, polished answers.",
			Provider:    "local",
			Model:       "llama3.1",
			Temperature: 0.9,
			VoiceTopic:  "voice.quill",
		},
	}
}
