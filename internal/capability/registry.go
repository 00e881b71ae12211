// Package capability implements the capability dispatcher: the registry
// of named tools a persona may call, with JSON-schema parameter
// validation and per-persona allowlists. The execution engine only sees
// the engine.Dispatcher contract.
package capability

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/choruslabs/chorus/internal/engine"
)

// Fn performs the actual capability call.
type Fn func(ctx context.Context, params map[string]any) (string, error)

// Capability is one dispatchable tool.
type Capability struct {
	Name        string
	Description string
	SchemaJSON  string // optional JSON schema for the parameter map
	Fn          Fn
}

// ValidateParams validates params against the capability's JSON schema.
// Capabilities without a schema accept anything.
func (c Capability) ValidateParams(params map[string]any) error {
	if c.SchemaJSON == "" {
		return nil
	}
	if params == nil {
		params = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(c.SchemaJSON),
		gojsonschema.NewGoLoader(params),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		msg := ""
		for _, e := range result.Errors() {
			if msg != "" {
				msg += "; "
			}
			msg += e.String()
		}
		return fmt.Errorf("invalid parameters for %s: %s", c.Name, msg)
	}
	return nil
}

// Registry holds capabilities and per-persona allowlists and implements
// engine.Dispatcher.
type Registry struct {
	mu    sync.RWMutex
	caps  map[string]Capability
	allow map[string]map[string]bool // persona -> capability names; nil entry = all
}

var _ engine.Dispatcher = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		caps:  make(map[string]Capability),
		allow: make(map[string]map[string]bool),
	}
}

// Register adds or replaces a capability.
func (r *Registry) Register(c Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caps[c.Name] = c
}

// Allow restricts a persona to the named capabilities. Personas without
// an allowlist may call everything.
func (r *Registry) Allow(personaID string, names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	r.allow[personaID] = set
}

// Dispatch runs a named capability. Unknown names return a "not found"
// failure; dispatch never panics.
func (r *Registry) Dispatch(ctx context.Context, name string, params map[string]any) engine.DispatchResult {
	r.mu.RLock()
	c, ok := r.caps[name]
	r.mu.RUnlock()
	if !ok {
		return engine.DispatchResult{Success: false, Error: fmt.Sprintf("tool not found: %s", name)}
	}

	if err := c.ValidateParams(params); err != nil {
		return engine.DispatchResult{Success: false, Error: err.Error()}
	}

	out, err := c.Fn(ctx, params)
	if err != nil {
		return engine.DispatchResult{Success: false, Error: err.Error()}
	}
	return engine.DispatchResult{Success: true, Output: out}
}

// ListAvailable returns the capabilities the persona may call, sorted by
// name for stable prompts.
func (r *Registry) ListAvailable(personaID string) []engine.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	allowed := r.allow[personaID]
	descriptors := make([]engine.ToolDescriptor, 0, len(r.caps))
	for name, c := range r.caps {
		if allowed != nil && !allowed[name] {
			continue
		}
		descriptors = append(descriptors, engine.ToolDescriptor{
			Name:        name,
			Description: c.Description,
		})
	}
	sort.Slice(descriptors, func(i, j int) bool { return descriptors[i].Name < descriptors[j].Name })
	return descriptors
}
