package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// scriptedGen replays queued responses: texts feed Generate calls, jsons
// feed GenerateJSON calls. An exhausted queue is an error so tests catch
// unexpected generator calls.
type scriptedGen struct {
	mu    sync.Mutex
	texts []string
	jsons []string
}

func (g *scriptedGen) Generate(_ context.Context, _, _ string, _ GenOptions) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.texts) == 0 {
		return "", errors.New("unscripted Generate call")
	}
	out := g.texts[0]
	g.texts = g.texts[1:]
	return out, nil
}

func (g *scriptedGen) GenerateJSON(_ context.Context, _, _ string, _ GenOptions, out any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.jsons) == 0 {
		return errors.New("unscripted GenerateJSON call")
	}
	payload := g.jsons[0]
	g.jsons = g.jsons[1:]
	return json.Unmarshal([]byte(payload), out)
}

// promptGen routes GenerateJSON by prompt content, for loops where the
// same kind of call repeats an unknown number of times.
type promptGen struct {
	generate func(prompt string) (string, error)
	json     func(prompt string) (string, error)
}

func (g *promptGen) Generate(_ context.Context, prompt, _ string, _ GenOptions) (string, error) {
	if g.generate == nil {
		return "", errors.New("generate not scripted")
	}
	return g.generate(prompt)
}

func (g *promptGen) GenerateJSON(_ context.Context, prompt, _ string, _ GenOptions, out any) error {
	if g.json == nil {
		return errors.New("generateJSON not scripted")
	}
	payload, err := g.json(prompt)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(payload), out)
}

// failingGen fails every call; it exercises the degraded fallbacks.
type failingGen struct{}

func (failingGen) Generate(context.Context, string, string, GenOptions) (string, error) {
	return "", errors.New("provider unavailable")
}

func (failingGen) GenerateJSON(context.Context, string, string, GenOptions, any) error {
	return errors.New("provider unavailable")
}

// fakeDispatcher records Dispatch calls and answers from a fixed map.
type fakeDispatcher struct {
	mu      sync.Mutex
	tools   []ToolDescriptor
	results map[string]DispatchResult
	block   bool // when set, Dispatch blocks until ctx is done
	calls   []string
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, name string, _ map[string]any) DispatchResult {
	d.mu.Lock()
	d.calls = append(d.calls, name)
	d.mu.Unlock()
	if d.block {
		<-ctx.Done()
		return DispatchResult{Success: false, Error: ctx.Err().Error()}
	}
	if res, ok := d.results[name]; ok {
		return res
	}
	return DispatchResult{Success: false, Error: fmt.Sprintf("tool not found: %s", name)}
}

func (d *fakeDispatcher) ListAvailable(string) []ToolDescriptor { return d.tools }

func (d *fakeDispatcher) callCount(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c == name {
			n++
		}
	}
	return n
}

// isSelectPrompt and friends identify prompt kinds by their fixed JSON
// shape instructions.
func isSelectPrompt(p string) bool  { return strings.Contains(p, `{"tool": "<name>"`) }
func isSubGoalPrompt(p string) bool { return strings.Contains(p, `{"complete": true|false}`) }
func isGoalPrompt(p string) bool    { return strings.Contains(p, `"achieved": true|false`) }
