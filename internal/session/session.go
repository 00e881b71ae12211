// Package session runs one transient planning session per user request:
// it builds a Planner for a persona, drives it to a terminal state, and
// delivers the result (or the single explanatory error) to the message
// store. Sessions keep no state across process restarts.
package session

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/choruslabs/chorus/internal/engine"
	"github.com/choruslabs/chorus/internal/msgstore"
	"github.com/choruslabs/chorus/internal/persona"
)

// Outcome is what the caller gets back: exactly one of Result or Err is
// meaningful; no intermediate machine state is exposed.
type Outcome struct {
	SessionID string
	Persona   string
	Result    string
	Err       error
	Elapsed   time.Duration
}

// Runner executes sessions for one persona.
type Runner struct {
	persona persona.Persona
	cfg     engine.Config
	store   *msgstore.Store // optional result sink
}

// NewRunner wires a persona's collaborators into a session runner.
func NewRunner(p persona.Persona, gen engine.TextGenerator, dispatcher engine.Dispatcher, store *msgstore.Store, hooks engine.Hooks) *Runner {
	return &Runner{
		persona: p,
		store:   store,
		cfg: engine.Config{
			PersonaID:  p.ID,
			Identity:   p.Identity,
			Generator:  gen,
			Dispatcher: dispatcher,
			Hooks:      hooks,
			GenOptions: engine.GenOptions{
				Temperature: p.Temperature,
				MaxTokens:   p.MaxTokens,
			},
		},
	}
}

// Run executes one user message through a fresh Planner. memorySeed is
// the caller-supplied initial working memory, typically empty or a
// short recap of the conversation so far.
func (r *Runner) Run(ctx context.Context, message, memorySeed string) Outcome {
	start := time.Now()
	out := Outcome{
		SessionID: uuid.NewString(),
		Persona:   r.persona.ID,
	}

	result, err := engine.NewPlannerMachine(r.cfg, message, memorySeed).Run(ctx)
	out.Result = result
	out.Err = err
	out.Elapsed = time.Since(start)

	r.deliver(ctx, out)
	return out
}

// deliver publishes the outcome to the persona's voice topic. Delivery
// failures are logged, not fatal: the caller still holds the outcome.
func (r *Runner) deliver(ctx context.Context, out Outcome) {
	if r.store == nil || r.persona.VoiceTopic == "" {
		return
	}
	body := out.Result
	if out.Err != nil {
		body = fmt.Sprintf("I couldn't finish that: %s", out.Err.Error())
	}
	if _, err := r.store.Publish(ctx, r.persona.VoiceTopic, r.persona.ID, body); err != nil {
		log.Printf("⚠️  [%s] failed to deliver session %s result: %v", r.persona.ID, out.SessionID, err)
	}
}
