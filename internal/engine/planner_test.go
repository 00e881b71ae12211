package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// noSleep removes the settle delay from planner tests.
func noSleep(time.Duration) {}

func TestPlannerAnswersArithmetic(t *testing.T) {
	// End to end with a real agent per step. Step 1 computes through a
	// dispatched calculator tool; step 2 delivers the result via the
	// answer tool, which ends the session.
	gen := &scriptedGen{
		texts: []string{
			// step 1: output cleanup of the calculator result
			"4",
			// step 2: context gathering over the step-1 seed
			"The answer is 4.",
		},
		jsons: []string{
			`["Calculate the answer", "Respond with the result"]`,
			`{"tool":"calculator","parameters":{"expression":"2+2"}}`,
			`{"complete": true}`,
			`{"achieved": true, "confidence": 0.95, "reason": "computed"}`,
			`{"tool":"answer","parameters":{"answer":"4"}}`,
		},
	}
	d := &fakeDispatcher{results: map[string]DispatchResult{
		"calculator": {Success: true, Output: "4"},
	}}
	cfg := Config{Identity: "You are a precise assistant.", Generator: gen, Dispatcher: d}

	m := NewPlannerMachine(cfg, "What is 2 + 2?", "")
	m.sleep = noSleep

	result, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result != "4" {
		t.Errorf("result = %q, want %q", result, "4")
	}
	if m.Context().LastExecutedTool != AnswerToolName {
		t.Errorf("LastExecutedTool = %q, want %q", m.Context().LastExecutedTool, AnswerToolName)
	}
	if d.callCount("calculator") != 1 {
		t.Errorf("calculator dispatched %d times, want 1", d.callCount("calculator"))
	}
}

func TestPlannerContextValidationFailure(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		identity string
	}{
		{"blank message", " ", "identity"},
		{"blank identity", "hello", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Identity: tt.identity, Generator: &scriptedGen{}}
			m := NewPlannerMachine(cfg, tt.message, "")
			m.sleep = noSleep

			_, err := m.Run(context.Background())
			if err == nil || err.Error() != "Context validation failed" {
				t.Errorf("error = %v, want %q", err, "Context validation failed")
			}
		})
	}
}

func TestPlannerEarlyTermination(t *testing.T) {
	// Step 2 ends with a user-interaction tool, so step 3 must never run.
	gen := &scriptedGen{jsons: []string{
		`["gather facts", "answer the user", "tidy up notes"]`,
	}}
	cfg := Config{Identity: "identity", Generator: gen}

	var mu sync.Mutex
	var invoked []string
	m := NewPlannerMachine(cfg, "question", "")
	m.sleep = noSleep
	m.runAgent = func(_ context.Context, goal, _ string) (AgentResult, error) {
		mu.Lock()
		invoked = append(invoked, goal)
		mu.Unlock()
		if goal == "answer the user" {
			return AgentResult{Result: "here you go", LastExecutedTool: AnswerToolName}, nil
		}
		return AgentResult{Result: "facts gathered", LastExecutedTool: "web_search"}, nil
	}

	result, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result != "here you go" {
		t.Errorf("result = %q, want the terminating step's result", result)
	}
	if len(invoked) != 2 || invoked[0] != "gather facts" || invoked[1] != "answer the user" {
		t.Errorf("invoked goals = %v, want first two steps only", invoked)
	}
}

func TestPlannerRunsAllStepsWithoutTerminalTool(t *testing.T) {
	gen := &scriptedGen{jsons: []string{
		`["step one", "step two"]`,
	}}
	cfg := Config{Identity: "identity", Generator: gen}

	m := NewPlannerMachine(cfg, "question", "")
	m.sleep = noSleep
	m.runAgent = func(_ context.Context, goal, _ string) (AgentResult, error) {
		return AgentResult{Result: "result of " + goal, LastExecutedTool: "web_search"}, nil
	}

	result, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result != "result of step two" {
		t.Errorf("result = %q, want the final step's result", result)
	}
	if got := m.Context().StepResults; len(got) != 2 {
		t.Errorf("StepResults = %v, want 2 entries", got)
	}
}

func TestPlannerPlanFallbackOnProviderFailure(t *testing.T) {
	cfg := Config{Identity: "identity", Generator: failingGen{}}

	m := NewPlannerMachine(cfg, "What is 2 + 2?", "")
	m.sleep = noSleep
	m.runAgent = func(_ context.Context, goal, _ string) (AgentResult, error) {
		return AgentResult{Result: "handled: " + goal, LastExecutedTool: AnswerToolName}, nil
	}

	result, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := "handled: Respond to the user's request: What is 2 + 2?"
	if result != want {
		t.Errorf("result = %q, want %q", result, want)
	}
}

func TestPlannerStepFailureIsWrapped(t *testing.T) {
	gen := &scriptedGen{jsons: []string{`["first goal", "second goal"]`}}
	cfg := Config{Identity: "identity", Generator: gen}

	m := NewPlannerMachine(cfg, "question", "")
	m.sleep = noSleep
	m.runAgent = func(context.Context, string, string) (AgentResult, error) {
		return AgentResult{}, NewMachineError("Tool validation failed after max retries")
	}

	_, err := m.Run(context.Background())
	if err == nil {
		t.Fatal("expected failure")
	}
	want := "step 1 (first goal) failed: Tool validation failed after max retries"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestPlannerFinalizer(t *testing.T) {
	t.Run("augmented plan is kept", func(t *testing.T) {
		gen := &scriptedGen{jsons: []string{`["original goal"]`}}
		cfg := Config{
			Identity:  "identity",
			Generator: gen,
			PlanFinalizer: func(_ context.Context, plan []string) ([]string, error) {
				return append(plan, "persona follow-up"), nil
			},
		}
		m := NewPlannerMachine(cfg, "question", "")
		m.sleep = noSleep
		m.runAgent = func(_ context.Context, goal, _ string) (AgentResult, error) {
			return AgentResult{Result: goal, LastExecutedTool: "web_search"}, nil
		}

		if _, err := m.Run(context.Background()); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if got := m.Context().Plan; len(got) != 2 || got[1] != "persona follow-up" {
			t.Errorf("Plan = %v, want augmented plan", got)
		}
	})

	t.Run("finalizer failure keeps the original plan", func(t *testing.T) {
		gen := &scriptedGen{jsons: []string{`["original goal"]`}}
		cfg := Config{
			Identity:  "identity",
			Generator: gen,
			PlanFinalizer: func(context.Context, []string) ([]string, error) {
				return nil, errors.New("finalizer broke")
			},
		}
		m := NewPlannerMachine(cfg, "question", "")
		m.sleep = noSleep
		m.runAgent = func(_ context.Context, goal, _ string) (AgentResult, error) {
			return AgentResult{Result: goal, LastExecutedTool: AnswerToolName}, nil
		}

		if _, err := m.Run(context.Background()); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if got := m.Context().Plan; len(got) != 1 || got[0] != "original goal" {
			t.Errorf("Plan = %v, want original plan", got)
		}
	})

	t.Run("finalizer emitting a blank goal fails plan validation", func(t *testing.T) {
		gen := &scriptedGen{jsons: []string{`["original goal"]`}}
		cfg := Config{
			Identity:  "identity",
			Generator: gen,
			PlanFinalizer: func(context.Context, []string) ([]string, error) {
				return []string{"ok", "   "}, nil
			},
		}
		m := NewPlannerMachine(cfg, "question", "")
		m.sleep = noSleep

		_, err := m.Run(context.Background())
		if err == nil || err.Error() != "Plan validation failed" {
			t.Errorf("error = %v, want %q", err, "Plan validation failed")
		}
	})
}

func TestPlannerFeedsForwardStepResults(t *testing.T) {
	gen := &scriptedGen{jsons: []string{`["step one", "step two"]`}}
	cfg := Config{Identity: "identity", Generator: gen}

	var mu sync.Mutex
	var seeds []string
	m := NewPlannerMachine(cfg, "question", "prior conversation recap")
	m.sleep = noSleep
	m.runAgent = func(_ context.Context, goal, seed string) (AgentResult, error) {
		mu.Lock()
		seeds = append(seeds, seed)
		mu.Unlock()
		return AgentResult{Result: "out of " + goal, LastExecutedTool: "web_search"}, nil
	}

	if _, err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(seeds) != 2 {
		t.Fatalf("runAgent called %d times, want 2", len(seeds))
	}
	if seeds[0] != "prior conversation recap" {
		t.Errorf("first seed = %q, want the session seed only", seeds[0])
	}
	if !strings.Contains(seeds[1], "prior conversation recap") ||
		!strings.Contains(seeds[1], "Result of step 1 (step one): out of step one") {
		t.Errorf("second seed missing step 1 result: %q", seeds[1])
	}
}

func TestPlannerRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := Config{Identity: "identity", Generator: &scriptedGen{}}
	m := NewPlannerMachine(cfg, "question", "")
	m.sleep = noSleep

	_, err := m.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}
