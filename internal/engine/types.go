// Package engine implements the two-level planner/agent execution loop
// that drives a persona: a Planner decomposes a user request into an
// ordered list of strategic goals, and an Agent works each goal through a
// bounded gather -> plan -> select -> validate -> execute -> process ->
// evaluate cycle. Both machines are explicit state machines with a pure
// transition function; all I/O happens in effects run by the machine's
// run loop.
package engine

import (
	"context"
	"time"
)

// Numeric policy shared by both machines.
const (
	// MaxRetries is the retry ceiling per logical step. The counter
	// resets whenever the step changes and forces a terminal failure
	// once exhausted.
	MaxRetries = 3

	// DefaultMaxCycles is the Agent's hard cycle ceiling.
	DefaultMaxCycles = 30

	// StagnationWindow is the number of cycles the Agent may run
	// without evaluated progress before it is forced to stop.
	StagnationWindow = 5

	// MaxProcessedOutputChars is the hard truncation limit applied to
	// every processed tool output.
	MaxProcessedOutputChars = 10000

	// DefaultToolTimeout bounds a single tool execution.
	DefaultToolTimeout = 30 * time.Second
)

// Tool names the engine recognizes literally.
const (
	// AnswerToolName delivers the final answer to the user. The
	// executor answers it directly from its "answer" parameter and its
	// execution terminates the Agent run and, via early termination,
	// the Planner run.
	AnswerToolName = "answer"

	// AskQuestionToolName asks the user a clarifying question. Same
	// terminal semantics as AnswerToolName; answered directly from its
	// "question" parameter.
	AskQuestionToolName = "ask_question"

	// ReadWebpageToolName fetches pages; requires a non-empty "urls"
	// array.
	ReadWebpageToolName = "read_webpage"

	// WebSearchToolName searches the web; requires a non-empty "query"
	// string.
	WebSearchToolName = "web_search"
)

// DefaultTerminalTools returns the tools whose execution ends an Agent
// run immediately, bypassing the sub-goal evaluator's verdict.
func DefaultTerminalTools() []string {
	return []string{AnswerToolName, AskQuestionToolName}
}

// AgenticTool is a single tool call: a name plus a parameter map of
// unconstrained shape. It is immutable once selected for a cycle.
type AgenticTool struct {
	Name       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
}

// ToolExecutionResult is the normalized outcome of one Execute call. It
// is produced exactly once per execution and never mutated after return.
type ToolExecutionResult struct {
	Success  bool
	Output   string
	Error    string
	Duration time.Duration
}

// DiscoveryType classifies a discovery surfaced by the strategic-goal
// evaluator.
type DiscoveryType string

const (
	DiscoveryOpportunity   DiscoveryType = "opportunity"
	DiscoveryObstacle      DiscoveryType = "obstacle"
	DiscoveryImpossibility DiscoveryType = "impossibility"
)

// Discovery is optional metadata attached to a goal evaluation.
type Discovery struct {
	Type    DiscoveryType `json:"type"`
	Details string        `json:"details"`
}

// GoalCompletionResult is the strategic-goal evaluator's verdict.
type GoalCompletionResult struct {
	Achieved   bool       `json:"achieved"`
	Confidence float64    `json:"confidence"`
	Reason     string     `json:"reason"`
	Discovery  *Discovery `json:"discovery,omitempty"`
}

// AgentContext holds all mutable state of one strategic-goal execution.
// It is owned exclusively by the Agent run that created it; nothing else
// may mutate it.
type AgentContext struct {
	Message string // the original user message
	Goal    string // the single strategic goal this run serves

	SubGoal         string // current tactical sub-goal
	WorkingMemory   string // accumulating context and progress notes
	GatheredContext string // focused context produced this cycle

	SelectedTool     *AgenticTool
	ToolOutput       string // raw output of the last execution
	ProcessedOutput  string
	LastExecutedTool string

	CompletedSubGoals []string

	RetryCount        int // resets on every sub-goal change
	CycleCount        int // monotonically increasing
	LastProgressCycle int // last cycle that reached strategic evaluation
	MaxCycles         int

	TerminalTools []string

	Completion    *GoalCompletionResult
	Result        string
	FailureReason string
	Stagnated     bool
}

// AgentResult is the Agent's terminal output on success.
type AgentResult struct {
	Result           string
	LastExecutedTool string
}

// PlannerContext holds all mutable state of one planning session. It is
// created at session start, mutated only by Planner transitions, and
// discarded when the session reaches Done or Failed.
type PlannerContext struct {
	Message  string
	Identity string // persona identity; required by context validation

	Plan        []string
	StepIndex   int
	CurrentGoal string

	LastResult       string
	LastExecutedTool string
	StepResults      []string

	MemorySeed string // initial working memory supplied by the caller

	FailureReason string
}

// GenOptions carries the knobs forwarded to the text generator.
type GenOptions struct {
	Temperature float32
	MaxTokens   int
}

// TextGenerator is the text-generation collaborator. Implementations own
// their network retry; the engine treats any returned error as a
// per-state retry or fallback trigger.
type TextGenerator interface {
	Generate(ctx context.Context, prompt, system string, opts GenOptions) (string, error)
	// GenerateJSON asks for a JSON response and unmarshals it into out.
	GenerateJSON(ctx context.Context, prompt, system string, opts GenOptions, out any) error
}

// ToolDescriptor describes one dispatchable capability for tool-selection
// prompts.
type ToolDescriptor struct {
	Name        string
	Description string
}

// DispatchResult is what the capability dispatcher returns for a tool
// call.
type DispatchResult struct {
	Success bool
	Output  string
	Error   string
}

// Dispatcher is the capability-dispatch collaborator. Dispatch must be
// safe to call with an unknown tool name and return a "not found"
// failure rather than panicking.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, params map[string]any) DispatchResult
	ListAvailable(personaID string) []ToolDescriptor
}

// PlanFinalizer optionally augments a freshly created plan for a
// specific persona. Any error is swallowed and the original plan kept.
type PlanFinalizer func(ctx context.Context, plan []string) ([]string, error)

// Config assembles the collaborators and knobs for one Planner/Agent
// pair. One Config is built per session; there is no process-wide
// registry.
type Config struct {
	PersonaID     string // registry key for capability allowlists
	Identity      string // persona identity / system prompt
	Generator     TextGenerator
	Dispatcher    Dispatcher
	Hooks         Hooks
	GenOptions    GenOptions
	MaxCycles     int           // 0 = DefaultMaxCycles
	ToolTimeout   time.Duration // 0 = DefaultToolTimeout
	TerminalTools []string      // nil = DefaultTerminalTools()
	PlanFinalizer PlanFinalizer // optional
}

func (c Config) maxCycles() int {
	if c.MaxCycles > 0 {
		return c.MaxCycles
	}
	return DefaultMaxCycles
}

func (c Config) toolTimeout() time.Duration {
	if c.ToolTimeout > 0 {
		return c.ToolTimeout
	}
	return DefaultToolTimeout
}

func (c Config) terminalTools() []string {
	if len(c.TerminalTools) > 0 {
		return c.TerminalTools
	}
	return DefaultTerminalTools()
}
