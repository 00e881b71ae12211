package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/choruslabs/chorus/internal/prompts"
)

// Actions are the async units invoked from machine states. Every action
// that calls the text generator degrades to a deterministic fallback on
// provider failure, so a generation outage never aborts the machine by
// itself.
type Actions struct {
	gen    TextGenerator
	system string // persona identity / system prompt
	opts   GenOptions
}

// NewActions binds the step actions to a generator and persona identity.
func NewActions(gen TextGenerator, system string, opts GenOptions) *Actions {
	return &Actions{gen: gen, system: system, opts: opts}
}

// GatherContext produces the focused context for the next cycle. With an
// empty working memory there is nothing to distill, so the raw user
// message is returned without a generator call.
func (a *Actions) GatherContext(ctx context.Context, goal, workingMemory string, completedSubGoals []string, message string) string {
	if isBlank(workingMemory) {
		return message
	}
	out, err := a.gen.Generate(ctx, prompts.GatherContext(goal, workingMemory, completedSubGoals, message), a.system, a.opts)
	if err != nil || isBlank(out) {
		return fallbackContext(goal, workingMemory, completedSubGoals)
	}
	return out
}

// fallbackContext is the deterministic, data-only stand-in for a failed
// context extraction.
func fallbackContext(goal, workingMemory string, completedSubGoals []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Strategic Goal: %s\n", goal)
	fmt.Fprintf(&b, "Working Memory: %s\n", workingMemory)
	fmt.Fprintf(&b, "Completed Sub-goals: %s\n", strings.Join(completedSubGoals, "; "))
	return b.String()
}

// simpleActionVerbs are goal openers that already name a concrete
// action; such goals become their own sub-goal without a generator call.
var simpleActionVerbs = []string{
	"read", "search", "analyze", "summarize", "respond", "answer",
	"ask", "calculate", "find", "list", "check", "fetch", "say", "write",
}

func startsWithSimpleVerb(goal string) bool {
	first := strings.ToLower(strings.TrimSpace(goal))
	if i := strings.IndexAny(first, " \t"); i >= 0 {
		first = first[:i]
	}
	first = strings.TrimRight(first, ".,:;!?")
	for _, v := range simpleActionVerbs {
		if first == v {
			return true
		}
	}
	return false
}

// DetermineSubGoal picks the single next actionable step. A provider
// failure degrades to "Work towards: <goal>"; a blank answer is reported
// as an error so the machine's retry guard applies.
func (a *Actions) DetermineSubGoal(ctx context.Context, goal, gathered string, completedSubGoals []string, message string) (string, error) {
	if startsWithSimpleVerb(goal) {
		return goal, nil
	}
	out, err := a.gen.Generate(ctx, prompts.DetermineSubGoal(goal, gathered, completedSubGoals, message), a.system, a.opts)
	if err != nil {
		return fmt.Sprintf("Work towards: %s", goal), nil
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("sub-goal determination returned empty output")
	}
	return out, nil
}

// SelectTool asks for a tool name plus parameters as JSON. On any
// generation or parse failure it falls back to the answer tool if
// available, otherwise the first available tool, with empty parameters.
func (a *Actions) SelectTool(ctx context.Context, subGoal string, available []ToolDescriptor, gathered, message string) (*AgenticTool, error) {
	if len(available) == 0 {
		return nil, fmt.Errorf("no tools available for selection")
	}

	options := make([]prompts.ToolOption, 0, len(available))
	for _, d := range available {
		options = append(options, prompts.ToolOption{Name: d.Name, Description: d.Description})
	}

	var tool AgenticTool
	err := a.gen.GenerateJSON(ctx, prompts.SelectTool(subGoal, options, gathered, message), a.system, a.opts, &tool)
	if err != nil || isBlank(tool.Name) {
		return fallbackTool(available), nil
	}
	if tool.Parameters == nil {
		tool.Parameters = map[string]any{}
	}
	return &tool, nil
}

func fallbackTool(available []ToolDescriptor) *AgenticTool {
	name := available[0].Name
	for _, d := range available {
		if d.Name == AnswerToolName {
			name = d.Name
			break
		}
	}
	return &AgenticTool{Name: name, Parameters: map[string]any{}}
}

// EvaluateSubGoal asks whether the state the sub-goal targets now holds,
// not merely whether the action ran. On failure it degrades to "any
// output counts".
func (a *Actions) EvaluateSubGoal(ctx context.Context, subGoal, toolOutput string) (bool, error) {
	var verdict struct {
		Complete bool `json:"complete"`
	}
	err := a.gen.GenerateJSON(ctx, prompts.EvaluateSubGoal(subGoal, toolOutput), a.system, a.opts, &verdict)
	if err != nil {
		return len(toolOutput) > 0, err
	}
	return verdict.Complete, nil
}

// EvaluateGoal produces the strategic-goal verdict with a confidence
// score and optional discovery. The degraded fallback is deliberately
// low-confidence.
func (a *Actions) EvaluateGoal(ctx context.Context, goal string, completedSubGoals []string, processedOutput string) (GoalCompletionResult, error) {
	var res GoalCompletionResult
	err := a.gen.GenerateJSON(ctx, prompts.EvaluateGoal(goal, completedSubGoals, processedOutput), a.system, a.opts, &res)
	if err != nil {
		return GoalCompletionResult{
			Achieved:   len(completedSubGoals) > 0 && processedOutput != "",
			Confidence: 0.3,
			Reason:     "goal evaluation degraded: " + err.Error(),
		}, err
	}
	return res, nil
}

// CreatePlan asks for the ordered strategic plan. On failure the plan
// degrades to a single goal wrapping the raw message.
func (a *Actions) CreatePlan(ctx context.Context, message string) []string {
	var plan []string
	err := a.gen.GenerateJSON(ctx, prompts.CreatePlan(message), a.system, a.opts, &plan)
	if err != nil || len(plan) == 0 {
		return []string{fmt.Sprintf("Respond to the user's request: %s", message)}
	}
	return plan
}
