package engine

import (
	"context"
	"log"
)

// Hook observes machine execution. Implement NopHook and override what
// you need.
type Hook interface {
	OnAgentTransition(ctx context.Context, c *AgentContext, from, to AgentState)
	OnPlannerTransition(ctx context.Context, c *PlannerContext, from, to PlannerState)
	OnToolCall(ctx context.Context, tool *AgenticTool)
	OnToolResult(ctx context.Context, tool *AgenticTool, res ToolExecutionResult)
	OnRetry(ctx context.Context, state string, attempt int)
	OnAgentDone(ctx context.Context, c *AgentContext, res AgentResult)
	OnAgentFailed(ctx context.Context, c *AgentContext, reason string)
	OnPlannerDone(ctx context.Context, c *PlannerContext, result string)
	OnPlannerFailed(ctx context.Context, c *PlannerContext, reason string)
}

// NopHook lets you implement only the hooks you need.
type NopHook struct{}

func (NopHook) OnAgentTransition(context.Context, *AgentContext, AgentState, AgentState)         {}
func (NopHook) OnPlannerTransition(context.Context, *PlannerContext, PlannerState, PlannerState) {}
func (NopHook) OnToolCall(context.Context, *AgenticTool)                                         {}
func (NopHook) OnToolResult(context.Context, *AgenticTool, ToolExecutionResult)                  {}
func (NopHook) OnRetry(context.Context, string, int)                                             {}
func (NopHook) OnAgentDone(context.Context, *AgentContext, AgentResult)                          {}
func (NopHook) OnAgentFailed(context.Context, *AgentContext, string)                             {}
func (NopHook) OnPlannerDone(context.Context, *PlannerContext, string)                           {}
func (NopHook) OnPlannerFailed(context.Context, *PlannerContext, string)                         {}

// Hooks broadcasts to every registered hook.
type Hooks []Hook

func (hs Hooks) OnAgentTransition(ctx context.Context, c *AgentContext, from, to AgentState) {
	for _, h := range hs {
		h.OnAgentTransition(ctx, c, from, to)
	}
}
func (hs Hooks) OnPlannerTransition(ctx context.Context, c *PlannerContext, from, to PlannerState) {
	for _, h := range hs {
		h.OnPlannerTransition(ctx, c, from, to)
	}
}
func (hs Hooks) OnToolCall(ctx context.Context, tool *AgenticTool) {
	for _, h := range hs {
		h.OnToolCall(ctx, tool)
	}
}
func (hs Hooks) OnToolResult(ctx context.Context, tool *AgenticTool, res ToolExecutionResult) {
	for _, h := range hs {
		h.OnToolResult(ctx, tool, res)
	}
}
func (hs Hooks) OnRetry(ctx context.Context, state string, attempt int) {
	for _, h := range hs {
		h.OnRetry(ctx, state, attempt)
	}
}
func (hs Hooks) OnAgentDone(ctx context.Context, c *AgentContext, res AgentResult) {
	for _, h := range hs {
		h.OnAgentDone(ctx, c, res)
	}
}
func (hs Hooks) OnAgentFailed(ctx context.Context, c *AgentContext, reason string) {
	for _, h := range hs {
		h.OnAgentFailed(ctx, c, reason)
	}
}
func (hs Hooks) OnPlannerDone(ctx context.Context, c *PlannerContext, result string) {
	for _, h := range hs {
		h.OnPlannerDone(ctx, c, result)
	}
}
func (hs Hooks) OnPlannerFailed(ctx context.Context, c *PlannerContext, reason string) {
	for _, h := range hs {
		h.OnPlannerFailed(ctx, c, reason)
	}
}

// LogHook prints machine progress to the standard logger.
type LogHook struct {
	NopHook
	Persona string
}

func (h LogHook) OnAgentTransition(_ context.Context, c *AgentContext, from, to AgentState) {
	if from != to {
		log.Printf("🤖 [%s] agent %s -> %s (cycle %d)", h.Persona, from, to, c.CycleCount)
	}
}
func (h LogHook) OnPlannerTransition(_ context.Context, c *PlannerContext, from, to PlannerState) {
	if from != to {
		log.Printf("🗺️  [%s] planner %s -> %s (step %d/%d)", h.Persona, from, to, c.StepIndex+1, len(c.Plan))
	}
}
func (h LogHook) OnToolCall(_ context.Context, tool *AgenticTool) {
	log.Printf("🔧 [%s] executing tool %s", h.Persona, tool.Name)
}
func (h LogHook) OnToolResult(_ context.Context, tool *AgenticTool, res ToolExecutionResult) {
	if res.Success {
		log.Printf("✅ [%s] tool %s ok in %s", h.Persona, tool.Name, res.Duration)
	} else {
		log.Printf("❌ [%s] tool %s failed: %s", h.Persona, tool.Name, res.Error)
	}
}
func (h LogHook) OnRetry(_ context.Context, state string, attempt int) {
	log.Printf("🔁 [%s] retry %d/%d in %s", h.Persona, attempt, MaxRetries, state)
}
func (h LogHook) OnPlannerDone(_ context.Context, _ *PlannerContext, result string) {
	log.Printf("🏁 [%s] planner done: %s", h.Persona, Truncate(result, 200))
}
func (h LogHook) OnPlannerFailed(_ context.Context, _ *PlannerContext, reason string) {
	log.Printf("💥 [%s] planner failed: %s", h.Persona, reason)
}
