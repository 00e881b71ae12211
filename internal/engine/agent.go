package engine

import (
	"context"
	"fmt"
)

// AgentState is the explicit state of the per-goal tactical loop.
type AgentState string

const (
	AgentStateValidateContext         AgentState = "validate_context"
	AgentStateGatheringContext        AgentState = "gathering_context"
	AgentStateDeterminingSubGoal      AgentState = "determining_sub_goal"
	AgentStateSelectingTool           AgentState = "selecting_tool"
	AgentStateValidatingTool          AgentState = "validating_tool"
	AgentStateExecutingTool           AgentState = "executing_tool"
	AgentStateProcessingOutput        AgentState = "processing_output"
	AgentStateEvaluatingSubGoal       AgentState = "evaluating_sub_goal"
	AgentStateEvaluatingStrategicGoal AgentState = "evaluating_strategic_goal"
	AgentStateDone                    AgentState = "done"
	AgentStateFailed                  AgentState = "failed"
)

// agentEffect names the async action the run loop must perform after a
// transition. effectNone marks synchronous states.
type agentEffect int

const (
	effectNone agentEffect = iota
	effectGather
	effectDetermineSubGoal
	effectSelectTool
	effectExecuteTool
	effectProcessOutput
	effectEvaluateSubGoal
	effectEvaluateGoal
)

// agentEvent feeds an effect's outcome back into the transition
// function.
type agentEvent struct {
	tool       *AgenticTool
	exec       ToolExecutionResult
	text       string
	complete   bool
	completion GoalCompletionResult
	err        error
}

// agentTransition is the pure transition function of the Agent machine:
// given the current state, the run's context and the event produced by
// the state's effect, it mutates the context and returns the next state
// plus the effect to run there. It performs no I/O.
func agentTransition(state AgentState, c *AgentContext, ev agentEvent) (AgentState, agentEffect) {
	switch state {
	case AgentStateValidateContext:
		if !AgentContextValid(c) {
			return fail(c, "Context validation failed")
		}
		return enterGathering(c)

	case AgentStateGatheringContext:
		// The gather action degrades internally and never errors.
		c.GatheredContext = ev.text
		return AgentStateDeterminingSubGoal, effectDetermineSubGoal

	case AgentStateDeterminingSubGoal:
		if ev.err != nil {
			if CanRetry(c.RetryCount) {
				c.RetryCount++
				return AgentStateDeterminingSubGoal, effectDetermineSubGoal
			}
			return fail(c, "Sub-goal determination failed after max retries")
		}
		c.SubGoal = ev.text
		c.RetryCount = 0
		return AgentStateSelectingTool, effectSelectTool

	case AgentStateSelectingTool:
		if ev.err != nil {
			if CanRetry(c.RetryCount) {
				c.RetryCount++
				return AgentStateSelectingTool, effectSelectTool
			}
			return fail(c, "Tool selection failed after max retries")
		}
		c.SelectedTool = ev.tool
		return AgentStateValidatingTool, effectNone

	case AgentStateValidatingTool:
		if IsToolValid(c.SelectedTool) {
			return AgentStateExecutingTool, effectExecuteTool
		}
		if CanRetry(c.RetryCount) {
			c.RetryCount++
			return AgentStateSelectingTool, effectSelectTool
		}
		return fail(c, "Tool validation failed after max retries")

	case AgentStateExecutingTool:
		if !ev.exec.Success {
			// Re-selecting beats re-running the same failing call.
			if CanRetry(c.RetryCount) {
				c.RetryCount++
				return AgentStateSelectingTool, effectSelectTool
			}
			return fail(c, "Tool execution failed after max retries: %s", ev.exec.Error)
		}
		c.ToolOutput = ev.exec.Output
		c.LastExecutedTool = c.SelectedTool.Name
		return AgentStateProcessingOutput, effectProcessOutput

	case AgentStateProcessingOutput:
		// Processing degrades to raw truncated output, never errors.
		c.ProcessedOutput = ev.text
		if IsTerminalTool(c.LastExecutedTool, c.TerminalTools) {
			// The evaluator's verdict would be ignored; skip the call.
			return AgentStateEvaluatingSubGoal, effectNone
		}
		return AgentStateEvaluatingSubGoal, effectEvaluateSubGoal

	case AgentStateEvaluatingSubGoal:
		// A terminal user-interaction tool overrides the evaluator's
		// verdict: its raw output is the final result.
		if IsTerminalTool(c.LastExecutedTool, c.TerminalTools) {
			c.CompletedSubGoals = append(c.CompletedSubGoals, c.SubGoal)
			c.LastProgressCycle = c.CycleCount
			c.Result = c.ToolOutput
			return AgentStateDone, effectNone
		}
		if ev.err == nil && ev.complete {
			c.CompletedSubGoals = append(c.CompletedSubGoals, c.SubGoal)
			c.LastProgressCycle = c.CycleCount
			return AgentStateEvaluatingStrategicGoal, effectEvaluateGoal
		}
		if ev.err != nil {
			appendMemory(c, fmt.Sprintf("Sub-goal evaluation failed for %q; keeping output: %s", c.SubGoal, Truncate(c.ProcessedOutput, 500)))
		} else {
			appendMemory(c, fmt.Sprintf("Sub-goal %q needs more work. Latest output: %s", c.SubGoal, Truncate(c.ProcessedOutput, 500)))
		}
		c.RetryCount = 0
		return enterGathering(c)

	case AgentStateEvaluatingStrategicGoal:
		if ev.err == nil && ev.completion.Achieved {
			completion := ev.completion
			c.Completion = &completion
			c.LastProgressCycle = c.CycleCount
			c.Result = c.ProcessedOutput
			return AgentStateDone, effectNone
		}
		note := fmt.Sprintf("Progress on %q: completed %d sub-goal(s), goal not yet achieved.", c.Goal, len(c.CompletedSubGoals))
		if ev.err == nil && ev.completion.Reason != "" {
			note += " Evaluator: " + ev.completion.Reason
		}
		appendMemory(c, note)
		c.RetryCount = 0
		return enterGathering(c)
	}

	return state, effectNone
}

// enterGathering applies the gather state's entry logic: bump the cycle
// counter and apply the stagnation valve before any network call is
// spent.
func enterGathering(c *AgentContext) (AgentState, agentEffect) {
	c.CycleCount++
	if ShouldStopForStagnation(c.CycleCount, c.LastProgressCycle, c.MaxCycles) {
		c.Stagnated = true
		return fail(c, "Stopped due to stagnation: %d cycles, last progress at cycle %d", c.CycleCount, c.LastProgressCycle)
	}
	return AgentStateGatheringContext, effectGather
}

func fail(c *AgentContext, format string, args ...any) (AgentState, agentEffect) {
	c.FailureReason = fmt.Sprintf(format, args...)
	return AgentStateFailed, effectNone
}

func appendMemory(c *AgentContext, note string) {
	if c.WorkingMemory == "" {
		c.WorkingMemory = note
		return
	}
	c.WorkingMemory += "\n" + note
}

// AgentMachine drives one strategic goal to a terminal state.
type AgentMachine struct {
	actions  *Actions
	executor *Executor
	cfg      Config
	c        *AgentContext
}

// NewAgentMachine builds the tactical machine for one strategic goal.
// memorySeed becomes the run's initial working memory.
func NewAgentMachine(cfg Config, message, goal, memorySeed string) *AgentMachine {
	return &AgentMachine{
		actions:  NewActions(cfg.Generator, cfg.Identity, cfg.GenOptions),
		executor: NewExecutor(cfg.Dispatcher, cfg.toolTimeout()),
		cfg:      cfg,
		c: &AgentContext{
			Message:       message,
			Goal:          goal,
			WorkingMemory: memorySeed,
			MaxCycles:     cfg.maxCycles(),
			TerminalTools: cfg.terminalTools(),
		},
	}
}

// Context exposes the run's context for inspection after Run returns.
// Callers must treat it as read-only.
func (m *AgentMachine) Context() *AgentContext { return m.c }

// Run executes the machine to a terminal state. It returns the result on
// Done and a *MachineError on Failed; cancellation of ctx surfaces as a
// failure of the run, not of an individual state.
func (m *AgentMachine) Run(ctx context.Context) (AgentResult, error) {
	state := AgentStateValidateContext
	var ev agentEvent

	for {
		if err := ctx.Err(); err != nil {
			return AgentResult{}, fmt.Errorf("agent run cancelled: %w", err)
		}

		prevRetry := m.c.RetryCount
		next, effect := agentTransition(state, m.c, ev)
		m.cfg.Hooks.OnAgentTransition(ctx, m.c, state, next)
		if m.c.RetryCount > prevRetry {
			m.cfg.Hooks.OnRetry(ctx, string(state), m.c.RetryCount)
		}
		state = next

		switch state {
		case AgentStateDone:
			res := AgentResult{Result: m.c.Result, LastExecutedTool: m.c.LastExecutedTool}
			m.cfg.Hooks.OnAgentDone(ctx, m.c, res)
			return res, nil
		case AgentStateFailed:
			m.cfg.Hooks.OnAgentFailed(ctx, m.c, m.c.FailureReason)
			return AgentResult{}, &MachineError{Reason: m.c.FailureReason, Stagnation: m.c.Stagnated}
		}

		ev = m.perform(ctx, effect)
	}
}

// perform runs one effect and wraps its outcome as the next event.
// Synchronous states carry effectNone and produce an empty event.
func (m *AgentMachine) perform(ctx context.Context, effect agentEffect) agentEvent {
	c := m.c
	switch effect {
	case effectGather:
		return agentEvent{text: m.actions.GatherContext(ctx, c.Goal, c.WorkingMemory, c.CompletedSubGoals, c.Message)}

	case effectDetermineSubGoal:
		sub, err := m.actions.DetermineSubGoal(ctx, c.Goal, c.GatheredContext, c.CompletedSubGoals, c.Message)
		return agentEvent{text: sub, err: err}

	case effectSelectTool:
		tool, err := m.actions.SelectTool(ctx, c.SubGoal, m.availableTools(), c.GatheredContext, c.Message)
		return agentEvent{tool: tool, err: err}

	case effectExecuteTool:
		m.cfg.Hooks.OnToolCall(ctx, c.SelectedTool)
		res := m.executor.Execute(ctx, c.SelectedTool)
		m.cfg.Hooks.OnToolResult(ctx, c.SelectedTool, res)
		return agentEvent{exec: res}

	case effectProcessOutput:
		return agentEvent{text: m.actions.ProcessOutput(ctx, c.SelectedTool, c.ToolOutput, c.SubGoal, c.Message)}

	case effectEvaluateSubGoal:
		complete, err := m.actions.EvaluateSubGoal(ctx, c.SubGoal, c.ToolOutput)
		return agentEvent{complete: complete, err: err}

	case effectEvaluateGoal:
		res, err := m.actions.EvaluateGoal(ctx, c.Goal, c.CompletedSubGoals, c.ProcessedOutput)
		return agentEvent{completion: res, err: err}
	}
	return agentEvent{}
}

// availableTools merges the always-present user-interaction tools with
// whatever the dispatcher exposes for this persona.
func (m *AgentMachine) availableTools() []ToolDescriptor {
	tools := []ToolDescriptor{
		{Name: AnswerToolName, Description: "Deliver the final answer to the user. Parameters: {\"answer\": string}."},
		{Name: AskQuestionToolName, Description: "Ask the user one clarifying question. Parameters: {\"question\": string}."},
	}
	if m.cfg.Dispatcher != nil {
		tools = append(tools, m.cfg.Dispatcher.ListAvailable(m.cfg.PersonaID)...)
	}
	return tools
}
