package engine

import (
	"context"
	"fmt"
	"time"
)

// PlannerState is the explicit state of the top-level planning loop.
type PlannerState string

const (
	PlannerStateValidateContext        PlannerState = "validate_context"
	PlannerStateCreatingPlan           PlannerState = "creating_plan"
	PlannerStateFinalizingPlan         PlannerState = "finalizing_plan"
	PlannerStateValidatePlan           PlannerState = "validate_plan"
	PlannerStateInitializingExecution  PlannerState = "initializing_execution"
	PlannerStateInvokingAgent          PlannerState = "invoking_agent"
	PlannerStateEvaluatingProgress     PlannerState = "evaluating_progress"
	PlannerStateCheckingPlanCompletion PlannerState = "checking_plan_completion"
	PlannerStateHandleFailure          PlannerState = "handle_failure"
	PlannerStateDone                   PlannerState = "done"
	PlannerStateFailed                 PlannerState = "failed"
)

type plannerEffect int

const (
	plannerEffectNone plannerEffect = iota
	plannerEffectCreatePlan
	plannerEffectFinalizePlan
	plannerEffectSettle
	plannerEffectRunAgent
)

type plannerEvent struct {
	plan     []string
	agent    AgentResult
	agentErr error
	err      error
}

// settleDelay gives external services a beat between plan creation and
// the first agent run.
const settleDelay = 100 * time.Millisecond

// plannerTransition is the pure transition function of the Planner
// machine, mirroring agentTransition's shape.
func plannerTransition(state PlannerState, c *PlannerContext, ev plannerEvent, terminal []string) (PlannerState, plannerEffect) {
	switch state {
	case PlannerStateValidateContext:
		if !PlannerContextValid(c) {
			c.FailureReason = "Context validation failed"
			return PlannerStateFailed, plannerEffectNone
		}
		return PlannerStateCreatingPlan, plannerEffectCreatePlan

	case PlannerStateCreatingPlan:
		// Plan creation degrades internally to a single wrapped goal.
		c.Plan = ev.plan
		return PlannerStateFinalizingPlan, plannerEffectFinalizePlan

	case PlannerStateFinalizingPlan:
		// Persona-specific augmentation is best effort; any failure
		// keeps the original plan.
		if ev.err == nil && len(ev.plan) > 0 {
			c.Plan = ev.plan
		}
		return PlannerStateValidatePlan, plannerEffectNone

	case PlannerStateValidatePlan:
		if !planValid(c.Plan) {
			c.FailureReason = "Plan validation failed"
			return PlannerStateFailed, plannerEffectNone
		}
		return PlannerStateInitializingExecution, plannerEffectSettle

	case PlannerStateInitializingExecution:
		c.StepIndex = 0
		c.CurrentGoal = c.Plan[0]
		c.LastResult = ""
		c.LastExecutedTool = ""
		c.FailureReason = ""
		return PlannerStateInvokingAgent, plannerEffectRunAgent

	case PlannerStateInvokingAgent:
		if ev.agentErr != nil {
			c.FailureReason = ev.agentErr.Error()
		} else {
			c.LastResult = ev.agent.Result
			c.LastExecutedTool = ev.agent.LastExecutedTool
		}
		return PlannerStateEvaluatingProgress, plannerEffectNone

	case PlannerStateEvaluatingProgress:
		if c.FailureReason != "" {
			return PlannerStateHandleFailure, plannerEffectNone
		}
		c.StepResults = append(c.StepResults, c.LastResult)
		return PlannerStateCheckingPlanCompletion, plannerEffectNone

	case PlannerStateHandleFailure:
		c.FailureReason = fmt.Sprintf("step %d (%s) failed: %s", c.StepIndex+1, c.CurrentGoal, c.FailureReason)
		return PlannerStateFailed, plannerEffectNone

	case PlannerStateCheckingPlanCompletion:
		// A user-interaction tool already answered; remaining steps are
		// moot.
		if ShouldTerminateEarly(c.LastExecutedTool, terminal) {
			return PlannerStateDone, plannerEffectNone
		}
		if c.StepIndex+1 < len(c.Plan) {
			c.StepIndex++
			c.CurrentGoal = c.Plan[c.StepIndex]
			c.LastResult = ""
			c.LastExecutedTool = ""
			return PlannerStateInvokingAgent, plannerEffectRunAgent
		}
		return PlannerStateDone, plannerEffectNone
	}

	return state, plannerEffectNone
}

func planValid(plan []string) bool {
	if len(plan) == 0 {
		return false
	}
	for _, goal := range plan {
		if isBlank(goal) {
			return false
		}
	}
	return true
}

// PlannerMachine owns one planning session: it builds the strategic
// plan and drives one AgentMachine per step, feeding forward accumulated
// step results as working memory.
type PlannerMachine struct {
	actions *Actions
	cfg     Config
	c       *PlannerContext

	// runAgent is swappable for tests; the default spawns a real
	// AgentMachine per step.
	runAgent func(ctx context.Context, goal, memorySeed string) (AgentResult, error)
	sleep    func(time.Duration)
}

// NewPlannerMachine builds a planning session for one user message.
// memorySeed is the caller-supplied initial working memory.
func NewPlannerMachine(cfg Config, message, memorySeed string) *PlannerMachine {
	m := &PlannerMachine{
		actions: NewActions(cfg.Generator, cfg.Identity, cfg.GenOptions),
		cfg:     cfg,
		c: &PlannerContext{
			Message:    message,
			Identity:   cfg.Identity,
			MemorySeed: memorySeed,
		},
		sleep: time.Sleep,
	}
	m.runAgent = func(ctx context.Context, goal, seed string) (AgentResult, error) {
		return NewAgentMachine(cfg, message, goal, seed).Run(ctx)
	}
	return m
}

// Context exposes the session context for inspection after Run returns.
// Callers must treat it as read-only.
func (m *PlannerMachine) Context() *PlannerContext { return m.c }

// Run executes the planning session to a terminal state: the final
// result string on Done, a *MachineError on Failed.
func (m *PlannerMachine) Run(ctx context.Context) (string, error) {
	state := PlannerStateValidateContext
	var ev plannerEvent

	for {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("planning session cancelled: %w", err)
		}

		next, effect := plannerTransition(state, m.c, ev, m.cfg.terminalTools())
		m.cfg.Hooks.OnPlannerTransition(ctx, m.c, state, next)
		state = next

		switch state {
		case PlannerStateDone:
			m.cfg.Hooks.OnPlannerDone(ctx, m.c, m.c.LastResult)
			return m.c.LastResult, nil
		case PlannerStateFailed:
			m.cfg.Hooks.OnPlannerFailed(ctx, m.c, m.c.FailureReason)
			return "", NewMachineError("%s", m.c.FailureReason)
		}

		ev = m.perform(ctx, effect)
	}
}

func (m *PlannerMachine) perform(ctx context.Context, effect plannerEffect) plannerEvent {
	switch effect {
	case plannerEffectCreatePlan:
		return plannerEvent{plan: m.actions.CreatePlan(ctx, m.c.Message)}

	case plannerEffectFinalizePlan:
		if m.cfg.PlanFinalizer == nil {
			return plannerEvent{}
		}
		plan, err := m.cfg.PlanFinalizer(ctx, m.c.Plan)
		return plannerEvent{plan: plan, err: err}

	case plannerEffectSettle:
		m.sleep(settleDelay)
		return plannerEvent{}

	case plannerEffectRunAgent:
		res, err := m.runAgent(ctx, m.c.CurrentGoal, m.stepMemorySeed())
		return plannerEvent{agent: res, agentErr: err}
	}
	return plannerEvent{}
}

// stepMemorySeed concatenates the session seed with every accumulated
// step result so each agent run starts from the plan's progress so far.
func (m *PlannerMachine) stepMemorySeed() string {
	seed := m.c.MemorySeed
	for i, r := range m.c.StepResults {
		if r == "" {
			continue
		}
		if seed != "" {
			seed += "\n\n"
		}
		seed += fmt.Sprintf("Result of step %d (%s): %s", i+1, m.c.Plan[i], r)
	}
	return seed
}
