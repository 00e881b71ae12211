package engine

import "strings"

// Guard predicates. All of them are pure and evaluated synchronously
// between states; none of them performs I/O.

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// AgentContextValid reports whether an Agent run may start: the user
// message and the strategic goal must both be non-blank.
func AgentContextValid(c *AgentContext) bool {
	return !isBlank(c.Message) && !isBlank(c.Goal)
}

// PlannerContextValid reports whether a planning session may start: the
// user message and the persona identity must both be non-blank.
func PlannerContextValid(c *PlannerContext) bool {
	return !isBlank(c.Message) && !isBlank(c.Identity)
}

// CanRetry reports whether another attempt is allowed within the current
// logical step.
func CanRetry(retryCount int) bool {
	return retryCount < MaxRetries
}

// ShouldStopForStagnation reports whether the Agent loop must be forced
// to a terminal state: either the cycle ceiling is exceeded or no
// evaluated progress has been made within the stagnation window. It is
// checked at the top of every new gather cycle, before any network call.
func ShouldStopForStagnation(cycleCount, lastProgressCycle, maxCycles int) bool {
	if maxCycles <= 0 {
		maxCycles = DefaultMaxCycles
	}
	return cycleCount > maxCycles || cycleCount-lastProgressCycle > StagnationWindow
}

// IsToolValid reports whether the selected tool is structurally sound.
// ValidateTool returns the individual violations for diagnostics.
func IsToolValid(t *AgenticTool) bool {
	ok, _ := ValidateTool(t)
	return ok
}

// IsTerminalTool reports whether name is one of the designated
// user-interaction tools that end an Agent run immediately.
func IsTerminalTool(name string, terminal []string) bool {
	for _, t := range terminal {
		if t == name {
			return true
		}
	}
	return false
}

// ShouldTerminateEarly reports whether the Planner may skip its
// remaining plan steps because the Agent's last executed tool already
// responded to the user.
func ShouldTerminateEarly(lastExecutedTool string, terminal []string) bool {
	return lastExecutedTool != "" && IsTerminalTool(lastExecutedTool, terminal)
}
