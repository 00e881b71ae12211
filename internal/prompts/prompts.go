// Package prompts builds the prompt text used by the planner and the
// agent step actions. Wording here is deliberately compact; the engine
// only depends on the JSON shapes the prompts request.
package prompts

import (
	"fmt"
	"strings"
)

// CreatePlan asks for an ordered strategic plan as a JSON array of
// strings.
func CreatePlan(message string) string {
	var b strings.Builder
	b.WriteString("Break the following user request into an ordered list of strategic goals.\n")
	b.WriteString("Respond with ONLY a JSON array of strings, most important first.\n\n")
	fmt.Fprintf(&b, "User request: %s\n", message)
	return b.String()
}

// GatherContext asks the model to extract only the information relevant
// to the next step.
func GatherContext(goal, workingMemory string, completedSubGoals []string, message string) string {
	var b strings.Builder
	b.WriteString("Extract only the information relevant to the next step of the goal below.\n")
	b.WriteString("Be concise; drop anything already resolved.\n\n")
	fmt.Fprintf(&b, "User request: %s\n", message)
	fmt.Fprintf(&b, "Strategic goal: %s\n", goal)
	if len(completedSubGoals) > 0 {
		fmt.Fprintf(&b, "Completed so far: %s\n", strings.Join(completedSubGoals, "; "))
	}
	fmt.Fprintf(&b, "Working memory:\n%s\n", workingMemory)
	return b.String()
}

// DetermineSubGoal asks for the single next actionable step.
func DetermineSubGoal(goal, context string, completedSubGoals []string, message string) string {
	var b strings.Builder
	b.WriteString("Given the goal and context below, state the single next actionable step.\n")
	b.WriteString("Answer with one short imperative sentence, nothing else.\n\n")
	fmt.Fprintf(&b, "User request: %s\n", message)
	fmt.Fprintf(&b, "Strategic goal: %s\n", goal)
	if len(completedSubGoals) > 0 {
		fmt.Fprintf(&b, "Already done: %s\n", strings.Join(completedSubGoals, "; "))
	}
	fmt.Fprintf(&b, "Context:\n%s\n", context)
	return b.String()
}

// ToolOption is one selectable tool in a tool-selection prompt.
type ToolOption struct {
	Name        string
	Description string
}

// SelectTool asks for a tool name and parameter object as JSON.
func SelectTool(subGoal string, tools []ToolOption, context, message string) string {
	var b strings.Builder
	b.WriteString("Select the best tool for the step below.\n")
	b.WriteString(`Respond with ONLY a JSON object: {"tool": "<name>", "parameters": {...}}` + "\n\n")
	b.WriteString("Available tools:\n")
	for _, t := range tools {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
	}
	fmt.Fprintf(&b, "\nUser request: %s\n", message)
	fmt.Fprintf(&b, "Step: %s\n", subGoal)
	fmt.Fprintf(&b, "Context:\n%s\n", context)
	return b.String()
}

// ExtractPageContent asks for boilerplate-free page content.
func ExtractPageContent(output, subGoal string) string {
	var b strings.Builder
	b.WriteString("Strip navigation, ads and boilerplate from the page content below.\n")
	fmt.Fprintf(&b, "Keep only what is relevant to: %s\n\n", subGoal)
	b.WriteString(output)
	return b.String()
}

// SummarizeDataAccess asks for a first-person summary of a data access.
func SummarizeDataAccess(toolName, output, subGoal string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize in first person what the %s action did and what it returned.\n", toolName)
	fmt.Fprintf(&b, "It was performed for: %s\n\n", subGoal)
	b.WriteString(output)
	return b.String()
}

// CleanOutput asks for a generic cleanup of tool output relative to the
// sub-goal.
func CleanOutput(output, subGoal string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Clean and organize the tool output below so it is useful for: %s\n", subGoal)
	b.WriteString("Remove noise, keep all facts.\n\n")
	b.WriteString(output)
	return b.String()
}

// EvaluateSubGoal asks whether the state the sub-goal targets now holds.
func EvaluateSubGoal(subGoal, toolOutput string) string {
	var b strings.Builder
	b.WriteString("Decide whether the state targeted by the step below now holds.\n")
	b.WriteString("If the target already existed, that counts as complete.\n")
	b.WriteString(`Respond with ONLY JSON: {"complete": true|false}` + "\n\n")
	fmt.Fprintf(&b, "Step: %s\n", subGoal)
	fmt.Fprintf(&b, "Tool output:\n%s\n", toolOutput)
	return b.String()
}

// EvaluateGoal asks for a strategic-goal completion verdict.
func EvaluateGoal(goal string, completedSubGoals []string, processedOutput string) string {
	var b strings.Builder
	b.WriteString("Decide whether the strategic goal below has been achieved.\n")
	b.WriteString("Judge the resulting state, not whether actions were performed.\n")
	b.WriteString(`Respond with ONLY JSON: {"achieved": true|false, "confidence": 0.0-1.0, "reason": "...",` +
		` "discovery": {"type": "opportunity|obstacle|impossibility", "details": "..."}}` + "\n")
	b.WriteString("Omit discovery unless something notable surfaced.\n\n")
	fmt.Fprintf(&b, "Strategic goal: %s\n", goal)
	fmt.Fprintf(&b, "Completed steps: %s\n", strings.Join(completedSubGoals, "; "))
	fmt.Fprintf(&b, "Latest output:\n%s\n", processedOutput)
	return b.String()
}
