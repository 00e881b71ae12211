package engine

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/choruslabs/chorus/internal/prompts"
)

// Tool-output processing is a strategy table indexed by tool name, with
// a generic cleanup pass as the default. Every path, including the
// degraded ones, ends in the same hard truncation.

type outputStrategy func(a *Actions, ctx context.Context, tool *AgenticTool, output, subGoal string) string

var outputStrategies = map[string]outputStrategy{
	// User-facing communication passes through verbatim.
	AnswerToolName:      passthroughOutput,
	AskQuestionToolName: passthroughOutput,

	// Raw search results stay raw; the model reads them better than a
	// lossy summary.
	WebSearchToolName: passthroughOutput,

	ReadWebpageToolName: extractPageOutput,

	// Data-access tools get a first-person action summary.
	"recall_memory":   summarizeDataAccess,
	"read_messages":   summarizeDataAccess,
	"publish_message": summarizeDataAccess,
}

// ProcessOutput turns raw tool output into working-memory material. The
// result is always truncated to MaxProcessedOutputChars, whichever
// strategy ran.
func (a *Actions) ProcessOutput(ctx context.Context, tool *AgenticTool, output, subGoal, message string) string {
	strategy := defaultOutputStrategy
	if tool != nil {
		if s, ok := outputStrategies[tool.Name]; ok {
			strategy = s
		}
	}
	return Truncate(strategy(a, ctx, tool, output, subGoal), MaxProcessedOutputChars)
}

func passthroughOutput(_ *Actions, _ context.Context, _ *AgenticTool, output, _ string) string {
	return output
}

// extractPageOutput strips boilerplate from fetched pages and prefixes
// the source URL so later cycles can attribute the content.
func extractPageOutput(a *Actions, ctx context.Context, tool *AgenticTool, output, subGoal string) string {
	cleaned, err := a.gen.Generate(ctx, prompts.ExtractPageContent(output, subGoal), a.system, a.opts)
	if err != nil || isBlank(cleaned) {
		cleaned = output
	}
	if src := firstURL(tool); src != "" {
		return fmt.Sprintf("Source: %s\n%s", src, cleaned)
	}
	return cleaned
}

func firstURL(tool *AgenticTool) string {
	if tool == nil || tool.Parameters == nil {
		return ""
	}
	switch v := tool.Parameters["urls"].(type) {
	case []any:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

func summarizeDataAccess(a *Actions, ctx context.Context, tool *AgenticTool, output, subGoal string) string {
	name := ""
	if tool != nil {
		name = tool.Name
	}
	summary, err := a.gen.Generate(ctx, prompts.SummarizeDataAccess(name, output, subGoal), a.system, a.opts)
	if err != nil || isBlank(summary) {
		return output
	}
	return summary
}

func defaultOutputStrategy(a *Actions, ctx context.Context, _ *AgenticTool, output, subGoal string) string {
	cleaned, err := a.gen.Generate(ctx, prompts.CleanOutput(output, subGoal), a.system, a.opts)
	if err != nil || isBlank(cleaned) {
		return output
	}
	return cleaned
}

// Truncate hard-limits s to n bytes, appending a truncation marker when
// anything was cut. The cut backs up to a rune boundary so multibyte
// content never yields invalid UTF-8.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "... [truncated]"
}
