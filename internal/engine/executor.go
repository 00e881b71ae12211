package engine

import (
	"context"
	"fmt"
	"time"
)

// Executor runs a single tool call with a bounded time budget and
// normalizes the outcome into a ToolExecutionResult.
type Executor struct {
	dispatcher Dispatcher
	timeout    time.Duration
}

// NewExecutor creates an Executor. A zero timeout falls back to
// DefaultToolTimeout.
func NewExecutor(dispatcher Dispatcher, timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	return &Executor{dispatcher: dispatcher, timeout: timeout}
}

// Execute races the tool's invocation against the executor's timeout.
// The answer and ask_question tools are answered directly from their own
// parameters; every other name is delegated to the capability
// dispatcher. Execute never panics; every failure mode is reported in
// the result.
func (e *Executor) Execute(ctx context.Context, tool *AgenticTool) ToolExecutionResult {
	start := time.Now()
	if tool == nil {
		return ToolExecutionResult{Success: false, Error: "no tool selected"}
	}

	// User-interaction tools carry their own output; no dispatch.
	if out, ok := directOutput(tool); ok {
		return ToolExecutionResult{Success: true, Output: out, Duration: time.Since(start)}
	}

	if e.dispatcher == nil {
		return ToolExecutionResult{Success: false, Error: fmt.Sprintf("no dispatcher available for tool %s", tool.Name)}
	}

	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan DispatchResult, 1)
	go func() {
		done <- e.dispatcher.Dispatch(execCtx, tool.Name, tool.Parameters)
	}()

	select {
	case res := <-done:
		r := ToolExecutionResult{
			Success:  res.Success,
			Output:   res.Output,
			Error:    res.Error,
			Duration: time.Since(start),
		}
		if !r.Success && r.Error == "" {
			r.Error = fmt.Sprintf("tool %s failed without detail", tool.Name)
		}
		return r
	case <-execCtx.Done():
		return ToolExecutionResult{
			Success:  false,
			Error:    fmt.Sprintf("timed out after %dms", e.timeout.Milliseconds()),
			Duration: time.Since(start),
		}
	}
}

// directOutput answers the two user-interaction tools from their own
// parameters. The answer tool echoes its answer, the ask_question tool
// echoes its question.
func directOutput(tool *AgenticTool) (string, bool) {
	switch tool.Name {
	case AnswerToolName:
		return stringParam(tool.Parameters, "answer"), true
	case AskQuestionToolName:
		return stringParam(tool.Parameters, "question"), true
	}
	return "", false
}

func stringParam(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	s, _ := params[key].(string)
	return s
}

// ValidateTool performs the structural checks behind the IsToolValid
// guard and returns the full list of human-readable violations for
// diagnostics. A nil tool always yields exactly ["No tool selected"].
func ValidateTool(t *AgenticTool) (bool, []string) {
	if t == nil {
		return false, []string{"No tool selected"}
	}

	var errs []string
	if isBlank(t.Name) {
		errs = append(errs, "Tool name must be a non-empty string")
	}
	if t.Parameters == nil {
		errs = append(errs, "Tool parameters must be an object")
	}

	switch t.Name {
	case ReadWebpageToolName:
		if !hasNonEmptyURLs(t.Parameters) {
			errs = append(errs, fmt.Sprintf("%s requires a non-empty urls array", ReadWebpageToolName))
		}
	case WebSearchToolName:
		if isBlank(stringParam(t.Parameters, "query")) {
			errs = append(errs, fmt.Sprintf("%s requires a non-empty query string", WebSearchToolName))
		}
	}

	return len(errs) == 0, errs
}

func hasNonEmptyURLs(params map[string]any) bool {
	if params == nil {
		return false
	}
	switch v := params["urls"].(type) {
	case []any:
		return len(v) > 0
	case []string:
		return len(v) > 0
	}
	return false
}
