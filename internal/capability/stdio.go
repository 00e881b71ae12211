package capability

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"
)

// StdioProcess bridges a capability to an external process speaking a
// newline-delimited JSON protocol on stdin/stdout: one request line in,
// one response line out. This covers externally-hosted tools such as the
// web-search crawler service.
type StdioProcess struct {
	mu      sync.Mutex
	command string
	args    []string

	cmd     *exec.Cmd
	stdin   *bufio.Writer
	stdout  *bufio.Scanner
	started bool
}

type stdioRequest struct {
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
}

type stdioResponse struct {
	Success bool   `json:"success"`
	Output  string `json:"output"`
	Error   string `json:"error,omitempty"`
}

// NewStdioProcess prepares a process bridge; the process is spawned
// lazily on first call and restarted after a protocol failure.
func NewStdioProcess(command string, args ...string) *StdioProcess {
	return &StdioProcess{command: command, args: args}
}

// Capability wraps the bridge as a registered capability. name is the
// tool name the persona sees; the same name travels to the process.
func (p *StdioProcess) Capability(name, description, schemaJSON string) Capability {
	return Capability{
		Name:        name,
		Description: description,
		SchemaJSON:  schemaJSON,
		Fn: func(ctx context.Context, params map[string]any) (string, error) {
			return p.Call(ctx, name, params)
		},
	}
}

// Call sends one request line and reads one response line. The process
// outlives individual requests; a broken pipe or an expired ctx tears it
// down so the next call respawns it.
func (p *StdioProcess) Call(ctx context.Context, tool string, params map[string]any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureStarted(); err != nil {
		return "", err
	}

	line, err := json.Marshal(stdioRequest{Tool: tool, Parameters: params})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	if _, err := p.stdin.Write(append(line, '\n')); err != nil {
		p.teardown()
		return "", fmt.Errorf("failed to write to %s: %w", p.command, err)
	}
	if err := p.stdin.Flush(); err != nil {
		p.teardown()
		return "", fmt.Errorf("failed to flush to %s: %w", p.command, err)
	}

	// Kill the process if ctx ends while we wait, so Scan unblocks
	// instead of wedging the bridge behind the mutex.
	proc := p.cmd.Process
	stop := context.AfterFunc(ctx, func() { _ = proc.Kill() })
	ok := p.stdout.Scan()
	stop()

	if !ok {
		readErr := p.stdout.Err()
		p.teardown()
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%s call abandoned: %w", p.command, err)
		}
		if readErr != nil {
			return "", fmt.Errorf("failed to read from %s: %w", p.command, readErr)
		}
		return "", fmt.Errorf("%s closed its output", p.command)
	}

	var resp stdioResponse
	if err := json.Unmarshal(p.stdout.Bytes(), &resp); err != nil {
		p.teardown()
		return "", fmt.Errorf("malformed response from %s: %w", p.command, err)
	}
	if !resp.Success {
		if resp.Error == "" {
			resp.Error = "tool process reported failure"
		}
		return "", fmt.Errorf("%s", resp.Error)
	}
	return resp.Output, nil
}

func (p *StdioProcess) ensureStarted() error {
	if p.started {
		return nil
	}

	cmd := exec.Command(p.command, p.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdin of %s: %w", p.command, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout of %s: %w", p.command, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", p.command, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	p.cmd = cmd
	p.stdin = bufio.NewWriter(stdin)
	p.stdout = scanner
	p.started = true
	return nil
}

// teardown kills the process; callers hold the mutex.
func (p *StdioProcess) teardown() {
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
		_ = p.cmd.Wait()
	}
	p.cmd = nil
	p.stdin = nil
	p.stdout = nil
	p.started = false
}

// Close terminates the process if running.
func (p *StdioProcess) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.teardown()
}
