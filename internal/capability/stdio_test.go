package capability

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestStdioCall(t *testing.T) {
	// One helper process answering every request line with a fixed
	// response; both calls must reuse the same process.
	script := `while read line; do printf '%s\n' '{"success":true,"output":"pong"}'; done`
	p := NewStdioProcess("sh", "-c", script)
	defer p.Close()

	for i := 0; i < 2; i++ {
		out, err := p.Call(context.Background(), "ping", map[string]any{"n": i})
		if err != nil {
			t.Fatalf("Call() #%d error = %v", i+1, err)
		}
		if out != "pong" {
			t.Errorf("Call() #%d = %q, want %q", i+1, out, "pong")
		}
	}
}

func TestStdioCallFailureResponse(t *testing.T) {
	script := `read line; printf '%s\n' '{"success":false,"error":"no results"}'`
	p := NewStdioProcess("sh", "-c", script)
	defer p.Close()

	_, err := p.Call(context.Background(), "web_search", map[string]any{"query": "x"})
	if err == nil || err.Error() != "no results" {
		t.Errorf("Call() error = %v, want the process's error", err)
	}
}

func TestStdioCallMalformedResponse(t *testing.T) {
	script := `read line; printf 'not json\n'`
	p := NewStdioProcess("sh", "-c", script)
	defer p.Close()

	_, err := p.Call(context.Background(), "web_search", map[string]any{"query": "x"})
	if err == nil || !strings.Contains(err.Error(), "malformed response") {
		t.Errorf("Call() error = %v, want a malformed-response error", err)
	}
}

func TestStdioCallProcessExitsWithoutResponse(t *testing.T) {
	// The helper reads the request and exits cleanly without answering.
	// The call must fail with an error, never panic, and the bridge must
	// respawn the process on the next call.
	script := `read line; exit 0`
	p := NewStdioProcess("sh", "-c", script)
	defer p.Close()

	_, err := p.Call(context.Background(), "web_search", map[string]any{"query": "x"})
	if err == nil || !strings.Contains(err.Error(), "closed its output") {
		t.Errorf("Call() error = %v, want a closed-output error", err)
	}

	_, err = p.Call(context.Background(), "web_search", map[string]any{"query": "y"})
	if err == nil {
		t.Error("second Call() after a clean exit must respawn and fail again, not hang or panic")
	}
}

func TestStdioCallHonorsContext(t *testing.T) {
	// The helper never answers. The first call must return once its ctx
	// expires, and a later call must not block on a wedged mutex.
	p := NewStdioProcess("sh", "-c", "sleep 60")
	defer p.Close()

	call := func(timeout time.Duration) error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_, err := p.Call(ctx, "web_search", map[string]any{"query": "x"})
		return err
	}

	start := time.Now()
	if err := call(100 * time.Millisecond); err == nil {
		t.Fatal("Call() against a silent process must fail")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("Call() returned after %v, want roughly its 100ms deadline", elapsed)
	}

	start = time.Now()
	if err := call(100 * time.Millisecond); err == nil {
		t.Fatal("second Call() must fail too")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("second Call() returned after %v; the bridge is wedged", elapsed)
	}
}
