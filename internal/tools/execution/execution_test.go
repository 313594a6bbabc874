package execution

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunCommand(t *testing.T) {
	tool := NewRunCommandTool(t.TempDir())

	res := tool.Fn(context.Background(), map[string]any{"command": "echo hello"})
	if !res.Success {
		t.Fatalf("command failed: %s", res.Message)
	}
	if out := res.Data.(string); !strings.Contains(out, "hello") {
		t.Errorf("output = %q", out)
	}
}

func TestRunCommandNonZeroExit(t *testing.T) {
	tool := NewRunCommandTool(t.TempDir())

	res := tool.Fn(context.Background(), map[string]any{"command": "exit 3"})
	if res.Success {
		t.Error("non-zero exit reported as success")
	}
	if !strings.Contains(res.Message, "status 3") {
		t.Errorf("message = %q", res.Message)
	}
}

func TestRunCommandTimeout(t *testing.T) {
	tool := NewRunCommandTool(t.TempDir())

	res := tool.Fn(context.Background(), map[string]any{
		"command":         "sleep 5",
		"timeout_seconds": 0.1,
	})
	if res.Success {
		t.Error("timed-out command reported as success")
	}
	if !strings.Contains(res.Message, "timed out") {
		t.Errorf("message = %q", res.Message)
	}
}

func TestRunCommandUsesWorkDir(t *testing.T) {
	dir := t.TempDir()
	tool := NewRunCommandTool(dir)

	res := tool.Fn(context.Background(), map[string]any{"command": "pwd"})
	if !res.Success {
		t.Fatalf("command failed: %s", res.Message)
	}
	// Temp dirs may sit behind a symlink, so compare the final path element.
	out := strings.TrimSpace(res.Data.(string))
	if !strings.HasSuffix(out, filepath.Base(dir)) {
		t.Errorf("pwd = %q, want a path under %q", out, dir)
	}
}
