package providers

import (
	"strings"
	"testing"

	"github.com/ChamsBouzaiene/taskpilot/internal/engine"
	"github.com/ChamsBouzaiene/taskpilot/internal/state"
)

func TestBuildHistory(t *testing.T) {
	st := state.New()
	st.StartNewTask("refactor the parser", "task-1")
	st.AddMessage("system", "Starting task: refactor the parser", nil)
	st.AddMessage("assistant", "I will read the file first", nil)
	st.AddToolResult("read_file", map[string]any{"path": "parser.go"},
		state.ToolResult{Success: true, Message: "File read successfully"})

	history := buildHistory("refactor the parser", st)
	if len(history) != 4 {
		t.Fatalf("history length = %d, want 4 (task, system, assistant, tool result)", len(history))
	}
	if history[0].assistant || !strings.Contains(history[0].content, "refactor the parser") {
		t.Errorf("first entry = %+v, want the task as a user turn", history[0])
	}
	if !history[2].assistant {
		t.Error("assistant message not replayed as assistant turn")
	}
	last := history[len(history)-1]
	if last.assistant || !strings.Contains(last.content, "read_file") {
		t.Errorf("last entry = %+v, want tool result summary", last)
	}
}

func TestBuildHistoryTruncates(t *testing.T) {
	st := state.New()
	st.StartNewTask("t", "id")
	for i := 0; i < maxHistoryMessages+10; i++ {
		st.AddMessage("assistant", "step", nil)
	}
	history := buildHistory("t", st)
	// Task preamble plus the capped message window.
	if len(history) != maxHistoryMessages+1 {
		t.Errorf("history length = %d, want %d", len(history), maxHistoryMessages+1)
	}
}

func TestFilterSchemas(t *testing.T) {
	registered := []engine.ToolSchema{
		{Name: "read_file"},
		{Name: "write_file"},
		{Name: "run_command"},
	}
	filtered := filterSchemas(registered, []string{"read_file", "run_command"})
	if len(filtered) != 2 {
		t.Fatalf("filtered = %v", filtered)
	}
	for _, s := range filtered {
		if s.Name == "write_file" {
			t.Error("unoffered tool passed the filter")
		}
	}
}

func TestRetryActionIsNonTerminal(t *testing.T) {
	action := retryAction("openai", errStub("connection refused"))
	if action.IsComplete {
		t.Error("retry action marked complete")
	}
	if action.ToolName != "" {
		t.Error("retry action names a tool")
	}
	if !strings.Contains(action.Thoughts, "connection refused") {
		t.Errorf("thoughts = %q, want the failure explanation", action.Thoughts)
	}
}

type errStub string

func (e errStub) Error() string { return string(e) }

func TestNewUnknownProvider(t *testing.T) {
	if _, err := New(Config{Provider: "carrier-pigeon", APIKey: "k"}, nil, nil); err == nil {
		t.Error("unknown provider accepted")
	}
}
