package state

import (
	"testing"
)

func TestStartNewTaskResets(t *testing.T) {
	s := New()
	s.StartNewTask("first task", "task-1")
	s.AddMessage("system", "Starting task: first task", nil)
	s.AddToolResult("read_file", map[string]any{"path": "a.txt"}, ToolResult{Success: true, Message: "ok"})
	s.UpdateContext(map[string]any{"project": "taskpilot"})
	s.IncrementAutoApprovals()
	s.MarkComplete()

	s.StartNewTask("second task", "task-2")

	if s.Task != "second task" || s.TaskID != "task-2" {
		t.Errorf("task identity not updated: %q %q", s.Task, s.TaskID)
	}
	if len(s.Messages) != 0 || len(s.ToolExecutions) != 0 || len(s.UserInputs) != 0 {
		t.Errorf("history not cleared: %d messages, %d executions, %d inputs",
			len(s.Messages), len(s.ToolExecutions), len(s.UserInputs))
	}
	if s.IsComplete || s.IsFailed || s.ErrorMessage != "" || s.EndTime != nil {
		t.Error("completion flags not cleared")
	}
	if s.ConsecutiveAutoApprovals != 0 {
		t.Errorf("auto-approval counter = %d, want 0", s.ConsecutiveAutoApprovals)
	}
	if s.StartTime == nil {
		t.Error("start time not set")
	}
	// Context survives across tasks by design.
	if got := s.Context["project"]; got != "taskpilot" {
		t.Errorf("context not preserved, got %v", got)
	}
}

func TestMarkFailedImpliesComplete(t *testing.T) {
	s := New()
	s.StartNewTask("t", "id")
	s.MarkFailed("boom")

	if !s.IsFailed || !s.IsComplete {
		t.Errorf("is_failed=%v is_complete=%v, failed tasks must be complete", s.IsFailed, s.IsComplete)
	}
	if s.ErrorMessage != "boom" {
		t.Errorf("error message = %q", s.ErrorMessage)
	}
	if s.EndTime == nil {
		t.Error("end time not set on failure")
	}
}

func TestToolExecutionsAppendOnly(t *testing.T) {
	s := New()
	s.StartNewTask("t", "id")

	for i := 0; i < 3; i++ {
		before := len(s.ToolExecutions)
		s.AddToolResult("echo", nil, ToolResult{Success: true})
		if len(s.ToolExecutions) != before+1 {
			t.Fatalf("execution count %d after append, want %d", len(s.ToolExecutions), before+1)
		}
	}
	if s.ToolExecutions[0].Args == nil {
		t.Error("nil args not normalized to empty map")
	}
	last := s.LastToolResult()
	if last == nil || last.ToolName != "echo" {
		t.Errorf("last tool result = %+v", last)
	}
}

func TestDuration(t *testing.T) {
	s := New()
	if _, ok := s.Duration(); ok {
		t.Error("duration reported before task start")
	}
	s.StartNewTask("t", "id")
	s.MarkComplete()
	if d, ok := s.Duration(); !ok || d < 0 {
		t.Errorf("duration = %v ok=%v", d, ok)
	}
}

func TestAutoApprovalCounter(t *testing.T) {
	s := New()
	s.StartNewTask("t", "id")
	s.IncrementAutoApprovals()
	s.IncrementAutoApprovals()
	if s.ConsecutiveAutoApprovals != 2 {
		t.Fatalf("counter = %d, want 2", s.ConsecutiveAutoApprovals)
	}
	s.ResetAutoApprovals()
	if s.ConsecutiveAutoApprovals != 0 {
		t.Fatalf("counter = %d after reset, want 0", s.ConsecutiveAutoApprovals)
	}
}
