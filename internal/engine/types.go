package engine

import (
	"context"

	"github.com/ChamsBouzaiene/taskpilot/internal/state"
)

// Action is one decision from the oracle: either a tool call, a completion,
// or neither (a no-op iteration that lets transient provider errors
// self-resolve).
type Action struct {
	ToolName   string
	ToolArgs   map[string]any
	IsComplete bool
	Result     string
	Thoughts   string
}

// Oracle decides the next action for a task. Adapters are expected to absorb
// transport failures into a non-terminal Action rather than returning an
// error; a returned error is fatal to the task.
type Oracle interface {
	GetNextAction(ctx context.Context, task string, st *state.TaskState, availableTools []string) (Action, error)
}

// TaskSummary is one entry from a task-history search, enriched with the
// stored task description.
type TaskSummary struct {
	TaskID    string
	Task      string
	Relevance int
	Completed bool
}
