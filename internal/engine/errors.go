package engine

import "fmt"

// ConfigurationError indicates the engine is missing a required collaborator.
// Fatal at entry, before any task state is touched.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("engine configuration error: %s", e.Msg)
}

// UnknownToolError indicates the oracle named a tool that is not registered.
// Fatal: the task is marked failed.
type UnknownToolError struct {
	ToolName string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool: %s", e.ToolName)
}

// IterationLimitError indicates the loop hit max_iterations without the
// oracle signaling completion.
type IterationLimitError struct {
	Max int
}

func (e *IterationLimitError) Error() string {
	return fmt.Sprintf("task execution exceeded maximum iterations (%d)", e.Max)
}

// CheckpointError wraps a checkpoint creation failure. Logged as a warning
// only; checkpointing is best-effort and never blocks progress.
type CheckpointError struct {
	TaskID string
	Err    error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("failed to create checkpoint for task %s: %v", e.TaskID, e.Err)
}

func (e *CheckpointError) Unwrap() error {
	return e.Err
}
