// Package state holds the mutable record of a single task's progress.
package state

import (
	"time"
)

// Message is one entry in a task's conversation history.
type Message struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ToolResult is the outcome of one tool execution. Tools report ordinary
// failures through Success=false rather than returning an error, so a single
// failed operation never aborts the task loop.
type ToolResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ToolExecution records one completed tool invocation.
type ToolExecution struct {
	ToolName  string         `json:"tool_name"`
	Args      map[string]any `json:"args"`
	Result    ToolResult     `json:"result"`
	Timestamp time.Time      `json:"timestamp"`
}

// RelatedTask summarizes another task whose persisted context overlaps this one.
type RelatedTask struct {
	TaskID    string  `json:"task_id"`
	Task      string  `json:"task"`
	Relevance float64 `json:"relevance"`
	Completed bool    `json:"completed"`
}

// TaskState is the full mutable state of one task. It is owned exclusively by
// a single engine instance during a run; it is not safe for concurrent use.
//
// Context and RelatedTasks survive StartNewTask on purpose: later tasks in the
// same engine session see knowledge accumulated by earlier ones.
type TaskState struct {
	Task                     string          `json:"task"`
	TaskID                   string          `json:"task_id"`
	Messages                 []Message       `json:"messages"`
	ToolExecutions           []ToolExecution `json:"tool_executions"`
	Context                  map[string]any  `json:"context"`
	RelatedTasks             []RelatedTask   `json:"related_tasks"`
	UserInputs               []Message       `json:"user_inputs"`
	StartTime                *time.Time      `json:"start_time,omitempty"`
	EndTime                  *time.Time      `json:"end_time,omitempty"`
	IsComplete               bool            `json:"is_complete"`
	IsFailed                 bool            `json:"is_failed"`
	ErrorMessage             string          `json:"error_message,omitempty"`
	ConsecutiveAutoApprovals int             `json:"consecutive_auto_approvals"`
}

// New returns an empty TaskState ready for StartNewTask.
func New() *TaskState {
	return &TaskState{
		Context: make(map[string]any),
	}
}

// StartNewTask resets the state for a fresh task. Messages, tool executions,
// timestamps and completion flags are cleared; Context and RelatedTasks are
// preserved across tasks.
func (s *TaskState) StartNewTask(task, taskID string) {
	now := time.Now().UTC()
	s.Task = task
	s.TaskID = taskID
	s.Messages = nil
	s.ToolExecutions = nil
	s.UserInputs = nil
	s.StartTime = &now
	s.EndTime = nil
	s.IsComplete = false
	s.IsFailed = false
	s.ErrorMessage = ""
	s.ConsecutiveAutoApprovals = 0
	if s.Context == nil {
		s.Context = make(map[string]any)
	}
}

// AddMessage appends a conversation message. Insertion order is significant
// and the sequence is append-only.
func (s *TaskState) AddMessage(role, content string, metadata map[string]any) {
	s.Messages = append(s.Messages, Message{
		Role:      role,
		Content:   content,
		Metadata:  metadata,
		Timestamp: time.Now().UTC(),
	})
}

// AddUserInput records raw user input alongside the conversation history.
func (s *TaskState) AddUserInput(content string, metadata map[string]any) {
	s.UserInputs = append(s.UserInputs, Message{
		Role:      "user",
		Content:   content,
		Metadata:  metadata,
		Timestamp: time.Now().UTC(),
	})
}

// AddToolResult appends a tool execution record. The sequence only grows
// within a task's life.
func (s *TaskState) AddToolResult(toolName string, args map[string]any, result ToolResult) {
	if args == nil {
		args = make(map[string]any)
	}
	s.ToolExecutions = append(s.ToolExecutions, ToolExecution{
		ToolName:  toolName,
		Args:      args,
		Result:    result,
		Timestamp: time.Now().UTC(),
	})
}

// UpdateContext merges updates into the persistent context mapping.
func (s *TaskState) UpdateContext(updates map[string]any) {
	if s.Context == nil {
		s.Context = make(map[string]any)
	}
	for k, v := range updates {
		s.Context[k] = v
	}
}

// MarkComplete marks the task finished successfully.
func (s *TaskState) MarkComplete() {
	now := time.Now().UTC()
	s.IsComplete = true
	s.EndTime = &now
}

// MarkFailed marks the task failed. A failed task is always also complete.
func (s *TaskState) MarkFailed(errorMessage string) {
	now := time.Now().UTC()
	s.IsFailed = true
	s.IsComplete = true
	s.ErrorMessage = errorMessage
	s.EndTime = &now
}

// LastToolResult returns the most recent tool execution, or nil.
func (s *TaskState) LastToolResult() *ToolExecution {
	if len(s.ToolExecutions) == 0 {
		return nil
	}
	return &s.ToolExecutions[len(s.ToolExecutions)-1]
}

// Duration reports how long the task has been running, or ran. It returns
// false if the task never started.
func (s *TaskState) Duration() (time.Duration, bool) {
	if s.StartTime == nil {
		return 0, false
	}
	end := time.Now().UTC()
	if s.EndTime != nil {
		end = *s.EndTime
	}
	return end.Sub(*s.StartTime), true
}

// ResetAutoApprovals clears the consecutive auto-approval streak. Called on
// every explicit approval grant.
func (s *TaskState) ResetAutoApprovals() {
	s.ConsecutiveAutoApprovals = 0
}

// IncrementAutoApprovals bumps the consecutive auto-approval streak.
func (s *TaskState) IncrementAutoApprovals() {
	s.ConsecutiveAutoApprovals++
}
