// Package engine runs the task execution loop: oracle decisions, tool
// dispatch, approval gating, state persistence, checkpoints, breakpoints.
package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ChamsBouzaiene/taskpilot/internal/approval"
	"github.com/ChamsBouzaiene/taskpilot/internal/debug"
	"github.com/ChamsBouzaiene/taskpilot/internal/state"
	"github.com/ChamsBouzaiene/taskpilot/internal/storage"
)

const (
	defaultMaxIterations               = 50
	defaultMaxConsecutiveAutoApprovals = 3
	defaultMaxCheckpoints              = 10
	relatedTasksLimit                  = 5
)

// Options wires an Agent's collaborators and policy knobs.
type Options struct {
	Oracle   Oracle
	Tools    ToolRegistry
	Storage  storage.StateStorage
	Approver approval.Callback
	Session  *debug.Session
	Logger   *log.Logger

	AutoApproveTools            bool
	MaxConsecutiveAutoApprovals int
	MaxIterations               int
	AutoCheckpoint              bool
	MaxCheckpoints              int
}

// Agent executes one task at a time as a strictly sequential loop. A single
// Agent must not run tasks concurrently; the shared rate limiter inside the
// oracle adapter is the only cross-task coordination point.
type Agent struct {
	taskID          string
	checkpointCount int
	opts            Options
	tools           ToolRegistry
	state           *state.TaskState
	oracle          Oracle
	approver        approval.Callback
	session         *debug.Session
	dbg             debug.Callback
	storage         storage.StateStorage
	logger          *log.Logger
}

// New validates the options and builds an Agent with defaults applied.
func New(opts Options) (*Agent, error) {
	if opts.Oracle == nil {
		return nil, &ConfigurationError{Msg: "oracle not initialized"}
	}
	if opts.Storage == nil {
		return nil, &ConfigurationError{Msg: "storage not initialized"}
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = defaultMaxIterations
	}
	if opts.MaxConsecutiveAutoApprovals <= 0 {
		opts.MaxConsecutiveAutoApprovals = defaultMaxConsecutiveAutoApprovals
	}
	if opts.MaxCheckpoints <= 0 {
		opts.MaxCheckpoints = defaultMaxCheckpoints
	}
	if opts.Tools == nil {
		opts.Tools = make(ToolRegistry)
	}
	if opts.Approver == nil {
		opts.Approver = approval.NewConsole(os.Stdin, os.Stdout)
	}
	if opts.Session == nil {
		opts.Session = debug.NewSession(false)
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "[agent] ", log.LstdFlags)
	}

	return &Agent{
		taskID:   uuid.NewString(),
		opts:     opts,
		tools:    opts.Tools,
		state:    state.New(),
		oracle:   opts.Oracle,
		approver: opts.Approver,
		session:  opts.Session,
		storage:  opts.Storage,
		logger:   opts.Logger,
	}, nil
}

// TaskID returns the id of the current (or most recent) task.
func (a *Agent) TaskID() string { return a.taskID }

// State exposes the live task state for observers such as the REPL.
func (a *Agent) State() *state.TaskState { return a.state }

// Session exposes the debug session so breakpoints can be managed at runtime.
func (a *Agent) Session() *debug.Session { return a.session }

// RegisterTool adds a tool to the registry under its name.
func (a *Agent) RegisterTool(t Tool) {
	a.tools[t.Name] = t
	a.logger.Printf("registered tool: %s", t.Name)
}

// ExecuteTask runs the task to completion or failure and returns the oracle's
// final result. Whatever the exit path, the final state is persisted and an
// active debug session is stopped.
func (a *Agent) ExecuteTask(ctx context.Context, task string, dbg debug.Callback) (result string, err error) {
	if a.oracle == nil {
		return "", &ConfigurationError{Msg: "oracle not initialized"}
	}

	a.taskID = uuid.NewString()
	a.checkpointCount = 0
	a.state.StartNewTask(task, a.taskID)
	a.dbg = dbg

	a.logger.Printf("starting task %s: %s", a.taskID, task)

	defer func() {
		if err != nil && !a.state.IsFailed {
			a.state.MarkFailed(err.Error())
		}
		if saveErr := a.storage.SaveState(a.taskID, a.state); saveErr != nil {
			a.logger.Printf("warning: failed to save final state for task %s: %v", a.taskID, saveErr)
		}
		if a.session.Active() {
			a.session.Stop()
		}
		a.dbg = nil
		if err != nil {
			a.logger.Printf("task %s failed: %v", a.taskID, err)
		}
	}()

	if err := a.SaveMessage("system", "Starting task: "+task, nil); err != nil {
		return "", err
	}
	a.seedRelatedTasks()

	iteration := 0
	for !a.state.IsComplete && iteration < a.opts.MaxIterations {
		iteration++
		a.logger.Printf("task %s iteration %d/%d", a.taskID, iteration, a.opts.MaxIterations)

		a.handleDebugBreak(debug.KindLLM, map[string]any{
			"task":      task,
			"iteration": iteration,
		})

		action, err := a.oracle.GetNextAction(ctx, task, a.state, a.tools.Names())
		if err != nil {
			return "", fmt.Errorf("oracle call failed: %w", err)
		}

		if err := a.SaveMessage("assistant", action.Thoughts, nil); err != nil {
			return "", err
		}

		if action.IsComplete {
			a.state.MarkComplete()
			if err := a.SaveMessage("system", "Task completed: "+action.Result,
				map[string]any{"result": action.Result}); err != nil {
				return "", err
			}
			if d, ok := a.state.Duration(); ok {
				a.logger.Printf("task %s completed in %s after %d iterations", a.taskID, d.Round(time.Millisecond), iteration)
			}
			if action.Result != "" {
				return action.Result, nil
			}
			return action.Thoughts, nil
		}

		if action.ToolName == "" {
			// No tool and not complete: no-op advance, the next iteration
			// gives the oracle another chance.
			continue
		}

		tool, ok := a.tools[action.ToolName]
		if !ok {
			return "", &UnknownToolError{ToolName: action.ToolName}
		}

		a.handleDebugBreak(debug.KindTool, map[string]any{
			"tool_name": action.ToolName,
			"args":      action.ToolArgs,
			"iteration": iteration,
		})

		if !a.opts.AutoApproveTools ||
			a.state.ConsecutiveAutoApprovals >= a.opts.MaxConsecutiveAutoApprovals {
			approved, err := a.approver.GetApproval(ctx, action.ToolName, action.ToolArgs, action.Thoughts)
			if err != nil {
				return "", fmt.Errorf("approval failed: %w", err)
			}
			if !approved {
				a.logger.Printf("tool execution rejected: %s", action.ToolName)
				if err := a.SaveMessage("user", "Tool execution not approved: "+action.ToolName, nil); err != nil {
					return "", err
				}
				continue
			}
			a.state.ResetAutoApprovals()
		} else {
			a.state.IncrementAutoApprovals()
		}

		toolResult := a.dispatchTool(ctx, tool, action.ToolArgs)
		a.state.AddToolResult(action.ToolName, action.ToolArgs, toolResult)
		if err := a.storage.SaveState(a.taskID, a.state); err != nil {
			return "", fmt.Errorf("failed to save state: %w", err)
		}

		if a.opts.AutoCheckpoint {
			a.createCheckpoint("After executing tool: " + action.ToolName)
		}

		a.handleDebugBreak(debug.KindState, map[string]any{
			"tool_name": action.ToolName,
			"success":   toolResult.Success,
			"iteration": iteration,
		})

		a.logger.Printf("tool execution complete: %s (success=%v)", action.ToolName, toolResult.Success)
	}

	if !a.state.IsComplete {
		a.state.MarkFailed("Maximum iterations reached")
		return "", &IterationLimitError{Max: a.opts.MaxIterations}
	}
	return "", nil
}

// dispatchTool validates arguments and runs the tool. Validation failures
// and panics become failed results so a single bad tool call never aborts
// the task loop.
func (a *Agent) dispatchTool(ctx context.Context, tool Tool, args map[string]any) (res state.ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Printf("tool %s panicked: %v", tool.Name, r)
			res = state.ToolResult{
				Success: false,
				Message: fmt.Sprintf("Tool %s panicked: %v", tool.Name, r),
			}
		}
	}()

	if args == nil {
		args = map[string]any{}
	}
	if err := tool.ValidateArgs(args); err != nil {
		return state.ToolResult{Success: false, Message: err.Error()}
	}
	return tool.Fn(ctx, args)
}

// createCheckpoint records a checkpoint unless the per-task cap is reached.
// Failures are logged and swallowed.
func (a *Agent) createCheckpoint(description string) {
	if a.checkpointCount >= a.opts.MaxCheckpoints {
		return
	}
	if _, err := a.storage.CreateCheckpoint(a.taskID, description); err != nil {
		a.logger.Printf("warning: %v", &CheckpointError{TaskID: a.taskID, Err: err})
		return
	}
	a.checkpointCount++
}

// seedRelatedTasks records tasks with overlapping context so the oracle can
// draw on prior work. Best-effort.
func (a *Agent) seedRelatedTasks() {
	related, err := a.storage.GetRelatedTasks(a.taskID, relatedTasksLimit)
	if err != nil {
		a.logger.Printf("warning: failed to load related tasks: %v", err)
		return
	}
	if len(related) == 0 {
		return
	}
	a.state.RelatedTasks = related
	if err := a.storage.SaveState(a.taskID, a.state); err != nil {
		a.logger.Printf("warning: failed to save state: %v", err)
	}
}

func (a *Agent) handleDebugBreak(kind debug.Kind, details map[string]any) {
	if a.dbg == nil {
		return
	}
	condCtx := make(map[string]any, len(details)+2)
	for k, v := range details {
		condCtx[k] = v
	}
	condCtx["task"] = a.state.Task
	condCtx["is_complete"] = a.state.IsComplete

	if !a.session.ShouldBreak(kind, condCtx) {
		return
	}
	info := debug.Info{
		Timestamp: time.Now().UTC(),
		Action:    kind,
		Details:   details,
		Context: map[string]any{
			"task":    a.state.Task,
			"task_id": a.state.TaskID,
		},
	}
	a.dbg.OnBreak(info)
	if a.session.StepByStep() {
		a.dbg.OnStep(info)
	}
}

// SaveUserInput records external input and persists the state.
func (a *Agent) SaveUserInput(content string, metadata map[string]any) error {
	a.state.AddUserInput(content, metadata)
	return a.storage.SaveState(a.taskID, a.state)
}

// SaveMessage records a conversation message and persists the state.
func (a *Agent) SaveMessage(role, content string, metadata map[string]any) error {
	a.state.AddMessage(role, content, metadata)
	if err := a.storage.SaveState(a.taskID, a.state); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// UpdateContext merges updates into the persistent context and saves.
func (a *Agent) UpdateContext(updates map[string]any) error {
	a.state.UpdateContext(updates)
	return a.storage.SaveState(a.taskID, a.state)
}

// RelatedTasks returns tasks whose context overlaps the current task's.
func (a *Agent) RelatedTasks(limit int) ([]state.RelatedTask, error) {
	return a.storage.GetRelatedTasks(a.taskID, limit)
}

// SearchTaskHistory ranks past tasks by message relevance and enriches each
// hit with its stored description and completion flag.
func (a *Agent) SearchTaskHistory(query string, limit int) ([]TaskSummary, error) {
	results, err := a.storage.SearchTaskHistory(query, limit)
	if err != nil {
		return nil, err
	}
	summaries := make([]TaskSummary, 0, len(results))
	for _, r := range results {
		st, err := a.storage.LoadState(r.TaskID)
		if err != nil {
			continue
		}
		summaries = append(summaries, TaskSummary{
			TaskID:    r.TaskID,
			Task:      st.Task,
			Relevance: r.Relevance,
			Completed: st.IsComplete,
		})
	}
	return summaries, nil
}
