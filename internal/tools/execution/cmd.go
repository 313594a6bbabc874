// Package execution implements the shell command tool.
package execution

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/ChamsBouzaiene/taskpilot/internal/engine"
	"github.com/ChamsBouzaiene/taskpilot/internal/state"
)

const defaultTimeout = 60 * time.Second

// NewRunCommandTool runs a shell command in the working directory. Output is
// returned as data; a non-zero exit is an ordinary failure, not an error.
func NewRunCommandTool(workDir string) engine.Tool {
	return engine.Tool{
		Name:        "run_command",
		Description: "Run a shell command in the working directory",
		SchemaJSON: `{"type":"object","properties":{` +
			`"command":{"type":"string","description":"Shell command to run"},` +
			`"timeout_seconds":{"type":"number","description":"Kill the command after this many seconds","default":60}` +
			`},"required":["command"]}`,
		Fn: func(ctx context.Context, args map[string]any) state.ToolResult {
			command, _ := args["command"].(string)
			timeout := defaultTimeout
			if v, ok := args["timeout_seconds"].(float64); ok && v > 0 {
				timeout = time.Duration(v * float64(time.Second))
			}

			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			cmd := exec.CommandContext(ctx, "sh", "-c", command)
			cmd.Dir = workDir
			output, err := cmd.CombinedOutput()

			if ctx.Err() == context.DeadlineExceeded {
				return state.ToolResult{
					Success: false,
					Message: fmt.Sprintf("Command timed out after %s", timeout),
					Data:    string(output),
				}
			}
			if err != nil {
				if exitErr, ok := err.(*exec.ExitError); ok {
					return state.ToolResult{
						Success: false,
						Message: fmt.Sprintf("Command exited with status %d", exitErr.ExitCode()),
						Data:    string(output),
					}
				}
				return state.ToolResult{Success: false, Message: fmt.Sprintf("Failed to run command: %v", err)}
			}
			return state.ToolResult{
				Success: true,
				Message: "Command completed successfully",
				Data:    string(output),
			}
		},
	}
}
