// Package approval asks an external party to confirm tool executions.
package approval

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Callback decides whether a tool execution may proceed. Implementations may
// block on human input; the context bounds the wait.
type Callback interface {
	GetApproval(ctx context.Context, toolName string, args map[string]any, description string) (bool, error)
}

// Func adapts a function to the Callback interface.
type Func func(ctx context.Context, toolName string, args map[string]any, description string) (bool, error)

func (f Func) GetApproval(ctx context.Context, toolName string, args map[string]any, description string) (bool, error) {
	return f(ctx, toolName, args, description)
}

// Console prompts for y/n on a terminal. Unrecognized input re-prompts.
type Console struct {
	In  io.Reader
	Out io.Writer
}

func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{In: in, Out: out}
}

func (c *Console) GetApproval(ctx context.Context, toolName string, args map[string]any, description string) (bool, error) {
	fmt.Fprintf(c.Out, "\nTool Execution Request:\n")
	fmt.Fprintf(c.Out, "Tool: %s\n", toolName)
	fmt.Fprintf(c.Out, "Arguments: %v\n", args)
	if description != "" {
		fmt.Fprintf(c.Out, "Description: %s\n", description)
	}

	reader := bufio.NewReader(c.In)
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		fmt.Fprint(c.Out, "\nDo you approve this tool execution? (y/n): ")
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return false, fmt.Errorf("failed to read approval: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(c.Out, "Please enter 'y' or 'n'")
	}
}
