package filesystem

import (
	"context"
	"fmt"
	"os"

	"github.com/ChamsBouzaiene/taskpilot/internal/engine"
	"github.com/ChamsBouzaiene/taskpilot/internal/state"
)

// NewReadFileTool reads a file relative to the working directory.
func NewReadFileTool(root *Root) engine.Tool {
	return engine.Tool{
		Name:        "read_file",
		Description: "Read contents of a file at the specified path",
		SchemaJSON:  `{"type":"object","properties":{"path":{"type":"string","description":"Path to the file, relative to the working directory"}},"required":["path"]}`,
		Fn: func(ctx context.Context, args map[string]any) state.ToolResult {
			path, _ := args["path"].(string)
			full, err := root.Resolve(path)
			if err != nil {
				return state.ToolResult{Success: false, Message: err.Error()}
			}
			content, err := os.ReadFile(full)
			if os.IsNotExist(err) {
				return state.ToolResult{Success: false, Message: fmt.Sprintf("File not found: %s", path)}
			}
			if err != nil {
				return state.ToolResult{Success: false, Message: fmt.Sprintf("Failed to read file: %v", err)}
			}
			return state.ToolResult{
				Success: true,
				Message: "File read successfully",
				Data:    string(content),
			}
		},
	}
}
