package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ChamsBouzaiene/taskpilot/internal/engine"
	"github.com/ChamsBouzaiene/taskpilot/internal/state"
)

// NewWriteFileTool writes content to a file, creating parent directories
// unless create_dirs is false.
func NewWriteFileTool(root *Root) engine.Tool {
	return engine.Tool{
		Name:        "write_file",
		Description: "Write content to a file at the specified path",
		SchemaJSON: `{"type":"object","properties":{` +
			`"path":{"type":"string","description":"Path to the file, relative to the working directory"},` +
			`"content":{"type":"string","description":"Content to write"},` +
			`"create_dirs":{"type":"boolean","description":"Create parent directories if missing","default":true}` +
			`},"required":["path","content"]}`,
		Fn: func(ctx context.Context, args map[string]any) state.ToolResult {
			path, _ := args["path"].(string)
			content, _ := args["content"].(string)
			createDirs := true
			if v, ok := args["create_dirs"].(bool); ok {
				createDirs = v
			}

			full, err := root.Resolve(path)
			if err != nil {
				return state.ToolResult{Success: false, Message: err.Error()}
			}
			if createDirs {
				if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
					return state.ToolResult{Success: false, Message: fmt.Sprintf("Failed to create directories: %v", err)}
				}
			}
			if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
				return state.ToolResult{Success: false, Message: fmt.Sprintf("Failed to write file: %v", err)}
			}
			return state.ToolResult{Success: true, Message: fmt.Sprintf("Content written to %s", path)}
		},
	}
}
