// Package editing implements in-place file edit tools.
package editing

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ChamsBouzaiene/taskpilot/internal/engine"
	"github.com/ChamsBouzaiene/taskpilot/internal/state"
	"github.com/ChamsBouzaiene/taskpilot/internal/tools/filesystem"
)

// NewReplaceInFileTool replaces occurrences of a search string in a file.
func NewReplaceInFileTool(root *filesystem.Root) engine.Tool {
	return engine.Tool{
		Name:        "replace_in_file",
		Description: "Replace occurrences of a search string in a file",
		SchemaJSON: `{"type":"object","properties":{` +
			`"path":{"type":"string","description":"Path to the file, relative to the working directory"},` +
			`"search":{"type":"string","description":"Exact text to find"},` +
			`"replace":{"type":"string","description":"Replacement text"}` +
			`},"required":["path","search","replace"]}`,
		Fn: func(ctx context.Context, args map[string]any) state.ToolResult {
			path, _ := args["path"].(string)
			search, _ := args["search"].(string)
			replace, _ := args["replace"].(string)

			if search == "" {
				return state.ToolResult{Success: false, Message: "search string must not be empty"}
			}
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

			text := string(content)
			count := strings.Count(text, search)
			if count == 0 {
				return state.ToolResult{Success: false, Message: fmt.Sprintf("Search string not found in %s", path)}
			}
			if err := os.WriteFile(full, []byte(strings.ReplaceAll(text, search, replace)), 0o644); err != nil {
				return state.ToolResult{Success: false, Message: fmt.Sprintf("Failed to write file: %v", err)}
			}
			return state.ToolResult{
				Success: true,
				Message: fmt.Sprintf("Replaced %d occurrence(s) in %s", count, path),
				Data:    count,
			}
		},
	}
}
