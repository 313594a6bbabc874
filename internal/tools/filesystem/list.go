package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ChamsBouzaiene/taskpilot/internal/engine"
	"github.com/ChamsBouzaiene/taskpilot/internal/state"
)

// NewListFilesTool lists files in a directory, honoring ignore patterns.
func NewListFilesTool(root *Root) engine.Tool {
	return engine.Tool{
		Name:        "list_files",
		Description: "List files in a directory",
		SchemaJSON: `{"type":"object","properties":{` +
			`"directory":{"type":"string","description":"Directory to list, relative to the working directory"},` +
			`"recursive":{"type":"boolean","description":"Descend into subdirectories","default":false}` +
			`},"required":["directory"]}`,
		Fn: func(ctx context.Context, args map[string]any) state.ToolResult {
			dir, _ := args["directory"].(string)
			recursive, _ := args["recursive"].(bool)

			full, err := root.Resolve(dir)
			if err != nil {
				return state.ToolResult{Success: false, Message: err.Error()}
			}
			if info, err := os.Stat(full); err != nil || !info.IsDir() {
				return state.ToolResult{Success: false, Message: fmt.Sprintf("Directory not found: %s", dir)}
			}

			var files []string
			if recursive {
				err = filepath.WalkDir(full, func(path string, d fs.DirEntry, err error) error {
					if err != nil {
						return nil
					}
					if root.Ignored(path) {
						if d.IsDir() {
							return filepath.SkipDir
						}
						return nil
					}
					if !d.IsDir() {
						files = append(files, path)
					}
					return nil
				})
			} else {
				entries, rerr := os.ReadDir(full)
				err = rerr
				for _, entry := range entries {
					path := filepath.Join(full, entry.Name())
					if entry.IsDir() || root.Ignored(path) {
						continue
					}
					files = append(files, path)
				}
			}
			if err != nil {
				return state.ToolResult{Success: false, Message: fmt.Sprintf("Failed to list files: %v", err)}
			}
			return state.ToolResult{
				Success: true,
				Message: fmt.Sprintf("Listed %d files", len(files)),
				Data:    files,
			}
		},
	}
}
