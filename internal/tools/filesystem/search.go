package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ChamsBouzaiene/taskpilot/internal/engine"
	"github.com/ChamsBouzaiene/taskpilot/internal/state"
)

// NewSearchFilesTool finds files by name. Recursive search matches the
// pattern as a substring of the file name; non-recursive search treats the
// pattern as a glob within the directory.
func NewSearchFilesTool(root *Root) engine.Tool {
	return engine.Tool{
		Name:        "search_files",
		Description: "Search for files matching a pattern",
		SchemaJSON: `{"type":"object","properties":{` +
			`"directory":{"type":"string","description":"Directory to search, relative to the working directory"},` +
			`"pattern":{"type":"string","description":"Substring (recursive) or glob (non-recursive) to match file names against"},` +
			`"recursive":{"type":"boolean","description":"Descend into subdirectories","default":true}` +
			`},"required":["directory","pattern"]}`,
		Fn: func(ctx context.Context, args map[string]any) state.ToolResult {
			dir, _ := args["directory"].(string)
			pattern, _ := args["pattern"].(string)
			recursive := true
			if v, ok := args["recursive"].(bool); ok {
				recursive = v
			}

			full, err := root.Resolve(dir)
			if err != nil {
				return state.ToolResult{Success: false, Message: err.Error()}
			}
			if info, err := os.Stat(full); err != nil || !info.IsDir() {
				return state.ToolResult{Success: false, Message: fmt.Sprintf("Directory not found: %s", dir)}
			}

			var matches []string
			if recursive {
				filepath.WalkDir(full, func(path string, d fs.DirEntry, err error) error {
					if err != nil {
						return nil
					}
					if root.Ignored(path) {
						if d.IsDir() {
							return filepath.SkipDir
						}
						return nil
					}
					if !d.IsDir() && strings.Contains(d.Name(), pattern) {
						matches = append(matches, path)
					}
					return nil
				})
			} else {
				paths, err := filepath.Glob(filepath.Join(full, pattern))
				if err != nil {
					return state.ToolResult{Success: false, Message: fmt.Sprintf("Search failed: %v", err)}
				}
				for _, path := range paths {
					if info, err := os.Stat(path); err == nil && !info.IsDir() && !root.Ignored(path) {
						matches = append(matches, path)
					}
				}
			}
			return state.ToolResult{
				Success: true,
				Message: fmt.Sprintf("Found %d matches", len(matches)),
				Data:    matches,
			}
		},
	}
}
