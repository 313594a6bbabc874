// Package tools assembles the default toolset into an engine.ToolRegistry.
package tools

import (
	"github.com/ChamsBouzaiene/taskpilot/internal/engine"
	"github.com/ChamsBouzaiene/taskpilot/internal/tools/editing"
	"github.com/ChamsBouzaiene/taskpilot/internal/tools/execution"
	"github.com/ChamsBouzaiene/taskpilot/internal/tools/filesystem"
)

// NewToolRegistry builds the default toolset rooted at workDir.
func NewToolRegistry(workDir string) engine.ToolRegistry {
	root := filesystem.NewRoot(workDir)

	reg := make(engine.ToolRegistry)
	for _, t := range []engine.Tool{
		filesystem.NewReadFileTool(root),
		filesystem.NewWriteFileTool(root),
		filesystem.NewListFilesTool(root),
		filesystem.NewSearchFilesTool(root),
		editing.NewReplaceInFileTool(root),
		execution.NewRunCommandTool(workDir),
	} {
		reg[t.Name] = t
	}
	return reg
}
