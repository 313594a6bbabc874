package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/ChamsBouzaiene/taskpilot/internal/state"
)

// ToolFunc executes one tool call. Ordinary failures are reported through
// ToolResult.Success=false, never through a panic.
type ToolFunc func(ctx context.Context, args map[string]any) state.ToolResult

type Tool struct {
	Name        string
	Description string
	SchemaJSON  string
	Fn          ToolFunc
}

// ValidateArgs validates the provided arguments against the tool's JSON schema.
func (t Tool) ValidateArgs(args map[string]any) error {
	schemaLoader := gojsonschema.NewStringLoader(t.SchemaJSON)
	documentLoader := gojsonschema.NewGoLoader(args)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		var errorMsgs []string
		for _, err := range result.Errors() {
			errorMsgs = append(errorMsgs, err.String())
		}
		return &ToolValidationError{ToolName: t.Name, Errors: errorMsgs}
	}
	return nil
}

type ToolRegistry map[string]Tool

// Names returns the registered tool names, sorted for stable prompts.
func (r ToolRegistry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ToolSchema is the provider-facing description of one tool.
type ToolSchema struct {
	Name        string
	Description string
	JSONSchema  string
}

func (r ToolRegistry) Schemas() []ToolSchema {
	schemas := make([]ToolSchema, 0, len(r))
	for _, name := range r.Names() {
		t := r[name]
		schemas = append(schemas, ToolSchema{
			Name:        t.Name,
			Description: t.Description,
			JSONSchema:  t.SchemaJSON,
		})
	}
	return schemas
}

// ToolValidationError reports schema violations for a tool call.
type ToolValidationError struct {
	ToolName string
	Errors   []string
}

func (e *ToolValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %s: %s", e.ToolName, strings.Join(e.Errors, "; "))
}
