package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	anthropic "github.com/liushuangls/go-anthropic/v2"

	"github.com/ChamsBouzaiene/taskpilot/internal/engine"
	"github.com/ChamsBouzaiene/taskpilot/internal/ratelimit"
	"github.com/ChamsBouzaiene/taskpilot/internal/state"
)

const defaultAnthropicModel = "claude-3-5-sonnet-20241022"

// AnthropicOracle drives the loop with Anthropic's Messages API, using
// native tool_use blocks for tool dispatch.
type AnthropicOracle struct {
	client  *anthropic.Client
	model   string
	limiter *ratelimit.Limiter
	logger  *log.Logger
	tools   []engine.ToolSchema
}

func NewAnthropicOracle(cfg Config, limiter *ratelimit.Limiter, logger *log.Logger) (*AnthropicOracle, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key not set")
	}
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	return &AnthropicOracle{
		client:  anthropic.NewClient(cfg.APIKey),
		model:   model,
		limiter: limiter,
		logger:  logger,
	}, nil
}

func (o *AnthropicOracle) RegisterTool(schema engine.ToolSchema) {
	o.tools = append(o.tools, schema)
}

func (o *AnthropicOracle) GetNextAction(ctx context.Context, task string, st *state.TaskState, availableTools []string) (engine.Action, error) {
	if o.limiter != nil {
		if err := o.limiter.Acquire(ctx); err != nil {
			return engine.Action{}, err
		}
	}

	var msgs []anthropic.Message
	for _, h := range buildHistory(task, st) {
		role := anthropic.RoleUser
		if h.assistant {
			role = anthropic.RoleAssistant
		}
		msgs = append(msgs, anthropic.Message{
			Role:    role,
			Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(h.content)},
		})
	}

	var toolDefs []anthropic.ToolDefinition
	for _, ts := range filterSchemas(o.tools, availableTools) {
		var schemaObj map[string]any
		if err := json.Unmarshal([]byte(ts.JSONSchema), &schemaObj); err != nil {
			return engine.Action{}, fmt.Errorf("invalid tool schema JSON for %s: %w", ts.Name, err)
		}
		toolDefs = append(toolDefs, anthropic.ToolDefinition{
			Name:        ts.Name,
			Description: ts.Description,
			InputSchema: schemaObj,
		})
	}

	req := anthropic.MessagesRequest{
		Model:     anthropic.Model(o.model),
		Messages:  msgs,
		MaxTokens: 4096,
		MultiSystem: []anthropic.MessageSystemPart{
			{Type: "text", Text: systemPrompt},
		},
	}
	if len(toolDefs) > 0 {
		req.Tools = toolDefs
	}

	resp, err := o.client.CreateMessages(ctx, req)
	if err != nil {
		o.logger.Printf("anthropic call failed: %v", err)
		return retryAction("anthropic", err), nil
	}

	var textContent string
	for _, block := range resp.Content {
		switch block.Type {
		case anthropic.MessagesContentTypeText:
			if block.Text != nil {
				textContent += *block.Text
			}
		case "tool_use":
			if block.MessageContentToolUse == nil || block.Name == "" {
				continue
			}
			args := make(map[string]any)
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &args); err != nil {
					args = make(map[string]any)
				}
			}
			return engine.Action{
				ToolName: block.Name,
				ToolArgs: args,
				Thoughts: textContent,
			}, nil
		}
	}

	// No tool use: plain text is the final answer.
	return engine.Action{
		IsComplete: true,
		Result:     textContent,
		Thoughts:   textContent,
	}, nil
}
