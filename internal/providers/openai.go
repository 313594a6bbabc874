package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"github.com/ChamsBouzaiene/taskpilot/internal/engine"
	"github.com/ChamsBouzaiene/taskpilot/internal/ratelimit"
	"github.com/ChamsBouzaiene/taskpilot/internal/state"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIOracle drives the loop with the chat completions API. A custom base
// URL supports OpenAI-compatible endpoints.
type OpenAIOracle struct {
	client  *openai.Client
	model   string
	limiter *ratelimit.Limiter
	logger  *log.Logger
	tools   []engine.ToolSchema
}

func NewOpenAIOracle(cfg Config, limiter *ratelimit.Limiter, logger *log.Logger) (*OpenAIOracle, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key not set")
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	return &OpenAIOracle{
		client:  openai.NewClientWithConfig(config),
		model:   model,
		limiter: limiter,
		logger:  logger,
	}, nil
}

func (o *OpenAIOracle) RegisterTool(schema engine.ToolSchema) {
	o.tools = append(o.tools, schema)
}

func (o *OpenAIOracle) GetNextAction(ctx context.Context, task string, st *state.TaskState, availableTools []string) (engine.Action, error) {
	if o.limiter != nil {
		if err := o.limiter.Acquire(ctx); err != nil {
			return engine.Action{}, err
		}
	}

	msgs := []openai.ChatCompletionMessage{{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	}}
	for _, h := range buildHistory(task, st) {
		role := openai.ChatMessageRoleUser
		if h.assistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: h.content})
	}

	var toolDefs []openai.Tool
	for _, ts := range filterSchemas(o.tools, availableTools) {
		var schemaObj map[string]any
		if err := json.Unmarshal([]byte(ts.JSONSchema), &schemaObj); err != nil {
			return engine.Action{}, fmt.Errorf("invalid tool schema JSON for %s: %w", ts.Name, err)
		}
		toolDefs = append(toolDefs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        ts.Name,
				Description: ts.Description,
				Parameters:  schemaObj,
			},
		})
	}

	req := openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: msgs,
	}
	if len(toolDefs) > 0 {
		req.Tools = toolDefs
		req.ToolChoice = "auto"
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		o.logger.Printf("openai call failed: %v", err)
		return retryAction("openai", err), nil
	}
	if len(resp.Choices) == 0 {
		o.logger.Printf("openai returned no choices")
		return retryAction("openai", fmt.Errorf("empty response")), nil
	}

	choice := resp.Choices[0]
	if len(choice.Message.ToolCalls) > 0 {
		tc := choice.Message.ToolCalls[0]
		args := make(map[string]any)
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				args = make(map[string]any)
			}
		}
		return engine.Action{
			ToolName: tc.Function.Name,
			ToolArgs: args,
			Thoughts: choice.Message.Content,
		}, nil
	}

	return engine.Action{
		IsComplete: true,
		Result:     choice.Message.Content,
		Thoughts:   choice.Message.Content,
	}, nil
}
