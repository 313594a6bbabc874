// Package providers adapts LLM APIs to the engine's Oracle contract.
//
// Adapters never surface transport failures as loop-fatal errors: a failed
// call becomes a non-terminal Action whose Thoughts explain the failure, and
// the engine's next iteration retries, bounded only by max_iterations.
package providers

import (
	"fmt"
	"log"
	"os"

	"github.com/ChamsBouzaiene/taskpilot/internal/engine"
	"github.com/ChamsBouzaiene/taskpilot/internal/ratelimit"
	"github.com/ChamsBouzaiene/taskpilot/internal/state"
)

// Config selects and configures a provider.
type Config struct {
	Provider string // "anthropic" or "openai"
	APIKey   string
	Model    string
	BaseURL  string // OpenAI-compatible endpoints only
}

// Oracle extends engine.Oracle with tool registration so providers can offer
// native tool-calling.
type Oracle interface {
	engine.Oracle
	RegisterTool(schema engine.ToolSchema)
}

// New builds the oracle adapter named by cfg.Provider.
func New(cfg Config, limiter *ratelimit.Limiter, logger *log.Logger) (Oracle, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[oracle] ", log.LstdFlags)
	}
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicOracle(cfg, limiter, logger)
	case "openai", "":
		return NewOpenAIOracle(cfg, limiter, logger)
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

const systemPrompt = `You are an autonomous task execution agent. ` +
	`Work on the user's task step by step. When an action is needed, call exactly one tool. ` +
	`When the task is finished, reply with plain text describing the final result and do not call any tool.`

// maxHistoryMessages bounds how much task history is replayed to the model.
const maxHistoryMessages = 30

// historyMessage is the provider-neutral replay of one TaskState message.
type historyMessage struct {
	assistant bool
	content   string
}

// buildHistory converts the task state into an alternating conversation,
// newest maxHistoryMessages only. Non-assistant roles (system, user, tool)
// are replayed as user turns.
func buildHistory(task string, st *state.TaskState) []historyMessage {
	history := []historyMessage{{assistant: false, content: "Task: " + task}}

	msgs := st.Messages
	if len(msgs) > maxHistoryMessages {
		msgs = msgs[len(msgs)-maxHistoryMessages:]
	}
	for _, m := range msgs {
		if m.Content == "" {
			continue
		}
		history = append(history, historyMessage{
			assistant: m.Role == "assistant",
			content:   m.Content,
		})
	}

	if last := st.LastToolResult(); last != nil {
		history = append(history, historyMessage{
			assistant: false,
			content:   fmt.Sprintf("Last tool result (%s): success=%v message=%s", last.ToolName, last.Result.Success, last.Result.Message),
		})
	}
	return history
}

// filterSchemas keeps only the schemas whose names the engine offered.
func filterSchemas(registered []engine.ToolSchema, available []string) []engine.ToolSchema {
	allowed := make(map[string]bool, len(available))
	for _, name := range available {
		allowed[name] = true
	}
	filtered := make([]engine.ToolSchema, 0, len(registered))
	for _, s := range registered {
		if allowed[s.Name] {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

// retryAction wraps a transport failure into a non-terminal action.
func retryAction(provider string, err error) engine.Action {
	return engine.Action{
		IsComplete: false,
		Thoughts:   fmt.Sprintf("%s call failed (%v); will retry on the next iteration", provider, err),
	}
}
