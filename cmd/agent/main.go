package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/ChamsBouzaiene/taskpilot/internal/approval"
	"github.com/ChamsBouzaiene/taskpilot/internal/config"
	"github.com/ChamsBouzaiene/taskpilot/internal/debug"
	"github.com/ChamsBouzaiene/taskpilot/internal/engine"
	"github.com/ChamsBouzaiene/taskpilot/internal/history"
	"github.com/ChamsBouzaiene/taskpilot/internal/providers"
	"github.com/ChamsBouzaiene/taskpilot/internal/ratelimit"
	"github.com/ChamsBouzaiene/taskpilot/internal/storage"
	"github.com/ChamsBouzaiene/taskpilot/internal/tools"
)

func main() {
	// Load .env if present; real environment wins.
	_ = godotenv.Load()

	configPath := flag.String("config", "agent.yaml", "Path to the agent configuration file")
	flag.Parse()

	if err := run(context.Background(), *configPath); err != nil {
		log.Fatalf("agent failed: %v", err)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := log.New(os.Stderr, "[agent] ", log.LstdFlags)

	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	limiter := ratelimit.New(cfg.RateLimit)
	oracle, err := providers.New(providers.Config{
		Provider: cfg.LLMProvider,
		APIKey:   cfg.APIKey,
		Model:    cfg.Model,
		BaseURL:  cfg.BaseURL,
	}, limiter, logger)
	if err != nil {
		return err
	}

	registry := tools.NewToolRegistry(cfg.WorkingDirectory)
	for _, schema := range registry.Schemas() {
		oracle.RegisterTool(schema)
	}

	session := debug.NewSession(cfg.Debug.StepByStep)
	var watcher *config.BreakpointWatcher
	if cfg.Debug.Enabled {
		session.Start()
		for name, bp := range cfg.DebugBreakpoints() {
			session.AddBreakpoint(name, bp)
		}
		watcher, err = config.NewBreakpointWatcher(configPath, session, logger)
		if err != nil {
			return err
		}
		if err := watcher.Start(); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	agent, err := engine.New(engine.Options{
		Oracle:                      oracle,
		Tools:                       registry,
		Storage:                     store,
		Approver:                    approval.NewConsole(os.Stdin, os.Stdout),
		Session:                     session,
		Logger:                      logger,
		AutoApproveTools:            cfg.AutoApproveTools,
		MaxConsecutiveAutoApprovals: cfg.MaxConsecutiveAutoApprovals,
		MaxIterations:               cfg.MaxIterations,
		AutoCheckpoint:              cfg.StateStorage.AutoCheckpoint,
		MaxCheckpoints:              cfg.StateStorage.MaxCheckpoints,
	})
	if err != nil {
		return err
	}

	index, err := history.Open(filepath.Join(storagePath(cfg), "history.bleve"))
	if err != nil {
		return err
	}
	defer index.Close()

	return repl(ctx, agent, store, index, session, cfg.Debug.Enabled)
}

func openStorage(cfg *config.Config) (storage.StateStorage, error) {
	path := storagePath(cfg)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	if cfg.StateStorage.Type == "sqlite" {
		return storage.NewSQLiteStorage(filepath.Join(path, "state.db"))
	}
	return storage.NewJSONStorage(path)
}

func storagePath(cfg *config.Config) string {
	if cfg.StateStorage.Path != "" {
		return cfg.StateStorage.Path
	}
	return filepath.Join(cfg.WorkingDirectory, ".taskpilot", "state")
}

// consoleDebug prints break events to the terminal.
type consoleDebug struct{}

func (consoleDebug) OnBreak(info debug.Info) {
	fmt.Printf("\n[break] %s %v\n", info.Action, info.Details)
}

func (consoleDebug) OnStep(info debug.Info) {
	fmt.Print("[step] press enter to continue...")
	fmt.Scanln()
}

func (consoleDebug) OnError(err error, info debug.Info) {
	fmt.Printf("[debug error] %v\n", err)
}

func repl(ctx context.Context, agent *engine.Agent, store storage.StateStorage, index *history.Index, session *debug.Session, debugEnabled bool) error {
	fmt.Println("taskpilot — type a task, or /help for commands")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return nil
		}
		if strings.HasPrefix(line, "/") {
			handleCommand(agent, store, index, line)
			continue
		}

		var dbg debug.Callback
		if debugEnabled {
			// The engine stops the session when the task ends; restart it so
			// breakpoints stay armed for the next task.
			session.Start()
			dbg = consoleDebug{}
		}
		result, err := agent.ExecuteTask(ctx, line, dbg)
		if err != nil {
			fmt.Printf("task failed: %v\n", err)
		} else {
			fmt.Printf("result: %s\n", result)
		}
		if err := index.IndexTask(agent.State()); err != nil {
			fmt.Printf("warning: failed to index task: %v\n", err)
		}
	}
}

func handleCommand(agent *engine.Agent, store storage.StateStorage, index *history.Index, line string) {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/help":
		fmt.Println(`commands:
  /search <query>    full-text search over past tasks
  /checkpoints       list checkpoints of the current task
  /restore <id>      restore a checkpoint (overwrites current state)
  /related           tasks with overlapping context
  /quit              exit`)

	case "/search":
		if arg == "" {
			fmt.Println("usage: /search <query>")
			return
		}
		hits, err := index.Search(arg, 10)
		if err != nil {
			fmt.Printf("search failed: %v\n", err)
			return
		}
		if len(hits) == 0 {
			fmt.Println("no matches")
			return
		}
		for _, h := range hits {
			status := "in progress"
			if h.Completed {
				status = "completed"
			}
			fmt.Printf("  %.2f  %s  %s (%s)\n", h.Score, h.TaskID, h.Task, status)
		}

	case "/checkpoints":
		checkpoints, err := store.ListCheckpoints(agent.TaskID())
		if err != nil {
			fmt.Printf("failed to list checkpoints: %v\n", err)
			return
		}
		if len(checkpoints) == 0 {
			fmt.Println("no checkpoints")
			return
		}
		for _, cp := range checkpoints {
			fmt.Printf("  %s  %s  %s\n", cp.ID, cp.Timestamp.Format("15:04:05"), cp.Description)
		}

	case "/restore":
		if arg == "" {
			fmt.Println("usage: /restore <checkpoint-id>")
			return
		}
		st, err := store.RestoreCheckpoint(arg)
		if err != nil {
			fmt.Printf("restore failed: %v\n", err)
			return
		}
		fmt.Printf("restored %s: task %q, %d messages\n", arg, st.Task, len(st.Messages))

	case "/related":
		related, err := agent.RelatedTasks(5)
		if err != nil {
			fmt.Printf("failed to load related tasks: %v\n", err)
			return
		}
		if len(related) == 0 {
			fmt.Println("no related tasks")
			return
		}
		for _, r := range related {
			fmt.Printf("  %.2f  %s  %s\n", r.Relevance, r.TaskID, r.Task)
		}

	default:
		fmt.Printf("unknown command: %s (try /help)\n", cmd)
	}
}
