package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ChamsBouzaiene/taskpilot/internal/debug"
)

// BreakpointWatcher reloads the debug.breakpoints section whenever the
// config file changes, so breakpoints can be added and removed while a task
// runs without restarting the agent.
type BreakpointWatcher struct {
	path     string
	session  *debug.Session
	watcher  *fsnotify.Watcher
	logger   *log.Logger
	debounce time.Duration

	mu      sync.Mutex
	applied map[string]bool // breakpoint names we own in the session

	done chan struct{}
	wg   sync.WaitGroup
}

// NewBreakpointWatcher watches configPath and applies breakpoint changes to
// the session. Call Start to begin and Stop to shut down.
func NewBreakpointWatcher(configPath string, session *debug.Session, logger *log.Logger) (*BreakpointWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return &BreakpointWatcher{
		path:     configPath,
		session:  session,
		watcher:  watcher,
		logger:   logger,
		debounce: 500 * time.Millisecond,
		applied:  make(map[string]bool),
		done:     make(chan struct{}),
	}, nil
}

// Start applies the current breakpoints and begins watching for changes.
// Editors replace files on save, so the parent directory is watched rather
// than the file itself.
func (w *BreakpointWatcher) Start() error {
	if err := w.reload(); err != nil {
		return err
	}
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}
	w.wg.Add(1)
	go w.eventLoop()
	return nil
}

func (w *BreakpointWatcher) Stop() error {
	close(w.done)
	w.wg.Wait()
	return w.watcher.Close()
}

func (w *BreakpointWatcher) eventLoop() {
	defer w.wg.Done()

	var timer *time.Timer
	pending := make(chan time.Time, 1)

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Debounce bursts of write events from editors.
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case pending <- time.Now():
				default:
				}
			})
		case <-pending:
			if err := w.reload(); err != nil {
				w.logger.Printf("warning: breakpoint reload failed: %v", err)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Printf("warning: watcher error: %v", err)
		}
	}
}

// reload replaces the session breakpoints this watcher manages with the
// file's current set. Breakpoints added directly through the session API are
// left alone.
func (w *BreakpointWatcher) reload() error {
	cfg, err := Load(w.path)
	if err != nil {
		return err
	}
	current := cfg.DebugBreakpoints()

	w.mu.Lock()
	defer w.mu.Unlock()

	for name := range w.applied {
		if _, still := current[name]; !still {
			w.session.RemoveBreakpoint(name)
			delete(w.applied, name)
			w.logger.Printf("breakpoint removed: %s", name)
		}
	}
	for name, bp := range current {
		w.session.AddBreakpoint(name, bp)
		if !w.applied[name] {
			w.logger.Printf("breakpoint added: %s (%s)", name, bp.Kind)
		}
		w.applied[name] = true
	}
	return nil
}
