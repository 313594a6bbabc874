// Package storage persists task state snapshots and their checkpoint chains.
//
// Two interchangeable backends are provided: a JSON document store writing one
// set of files per task, and a SQLite store. Both satisfy the same contract
// and must produce equivalent query results for identical input sequences.
//
// Neither backend is safe for concurrent writers against the same task id;
// single-writer-per-task is a documented precondition.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ChamsBouzaiene/taskpilot/internal/state"
)

// ErrNoState is returned when an operation requires a previously saved state
// snapshot and none exists for the task.
var ErrNoState = errors.New("no state saved for task")

// Checkpoint is an immutable snapshot of a task's state at a point in time.
// Checkpoints for one task form a singly-linked history through ParentID.
type Checkpoint struct {
	ID          string           `json:"id"`
	Timestamp   time.Time        `json:"timestamp"`
	TaskID      string           `json:"task_id"`
	Description string           `json:"description"`
	State       *state.TaskState `json:"state"`
	ParentID    string           `json:"parent_id,omitempty"`
}

// SearchResult is one hit from a task-history search, highest relevance first.
type SearchResult struct {
	TaskID    string
	Relevance int
}

// StateStorage is the persistence contract shared by all backends.
type StateStorage interface {
	// SaveState upserts the task's current state snapshot. Last write wins.
	SaveState(taskID string, st *state.TaskState) error

	// LoadState returns the saved snapshot, or ErrNoState if none exists.
	LoadState(taskID string) (*state.TaskState, error)

	// CreateCheckpoint snapshots the task's saved state, linking to the most
	// recent existing checkpoint as parent. Returns ErrNoState if the task
	// has never been saved.
	CreateCheckpoint(taskID, description string) (*Checkpoint, error)

	// RestoreCheckpoint returns the checkpoint's snapshot and overwrites the
	// task's current state with it. Restoration is destructive to current
	// progress by design.
	RestoreCheckpoint(checkpointID string) (*state.TaskState, error)

	// ListCheckpoints returns the task's checkpoints ordered by timestamp
	// ascending.
	ListCheckpoints(taskID string) ([]*Checkpoint, error)

	// SearchTaskHistory ranks tasks by how many persisted messages contain
	// the query, highest first, truncated to limit.
	SearchTaskHistory(query string, limit int) ([]SearchResult, error)

	// GetRelatedTasks ranks other tasks by context overlap with the given
	// task. Tasks with zero overlap are excluded.
	GetRelatedTasks(taskID string, limit int) ([]state.RelatedTask, error)

	Close() error
}

// checkpointID builds the id for the seq-th checkpoint of a task, starting at 1.
func checkpointID(taskID string, seq int) string {
	return fmt.Sprintf("%s_%d", taskID, seq)
}

func nowUTC() time.Time { return time.Now().UTC() }

// messageRelevance counts messages whose content contains the query,
// case-insensitively. This is the naive term-frequency score both backends
// must agree on.
func messageRelevance(messages []state.Message, query string) int {
	q := strings.ToLower(query)
	score := 0
	for _, m := range messages {
		if strings.Contains(strings.ToLower(m.Content), q) {
			score++
		}
	}
	return score
}

// contextOverlap scores similarity between two context mappings: the number
// of shared keys holding identical values, divided by the larger context
// size. Zero when the contexts share no keys.
func contextOverlap(a, b map[string]any) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	matching := 0
	shared := false
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			continue
		}
		shared = true
		if jsonEqual(av, bv) {
			matching++
		}
	}
	if !shared {
		return 0
	}
	larger := len(a)
	if len(b) > larger {
		larger = len(b)
	}
	return float64(matching) / float64(larger)
}

// jsonEqual compares two values by their JSON encoding. Context values pass
// through serialization boundaries, so concrete Go types may differ for the
// same logical value.
func jsonEqual(a, b any) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(ab) == string(bb)
}

// rankRelated sorts related tasks by relevance descending and truncates.
func rankRelated(related []state.RelatedTask, limit int) []state.RelatedTask {
	for i := 1; i < len(related); i++ {
		for j := i; j > 0 && related[j].Relevance > related[j-1].Relevance; j-- {
			related[j], related[j-1] = related[j-1], related[j]
		}
	}
	if limit > 0 && len(related) > limit {
		related = related[:limit]
	}
	return related
}

// rankSearch sorts search results by relevance descending and truncates.
func rankSearch(results []SearchResult, limit int) []SearchResult {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Relevance > results[j-1].Relevance; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
