package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ChamsBouzaiene/taskpilot/internal/state"
)

// JSONStorage persists task state as JSON documents, one set of files per
// task. Messages and context are written to separate documents so they can be
// scanned without loading full snapshots.
type JSONStorage struct {
	statePath      string
	checkpointPath string
	contextPath    string
}

// NewJSONStorage creates the storage directories under basePath.
func NewJSONStorage(basePath string) (*JSONStorage, error) {
	s := &JSONStorage{
		statePath:      filepath.Join(basePath, "states"),
		checkpointPath: filepath.Join(basePath, "checkpoints"),
		contextPath:    filepath.Join(basePath, "context"),
	}
	for _, dir := range []string{s.statePath, s.checkpointPath, s.contextPath} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}
	return s, nil
}

type messagesDoc struct {
	Messages []state.Message `json:"messages"`
}

type contextDoc struct {
	Context map[string]any `json:"context"`
}

func (s *JSONStorage) SaveState(taskID string, st *state.TaskState) error {
	if err := writeJSON(filepath.Join(s.statePath, taskID+".json"), st); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := writeJSON(filepath.Join(s.statePath, taskID+"_messages.json"), messagesDoc{Messages: st.Messages}); err != nil {
		return fmt.Errorf("failed to write messages: %w", err)
	}
	if err := writeJSON(filepath.Join(s.contextPath, taskID+"_context.json"), contextDoc{Context: st.Context}); err != nil {
		return fmt.Errorf("failed to write context: %w", err)
	}
	return nil
}

func (s *JSONStorage) LoadState(taskID string) (*state.TaskState, error) {
	path := filepath.Join(s.statePath, taskID+".json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNoState
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	var st state.TaskState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse state: %w", err)
	}

	// Messages and context documents are authoritative when present.
	var msgs messagesDoc
	if readJSON(filepath.Join(s.statePath, taskID+"_messages.json"), &msgs) == nil {
		st.Messages = msgs.Messages
	}
	var ctx contextDoc
	if readJSON(filepath.Join(s.contextPath, taskID+"_context.json"), &ctx) == nil && ctx.Context != nil {
		st.Context = ctx.Context
	}
	return &st, nil
}

func (s *JSONStorage) CreateCheckpoint(taskID, description string) (*Checkpoint, error) {
	st, err := s.LoadState(taskID)
	if err != nil {
		return nil, err
	}

	existing, err := s.ListCheckpoints(taskID)
	if err != nil {
		return nil, err
	}
	parentID := ""
	if len(existing) > 0 {
		parentID = existing[len(existing)-1].ID
	}

	cp := &Checkpoint{
		ID:          checkpointID(taskID, len(existing)+1),
		Timestamp:   nowUTC(),
		TaskID:      taskID,
		Description: description,
		State:       st,
		ParentID:    parentID,
	}
	if err := writeJSON(filepath.Join(s.checkpointPath, cp.ID+".json"), cp); err != nil {
		return nil, fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return cp, nil
}

func (s *JSONStorage) RestoreCheckpoint(checkpointID string) (*state.TaskState, error) {
	var cp Checkpoint
	if err := readJSON(filepath.Join(s.checkpointPath, checkpointID+".json"), &cp); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("checkpoint %s not found", checkpointID)
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	if err := s.SaveState(cp.TaskID, cp.State); err != nil {
		return nil, err
	}
	return cp.State, nil
}

func (s *JSONStorage) ListCheckpoints(taskID string) ([]*Checkpoint, error) {
	pattern := filepath.Join(s.checkpointPath, taskID+"_*.json")
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}

	var checkpoints []*Checkpoint
	for _, path := range paths {
		var cp Checkpoint
		if err := readJSON(path, &cp); err != nil {
			continue // skip unreadable files
		}
		checkpoints = append(checkpoints, &cp)
	}
	sort.Slice(checkpoints, func(i, j int) bool {
		if checkpoints[i].Timestamp.Equal(checkpoints[j].Timestamp) {
			return checkpoints[i].ID < checkpoints[j].ID
		}
		return checkpoints[i].Timestamp.Before(checkpoints[j].Timestamp)
	})
	return checkpoints, nil
}

func (s *JSONStorage) SearchTaskHistory(query string, limit int) ([]SearchResult, error) {
	pattern := filepath.Join(s.statePath, "*_messages.json")
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	for _, path := range paths {
		taskID := strings.TrimSuffix(filepath.Base(path), "_messages.json")
		var doc messagesDoc
		if err := readJSON(path, &doc); err != nil {
			continue
		}
		if score := messageRelevance(doc.Messages, query); score > 0 {
			results = append(results, SearchResult{TaskID: taskID, Relevance: score})
		}
	}
	return rankSearch(results, limit), nil
}

func (s *JSONStorage) GetRelatedTasks(taskID string, limit int) ([]state.RelatedTask, error) {
	current, err := s.LoadState(taskID)
	if err != nil {
		if err == ErrNoState {
			return nil, nil
		}
		return nil, err
	}

	paths, err := filepath.Glob(filepath.Join(s.statePath, "*.json"))
	if err != nil {
		return nil, err
	}

	var related []state.RelatedTask
	for _, path := range paths {
		name := filepath.Base(path)
		if strings.HasSuffix(name, "_messages.json") {
			continue
		}
		otherID := strings.TrimSuffix(name, ".json")
		if otherID == taskID {
			continue
		}
		other, err := s.LoadState(otherID)
		if err != nil {
			continue
		}
		if score := contextOverlap(current.Context, other.Context); score > 0 {
			related = append(related, state.RelatedTask{
				TaskID:    otherID,
				Task:      other.Task,
				Relevance: score,
				Completed: other.IsComplete,
			})
		}
	}
	return rankRelated(related, limit), nil
}

func (s *JSONStorage) Close() error { return nil }

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
