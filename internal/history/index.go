// Package history maintains a full-text index over completed task
// conversations. It backs the interactive /search command; the storage
// contract's own relevance ranking is separate and unaffected.
package history

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/ChamsBouzaiene/taskpilot/internal/state"
)

// Hit is one full-text match over task history.
type Hit struct {
	TaskID    string
	Task      string
	Score     float64
	Completed bool
}

// Index is a bleve-backed full-text index of task conversations, one
// document per task.
type Index struct {
	index bleve.Index
	path  string
}

// Open opens the index at path, creating it when absent.
func Open(path string) (*Index, error) {
	index, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		index, err = bleve.New(path, buildIndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open history index: %w", err)
	}
	return &Index{index: index, path: path}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	taskDoc := bleve.NewDocumentMapping()

	taskIDField := bleve.NewTextFieldMapping()
	taskIDField.Analyzer = keyword.Name
	taskIDField.Store = true
	taskDoc.AddFieldMappingsAt("task_id", taskIDField)

	taskField := bleve.NewTextFieldMapping()
	taskField.Analyzer = standard.Name
	taskField.Store = true
	taskDoc.AddFieldMappingsAt("task", taskField)

	conversationField := bleve.NewTextFieldMapping()
	conversationField.Analyzer = standard.Name
	conversationField.Store = false
	taskDoc.AddFieldMappingsAt("conversation", conversationField)

	completedField := bleve.NewBooleanFieldMapping()
	completedField.Store = true
	taskDoc.AddFieldMappingsAt("completed", completedField)

	indexMapping.DefaultMapping = taskDoc
	return indexMapping
}

// IndexTask upserts one task's conversation into the index.
func (i *Index) IndexTask(st *state.TaskState) error {
	if st.TaskID == "" {
		return fmt.Errorf("task state has no id")
	}
	var conversation strings.Builder
	for _, m := range st.Messages {
		conversation.WriteString(m.Content)
		conversation.WriteString("\n")
	}
	doc := map[string]any{
		"task_id":      st.TaskID,
		"task":         st.Task,
		"conversation": conversation.String(),
		"completed":    st.IsComplete,
	}
	return i.index.Index(st.TaskID, doc)
}

// Delete removes a task from the index.
func (i *Index) Delete(taskID string) error {
	return i.index.Delete(taskID)
}

// Search returns the top k tasks matching the query across descriptions and
// conversations, best score first.
func (i *Index) Search(query string, k int) ([]Hit, error) {
	q := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequest(q)
	req.Size = k
	req.Fields = []string{"task", "completed"}

	result, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("history search failed: %w", err)
	}

	hits := make([]Hit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		h := Hit{TaskID: hit.ID, Score: hit.Score}
		if task, ok := hit.Fields["task"].(string); ok {
			h.Task = task
		}
		if completed, ok := hit.Fields["completed"].(bool); ok {
			h.Completed = completed
		}
		hits = append(hits, h)
	}
	return hits, nil
}

func (i *Index) Close() error {
	return i.index.Close()
}
