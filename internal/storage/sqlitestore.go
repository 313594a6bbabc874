package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ChamsBouzaiene/taskpilot/internal/state"
)

// SQLiteStorage persists task state in a SQLite database with normalized
// messages and context tables so history can be queried without decoding
// full snapshots.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (or creates) the database and initializes the schema.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	// WAL mode allows readers to proceed alongside the single writer.
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite does not support multiple concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStorage{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStorage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS states (
		task_id    TEXT PRIMARY KEY,
		state      TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS checkpoints (
		id          TEXT PRIMARY KEY,
		task_id     TEXT NOT NULL,
		seq         INTEGER NOT NULL,
		timestamp   TEXT NOT NULL,
		description TEXT NOT NULL,
		state       TEXT NOT NULL,
		parent_id   TEXT,
		FOREIGN KEY (task_id) REFERENCES states(task_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id   TEXT NOT NULL,
		role      TEXT NOT NULL,
		content   TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		metadata  TEXT,
		FOREIGN KEY (task_id) REFERENCES states(task_id)
	);

	CREATE TABLE IF NOT EXISTS context (
		task_id   TEXT NOT NULL,
		key       TEXT NOT NULL,
		value     TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		PRIMARY KEY (task_id, key),
		FOREIGN KEY (task_id) REFERENCES states(task_id)
	);

	CREATE INDEX IF NOT EXISTS idx_checkpoints_task ON checkpoints(task_id);
	CREATE INDEX IF NOT EXISTS idx_messages_task ON messages(task_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveState replaces the task's snapshot, messages and context rows in one
// transaction. Repeating the same save leaves the database unchanged.
func (s *SQLiteStorage) SaveState(taskID string, st *state.TaskState) error {
	snapshot, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO states (task_id, state, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			state = excluded.state,
			updated_at = excluded.updated_at
	`, taskID, string(snapshot), nowUTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to upsert state: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM messages WHERE task_id = ?`, taskID); err != nil {
		return err
	}
	for _, m := range st.Messages {
		metadata, err := json.Marshal(m.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal message metadata: %w", err)
		}
		_, err = tx.Exec(`
			INSERT INTO messages (task_id, role, content, timestamp, metadata)
			VALUES (?, ?, ?, ?, ?)
		`, taskID, m.Role, m.Content, m.Timestamp.Format(time.RFC3339Nano), string(metadata))
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM context WHERE task_id = ?`, taskID); err != nil {
		return err
	}
	for key, value := range st.Context {
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal context value: %w", err)
		}
		_, err = tx.Exec(`
			INSERT INTO context (task_id, key, value, timestamp) VALUES (?, ?, ?, ?)
		`, taskID, key, string(encoded), nowUTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("failed to insert context: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStorage) LoadState(taskID string) (*state.TaskState, error) {
	var snapshot string
	err := s.db.QueryRow(`SELECT state FROM states WHERE task_id = ?`, taskID).Scan(&snapshot)
	if err == sql.ErrNoRows {
		return nil, ErrNoState
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query state: %w", err)
	}

	var st state.TaskState
	if err := json.Unmarshal([]byte(snapshot), &st); err != nil {
		return nil, fmt.Errorf("failed to parse state: %w", err)
	}

	msgs, err := s.loadMessages(taskID)
	if err != nil {
		return nil, err
	}
	st.Messages = msgs

	ctx, err := s.loadContext(taskID)
	if err != nil {
		return nil, err
	}
	st.Context = ctx

	return &st, nil
}

func (s *SQLiteStorage) loadMessages(taskID string) ([]state.Message, error) {
	rows, err := s.db.Query(`
		SELECT role, content, timestamp, metadata
		FROM messages WHERE task_id = ? ORDER BY id
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []state.Message
	for rows.Next() {
		var m state.Message
		var ts string
		var metadata sql.NullString
		if err := rows.Scan(&m.Role, &m.Content, &ts, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if m.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("failed to parse message timestamp: %w", err)
		}
		if metadata.Valid && metadata.String != "null" {
			if err := json.Unmarshal([]byte(metadata.String), &m.Metadata); err != nil {
				return nil, fmt.Errorf("failed to parse message metadata: %w", err)
			}
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (s *SQLiteStorage) loadContext(taskID string) (map[string]any, error) {
	rows, err := s.db.Query(`SELECT key, value FROM context WHERE task_id = ?`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query context: %w", err)
	}
	defer rows.Close()

	ctx := make(map[string]any)
	for rows.Next() {
		var key, encoded string
		if err := rows.Scan(&key, &encoded); err != nil {
			return nil, fmt.Errorf("failed to scan context: %w", err)
		}
		var value any
		if err := json.Unmarshal([]byte(encoded), &value); err != nil {
			return nil, fmt.Errorf("failed to parse context value: %w", err)
		}
		ctx[key] = value
	}
	return ctx, rows.Err()
}

func (s *SQLiteStorage) CreateCheckpoint(taskID, description string) (*Checkpoint, error) {
	st, err := s.LoadState(taskID)
	if err != nil {
		return nil, err
	}

	var maxSeq sql.NullInt64
	err = s.db.QueryRow(`
		SELECT MAX(seq) FROM checkpoints WHERE task_id = ?
	`, taskID).Scan(&maxSeq)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to query checkpoints: %w", err)
	}

	seq := 1
	parent := ""
	if maxSeq.Valid {
		seq = int(maxSeq.Int64) + 1
		parent = checkpointID(taskID, int(maxSeq.Int64))
	}

	cp := &Checkpoint{
		ID:          checkpointID(taskID, seq),
		Timestamp:   nowUTC(),
		TaskID:      taskID,
		Description: description,
		State:       st,
		ParentID:    parent,
	}
	snapshot, err := json.Marshal(cp.State)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkpoint state: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO checkpoints (id, task_id, seq, timestamp, description, state, parent_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, cp.ID, cp.TaskID, seq, cp.Timestamp.Format(time.RFC3339Nano), cp.Description, string(snapshot), cp.ParentID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert checkpoint: %w", err)
	}
	return cp, nil
}

func (s *SQLiteStorage) RestoreCheckpoint(checkpointID string) (*state.TaskState, error) {
	var taskID, snapshot string
	err := s.db.QueryRow(`
		SELECT task_id, state FROM checkpoints WHERE id = ?
	`, checkpointID).Scan(&taskID, &snapshot)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("checkpoint %s not found", checkpointID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoint: %w", err)
	}

	var st state.TaskState
	if err := json.Unmarshal([]byte(snapshot), &st); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint state: %w", err)
	}
	if err := s.SaveState(taskID, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *SQLiteStorage) ListCheckpoints(taskID string) ([]*Checkpoint, error) {
	rows, err := s.db.Query(`
		SELECT id, timestamp, description, state, parent_id
		FROM checkpoints WHERE task_id = ?
		ORDER BY timestamp, seq
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []*Checkpoint
	for rows.Next() {
		cp := &Checkpoint{TaskID: taskID}
		var ts, snapshot string
		var parentID sql.NullString
		if err := rows.Scan(&cp.ID, &ts, &cp.Description, &snapshot, &parentID); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		if cp.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("failed to parse checkpoint timestamp: %w", err)
		}
		if parentID.Valid {
			cp.ParentID = parentID.String
		}
		var st state.TaskState
		if err := json.Unmarshal([]byte(snapshot), &st); err != nil {
			return nil, fmt.Errorf("failed to parse checkpoint state: %w", err)
		}
		cp.State = &st
		checkpoints = append(checkpoints, cp)
	}
	return checkpoints, rows.Err()
}

func (s *SQLiteStorage) SearchTaskHistory(query string, limit int) ([]SearchResult, error) {
	rows, err := s.db.Query(`
		SELECT task_id, COUNT(*) AS relevance
		FROM messages
		WHERE instr(lower(content), lower(?)) > 0
		GROUP BY task_id
	`, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.TaskID, &r.Relevance); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rankSearch(results, limit), nil
}

func (s *SQLiteStorage) GetRelatedTasks(taskID string, limit int) ([]state.RelatedTask, error) {
	current, err := s.LoadState(taskID)
	if err != nil {
		if err == ErrNoState {
			return nil, nil
		}
		return nil, err
	}

	rows, err := s.db.Query(`SELECT task_id FROM states WHERE task_id != ?`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query states: %w", err)
	}
	var otherIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		otherIDs = append(otherIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var related []state.RelatedTask
	for _, otherID := range otherIDs {
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

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
