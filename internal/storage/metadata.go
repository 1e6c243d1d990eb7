package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/codebuildervaibhav/transcript-summarizer/internal/types"
)

// timeLayout is fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS tasks (
	task_id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	source_path TEXT,
	options TEXT
);

CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at);

CREATE TABLE IF NOT EXISTS artifacts (
	kind TEXT NOT NULL,
	task_id TEXT NOT NULL,
	value TEXT NOT NULL,
	completed_at TEXT NOT NULL,
	PRIMARY KEY (kind, task_id),
	FOREIGN KEY (task_id) REFERENCES tasks(task_id)
);

CREATE TABLE IF NOT EXISTS summaries (
	task_id TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	summary TEXT NOT NULL,
	completed_at TEXT NOT NULL,
	PRIMARY KEY (task_id, chunk_index),
	FOREIGN KEY (task_id) REFERENCES tasks(task_id)
);
`

// SQLiteStore is the durable TaskStore backed by a single SQLite file
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (creating if needed) the database at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, storeErr("open database", err)
	}
	// one connection serializes writers; SQLite allows a single writer anyway
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, storeErr("create tables", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) SaveTask(ctx context.Context, task *types.Task) error {
	if _, err := types.ParseStatus(string(task.Status)); err != nil {
		return err
	}
	opts, err := json.Marshal(task.Options)
	if err != nil {
		return storeErr("encode options", err)
	}

	query := `
	INSERT INTO tasks (task_id, status, created_at, updated_at, source_path, options)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(task_id) DO UPDATE SET
		status = excluded.status,
		updated_at = excluded.updated_at,
		source_path = excluded.source_path,
		options = excluded.options
	`
	_, err = s.db.ExecContext(ctx, query, task.ID, string(task.Status),
		formatTime(task.CreatedAt), formatTime(task.UpdatedAt), task.SourcePath, string(opts))
	if err != nil {
		return storeErr("save task", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*types.Task, error) {
	var (
		task                types.Task
		status, created     string
		updated, sourcePath string
		opts                sql.NullString
	)
	if err := row.Scan(&task.ID, &status, &created, &updated, &sourcePath, &opts); err != nil {
		return nil, storeErr("scan task", err)
	}

	st, err := types.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", task.ID, err)
	}
	task.Status = st
	task.SourcePath = sourcePath
	if task.CreatedAt, err = parseTime(created); err != nil {
		return nil, storeErr("parse created_at", err)
	}
	if task.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, storeErr("parse updated_at", err)
	}
	if opts.Valid && opts.String != "" {
		if err := json.Unmarshal([]byte(opts.String), &task.Options); err != nil {
			return nil, storeErr("decode options", err)
		}
	}
	return &task, nil
}

const selectTask = `
SELECT task_id, status, created_at, updated_at, COALESCE(source_path, ''), options
FROM tasks`

func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*types.Task, error) {
	row := s.db.QueryRowContext(ctx, selectTask+` WHERE task_id = ?`, id)
	task, err := scanTask(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, notFound(id)
	case err != nil:
		return nil, err
	}
	return task, nil
}

func (s *SQLiteStore) ListTasks(ctx context.Context, limit int) ([]*types.Task, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, selectTask+` ORDER BY created_at DESC, task_id LIMIT ?`, limit)
	if err != nil {
		return nil, storeErr("list tasks", err)
	}
	defer rows.Close()

	var tasks []*types.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list tasks", err)
	}
	return tasks, nil
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, id string, to types.Status) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin", err)
	}
	defer tx.Rollback()

	var raw, updated string
	err = tx.QueryRowContext(ctx, `SELECT status, updated_at FROM tasks WHERE task_id = ?`, id).Scan(&raw, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(id)
	}
	if err != nil {
		return storeErr("read status", err)
	}

	from, err := types.ParseStatus(raw)
	if err != nil {
		return fmt.Errorf("task %s: %w", id, err)
	}
	if err := types.Transition(id, from, to); err != nil {
		return err
	}
	prev, err := parseTime(updated)
	if err != nil {
		return storeErr("parse updated_at", err)
	}

	now := nextTimestamp(s.now().UTC(), prev)
	if _, err := tx.ExecContext(ctx, `UPDATE tasks SET status = ?, updated_at = ? WHERE task_id = ?`,
		string(to), formatTime(now), id); err != nil {
		return storeErr("update status", err)
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit status", err)
	}
	return nil
}

// taskExists must run inside the caller's transaction: the pool holds one connection.
func taskExists(ctx context.Context, tx *sql.Tx, id string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE task_id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(id)
	}
	if err != nil {
		return storeErr("lookup task", err)
	}
	return nil
}

func (s *SQLiteStore) inTx(ctx context.Context, id string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin", err)
	}
	defer tx.Rollback()

	if err := taskExists(ctx, tx, id); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit", err)
	}
	return nil
}

func (s *SQLiteStore) SaveArtifact(ctx context.Context, kind ArtifactKind, id string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return storeErr("encode "+string(kind), err)
	}
	return s.inTx(ctx, id, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO artifacts (kind, task_id, value, completed_at)
		VALUES (?, ?, ?, ?)`, string(kind), id, string(data), formatTime(s.now().UTC()))
		if err != nil {
			return storeErr("save "+string(kind), err)
		}
		return nil
	})
}

func (s *SQLiteStore) GetArtifact(ctx context.Context, kind ArtifactKind, id string, dst any) error {
	var data string
	err := s.inTx(ctx, id, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT value FROM artifacts WHERE kind = ? AND task_id = ?`,
			string(kind), id).Scan(&data)
		if errors.Is(err, sql.ErrNoRows) {
			return missingArtifact(kind, id)
		}
		if err != nil {
			return storeErr("get "+string(kind), err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(data), dst); err != nil {
		return storeErr("decode "+string(kind), err)
	}
	return nil
}

func (s *SQLiteStore) SaveChunk(ctx context.Context, chunk types.SummaryChunk) error {
	return s.inTx(ctx, chunk.TaskID, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO summaries (task_id, chunk_index, summary, completed_at)
		VALUES (?, ?, ?, ?)`, chunk.TaskID, chunk.Index, chunk.Text, formatTime(chunk.CompletedAt))
		if err != nil {
			return storeErr("save summary chunk", err)
		}
		return nil
	})
}

func (s *SQLiteStore) ClearChunks(ctx context.Context, id string) error {
	return s.inTx(ctx, id, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM summaries WHERE task_id = ?`, id); err != nil {
			return storeErr("clear summary chunks", err)
		}
		return nil
	})
}

func (s *SQLiteStore) ListChunks(ctx context.Context, id string) ([]types.SummaryChunk, error) {
	var chunks []types.SummaryChunk
	err := s.inTx(ctx, id, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
		SELECT chunk_index, summary, completed_at
		FROM summaries WHERE task_id = ? ORDER BY chunk_index`, id)
		if err != nil {
			return storeErr("list summary chunks", err)
		}
		defer rows.Close()

		for rows.Next() {
			c := types.SummaryChunk{TaskID: id}
			var completed string
			if err := rows.Scan(&c.Index, &c.Text, &completed); err != nil {
				return storeErr("scan summary chunk", err)
			}
			if c.CompletedAt, err = parseTime(completed); err != nil {
				return storeErr("parse completed_at", err)
			}
			chunks = append(chunks, c)
		}
		if err := rows.Err(); err != nil {
			return storeErr("list summary chunks", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if chunks == nil {
		chunks = []types.SummaryChunk{}
	}
	return chunks, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
