package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a task does not exist.
var ErrNotFound = errors.New("task not found")

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		priority TEXT NOT NULL DEFAULT 'medium',
		completed INTEGER NOT NULL DEFAULT 0,
		tags TEXT,
		due_date TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id, completed)`,
	`CREATE TABLE IF NOT EXISTS subtasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		completed INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_subtasks_task ON subtasks(task_id)`,
}

// Store persists tasks and subtasks in SQLite. Its operations are plain
// synchronous CRUD; ownership policy lives in the tool layer, except for
// queries that are scoped to a user by construction.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database at the given path.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	for _, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

// Create inserts a new task and fills in its ID and timestamps.
func (s *Store) Create(ctx context.Context, t *Task) error {
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("invalid priority %q", t.Priority)
	}

	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (user_id, title, description, priority, completed, tags, due_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.Title, t.Description, string(t.Priority), boolToInt(t.Completed),
		marshalTags(t.Tags), formatTimePtr(t.DueDate), now.Format(timeLayout), now.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	t.ID, err = res.LastInsertId()
	return err
}

// Get returns a task by id, regardless of owner.
func (s *Store) Get(ctx context.Context, id int64) (*Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, description, priority, completed, tags, due_date, created_at, updated_at
		 FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// List returns the user's tasks matching the filter, newest first.
func (s *Store) List(ctx context.Context, userID int64, f Filter) ([]Task, error) {
	query := `SELECT id, user_id, title, description, priority, completed, tags, due_date, created_at, updated_at
		FROM tasks WHERE user_id = ?`
	args := []any{userID}

	switch f.Status {
	case StatusPending:
		query += ` AND completed = 0`
	case StatusCompleted:
		query += ` AND completed = 1`
	}
	if f.Priority != "" {
		query += ` AND priority = ?`
		args = append(args, string(f.Priority))
	}
	if f.Search != "" {
		query += ` AND LOWER(title) LIKE ?`
		args = append(args, "%"+strings.ToLower(f.Search)+"%")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// FindByTitle resolves a task by name for the user: exact case-insensitive
// matches first, then substring matches. pendingOnly limits the search to
// uncompleted tasks.
func (s *Store) FindByTitle(ctx context.Context, userID int64, title string, pendingOnly bool) ([]Task, error) {
	f := Filter{Search: title, Limit: 100}
	if pendingOnly {
		f.Status = StatusPending
	}
	candidates, err := s.List(ctx, userID, f)
	if err != nil {
		return nil, err
	}

	var exact []Task
	for _, t := range candidates {
		if strings.EqualFold(t.Title, title) {
			exact = append(exact, t)
		}
	}
	if len(exact) > 0 {
		return exact, nil
	}
	return candidates, nil
}

// Patch applies the non-nil fields of p to the task.
func (s *Store) Patch(ctx context.Context, id int64, p Patch) (*Task, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		if !p.Priority.Valid() {
			return nil, fmt.Errorf("invalid priority %q", *p.Priority)
		}
		t.Priority = *p.Priority
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.Tags != nil {
		t.Tags = *p.Tags
	}
	if p.DueDate != nil {
		t.DueDate = p.DueDate
	}
	t.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`UPDATE tasks SET title = ?, description = ?, priority = ?, completed = ?, tags = ?, due_date = ?, updated_at = ?
		 WHERE id = ?`,
		t.Title, t.Description, string(t.Priority), boolToInt(t.Completed),
		marshalTags(t.Tags), formatTimePtr(t.DueDate), t.UpdatedAt.Format(timeLayout), id,
	)
	if err != nil {
		return nil, fmt.Errorf("patch task: %w", err)
	}
	return t, nil
}

// Delete removes a task and its subtasks. Returns ErrNotFound if no task
// was deleted.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM subtasks WHERE task_id = ?`, id)
	return err
}

// AddSubtask inserts a subtask and fills in its ID and timestamp.
func (s *Store) AddSubtask(ctx context.Context, sub *Subtask) error {
	now := time.Now().UTC()
	sub.CreatedAt = now
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO subtasks (task_id, user_id, title, completed, created_at) VALUES (?, ?, ?, ?, ?)`,
		sub.TaskID, sub.UserID, sub.Title, boolToInt(sub.Completed), now.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("add subtask: %w", err)
	}
	sub.ID, err = res.LastInsertId()
	return err
}

// Subtasks returns the subtasks of a task in creation order.
func (s *Store) Subtasks(ctx context.Context, taskID int64) ([]Subtask, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task_id, user_id, title, completed, created_at FROM subtasks WHERE task_id = ? ORDER BY id ASC`,
		taskID)
	if err != nil {
		return nil, fmt.Errorf("list subtasks: %w", err)
	}
	defer rows.Close()

	var subs []Subtask
	for rows.Next() {
		var sub Subtask
		var completed int
		var createdAt string
		if err := rows.Scan(&sub.ID, &sub.TaskID, &sub.UserID, &sub.Title, &completed, &createdAt); err != nil {
			return nil, err
		}
		sub.Completed = completed != 0
		sub.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	var completed int
	var tagsJSON, dueDate sql.NullString
	var createdAt, updatedAt string

	if err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Priority, &completed,
		&tagsJSON, &dueDate, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	t.Completed = completed != 0
	if tagsJSON.Valid {
		_ = json.Unmarshal([]byte(tagsJSON.String), &t.Tags)
	}
	if dueDate.Valid {
		if ts, err := time.Parse(timeLayout, dueDate.String); err == nil {
			t.DueDate = &ts
		}
	}
	t.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	t.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return &t, nil
}

func marshalTags(tags []string) *string {
	if len(tags) == 0 {
		return nil
	}
	data, _ := json.Marshal(tags)
	s := string(data)
	return &s
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(timeLayout)
	return &s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
