package task

import "time"

// Priority levels for tasks.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priority levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task is a single todo item.
type Task struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    Priority   `json:"priority"`
	Completed   bool       `json:"completed"`
	Tags        []string   `json:"tags,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Subtask is a child item of a task.
type Subtask struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
}

// Status filter values for List.
const (
	StatusAll       = "all"
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Filter narrows a List query.
type Filter struct {
	Status   string   // all | pending | completed; empty means all
	Priority Priority // empty means any
	Search   string   // substring match on title, case-insensitive
	Limit    int      // 0 means default (50)
}

// Patch holds optional field updates; nil fields are left unchanged.
type Patch struct {
	Title       *string
	Description *string
	Priority    *Priority
	Completed   *bool
	Tags        *[]string
	DueDate     *time.Time
}
