package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskchat/internal/task"
)

// RegisterTaskTools registers the full task tool set on the registry.
func RegisterTaskTools(r *Registry, store *task.Store) {
	r.Register(NewAddTaskTool(store))
	r.Register(NewListTasksTool(store))
	r.Register(NewCompleteTaskTool(store))
	r.Register(NewDeleteTaskTool(store))
	r.Register(NewUpdateTaskTool(store))
	r.Register(NewAddSubtaskTool(store))
}

// resolveTask finds the single task targeted by a tool call. The model may
// pass either a numeric id or a title; titles are matched case-insensitively,
// preferring an exact match over substring candidates. Ownership is checked
// against the authenticated user, so a task belonging to someone else behaves
// the same as a missing one would for writes.
func resolveTask(ctx context.Context, store *task.Store, userID int64, taskID int64, title string, pendingOnly bool) (*task.Task, *Result) {
	if taskID == 0 && strings.TrimSpace(title) == "" {
		return nil, Errorf("Please provide either task_id or task_title")
	}

	if taskID != 0 {
		t, err := store.Get(ctx, taskID)
		if errors.Is(err, task.ErrNotFound) {
			return nil, Errorf("Task with ID %d not found", taskID)
		}
		if err != nil {
			return nil, Errorf("failed to look up task: %v", err)
		}
		if t.UserID != userID {
			return nil, Errorf("Permission denied: task %d does not belong to you", taskID)
		}
		return t, nil
	}

	matches, err := store.FindByTitle(ctx, userID, title, pendingOnly)
	if err != nil {
		return nil, Errorf("failed to look up task: %v", err)
	}
	switch len(matches) {
	case 0:
		return nil, Errorf("No task found matching '%s'", title)
	case 1:
		return &matches[0], nil
	default:
		var names []string
		for _, m := range matches {
			names = append(names, fmt.Sprintf("'%s' (ID %d)", m.Title, m.ID))
		}
		return nil, Errorf("Multiple tasks match '%s': %s. Please specify the task_id.",
			title, strings.Join(names, ", "))
	}
}

// AddTaskTool creates a new task for the authenticated user.
type AddTaskTool struct {
	store *task.Store
}

func NewAddTaskTool(store *task.Store) *AddTaskTool { return &AddTaskTool{store: store} }

func (t *AddTaskTool) Name() string { return "add_task" }
func (t *AddTaskTool) Description() string {
	return "Create a new task for the user. Requires a title; description, priority (low/medium/high), tags and due_date are optional."
}

func (t *AddTaskTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"title": {
				"type": "string",
				"description": "Short title of the task"
			},
			"description": {
				"type": "string",
				"description": "Optional longer description"
			},
			"priority": {
				"type": "string",
				"enum": ["low", "medium", "high"],
				"description": "Task priority, defaults to medium"
			},
			"tags": {
				"type": "array",
				"items": {"type": "string"},
				"description": "Optional tags for grouping"
			},
			"due_date": {
				"type": "string",
				"description": "Optional due date in YYYY-MM-DD format"
			}
		},
		"required": ["title"]
	}`)
}

func (t *AddTaskTool) Execute(ctx context.Context, userID int64, args json.RawMessage) (*Result, error) {
	var params struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Priority    string   `json:"priority"`
		Tags        []string `json:"tags"`
		DueDate     string   `json:"due_date"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return Errorf("invalid arguments: %v", err), nil
	}
	if strings.TrimSpace(params.Title) == "" {
		return Errorf("Task title cannot be empty"), nil
	}

	tk := &task.Task{
		UserID:      userID,
		Title:       strings.TrimSpace(params.Title),
		Description: params.Description,
		Tags:        params.Tags,
	}
	if params.Priority != "" {
		p := task.Priority(params.Priority)
		if !p.Valid() {
			return Errorf("Invalid priority '%s': must be low, medium or high", params.Priority), nil
		}
		tk.Priority = p
	}
	if params.DueDate != "" {
		due, err := time.Parse("2006-01-02", params.DueDate)
		if err != nil {
			return Errorf("Invalid due_date '%s': expected YYYY-MM-DD", params.DueDate), nil
		}
		tk.DueDate = &due
	}

	if err := t.store.Create(ctx, tk); err != nil {
		return Errorf("failed to create task: %v", err), nil
	}
	return Success(fmt.Sprintf("Task '%s' created successfully with ID %d", tk.Title, tk.ID), tk), nil
}

// ListTasksTool lists the authenticated user's tasks with optional filters.
type ListTasksTool struct {
	store *task.Store
}

func NewListTasksTool(store *task.Store) *ListTasksTool { return &ListTasksTool{store: store} }

func (t *ListTasksTool) Name() string { return "list_tasks" }
func (t *ListTasksTool) Description() string {
	return "List the user's tasks. Optionally filter by status (all/pending/completed), priority, or a search term matched against titles."
}

func (t *ListTasksTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"status": {
				"type": "string",
				"enum": ["all", "pending", "completed"],
				"description": "Which tasks to include, defaults to all"
			},
			"priority": {
				"type": "string",
				"enum": ["low", "medium", "high"],
				"description": "Only tasks with this priority"
			},
			"search": {
				"type": "string",
				"description": "Case-insensitive substring match on titles"
			},
			"limit": {
				"type": "integer",
				"description": "Maximum number of tasks to return"
			}
		}
	}`)
}

func (t *ListTasksTool) Execute(ctx context.Context, userID int64, args json.RawMessage) (*Result, error) {
	var params struct {
		Status   string `json:"status"`
		Priority string `json:"priority"`
		Search   string `json:"search"`
		Limit    int    `json:"limit"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return Errorf("invalid arguments: %v", err), nil
	}
	if params.Priority != "" && !task.Priority(params.Priority).Valid() {
		return Errorf("Invalid priority '%s': must be low, medium or high", params.Priority), nil
	}

	tasks, err := t.store.List(ctx, userID, task.Filter{
		Status:   params.Status,
		Priority: task.Priority(params.Priority),
		Search:   params.Search,
		Limit:    params.Limit,
	})
	if err != nil {
		return Errorf("failed to list tasks: %v", err), nil
	}
	if len(tasks) == 0 {
		return Success("No tasks found", []task.Task{}), nil
	}
	return Success(fmt.Sprintf("Found %d task(s)", len(tasks)), tasks), nil
}

// CompleteTaskTool marks a task as completed.
type CompleteTaskTool struct {
	store *task.Store
}

func NewCompleteTaskTool(store *task.Store) *CompleteTaskTool { return &CompleteTaskTool{store: store} }

func (t *CompleteTaskTool) Name() string { return "complete_task" }
func (t *CompleteTaskTool) Description() string {
	return "Mark a task as completed. Identify the task by task_id or task_title; prefer task_title when the user names the task."
}

func (t *CompleteTaskTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"task_id": {
				"type": "integer",
				"description": "Numeric id of the task"
			},
			"task_title": {
				"type": "string",
				"description": "Title of the task, matched case-insensitively"
			}
		}
	}`)
}

func (t *CompleteTaskTool) Execute(ctx context.Context, userID int64, args json.RawMessage) (*Result, error) {
	var params struct {
		TaskID    int64  `json:"task_id"`
		TaskTitle string `json:"task_title"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return Errorf("invalid arguments: %v", err), nil
	}

	tk, errRes := resolveTask(ctx, t.store, userID, params.TaskID, params.TaskTitle, true)
	if errRes != nil {
		return errRes, nil
	}
	if tk.Completed {
		return Success(fmt.Sprintf("Task '%s' is already completed", tk.Title), tk), nil
	}

	done := true
	updated, err := t.store.Patch(ctx, tk.ID, task.Patch{Completed: &done})
	if err != nil {
		return Errorf("failed to complete task: %v", err), nil
	}
	return Success(fmt.Sprintf("Task '%s' marked as completed", updated.Title), updated), nil
}

// DeleteTaskTool removes a task and its subtasks.
type DeleteTaskTool struct {
	store *task.Store
}

func NewDeleteTaskTool(store *task.Store) *DeleteTaskTool { return &DeleteTaskTool{store: store} }

func (t *DeleteTaskTool) Name() string { return "delete_task" }
func (t *DeleteTaskTool) Description() string {
	return "Delete a task permanently, including any subtasks. Identify the task by task_id or task_title."
}

func (t *DeleteTaskTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"task_id": {
				"type": "integer",
				"description": "Numeric id of the task"
			},
			"task_title": {
				"type": "string",
				"description": "Title of the task, matched case-insensitively"
			}
		}
	}`)
}

func (t *DeleteTaskTool) Execute(ctx context.Context, userID int64, args json.RawMessage) (*Result, error) {
	var params struct {
		TaskID    int64  `json:"task_id"`
		TaskTitle string `json:"task_title"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return Errorf("invalid arguments: %v", err), nil
	}

	tk, errRes := resolveTask(ctx, t.store, userID, params.TaskID, params.TaskTitle, false)
	if errRes != nil {
		return errRes, nil
	}

	if err := t.store.Delete(ctx, tk.ID); err != nil {
		return Errorf("failed to delete task: %v", err), nil
	}
	return Success(fmt.Sprintf("Task '%s' deleted", tk.Title), nil), nil
}

// UpdateTaskTool edits fields on an existing task.
type UpdateTaskTool struct {
	store *task.Store
}

func NewUpdateTaskTool(store *task.Store) *UpdateTaskTool { return &UpdateTaskTool{store: store} }

func (t *UpdateTaskTool) Name() string { return "update_task" }
func (t *UpdateTaskTool) Description() string {
	return "Update fields on an existing task. Identify the task by task_id or task_title, then pass any of new_title, description, priority, tags or due_date."
}

func (t *UpdateTaskTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"task_id": {
				"type": "integer",
				"description": "Numeric id of the task"
			},
			"task_title": {
				"type": "string",
				"description": "Title of the task, matched case-insensitively"
			},
			"new_title": {
				"type": "string",
				"description": "Replacement title"
			},
			"description": {
				"type": "string",
				"description": "Replacement description"
			},
			"priority": {
				"type": "string",
				"enum": ["low", "medium", "high"],
				"description": "Replacement priority"
			},
			"tags": {
				"type": "array",
				"items": {"type": "string"},
				"description": "Replacement tag list"
			},
			"due_date": {
				"type": "string",
				"description": "Replacement due date in YYYY-MM-DD format"
			}
		}
	}`)
}

func (t *UpdateTaskTool) Execute(ctx context.Context, userID int64, args json.RawMessage) (*Result, error) {
	var params struct {
		TaskID      int64     `json:"task_id"`
		TaskTitle   string    `json:"task_title"`
		NewTitle    *string   `json:"new_title"`
		Description *string   `json:"description"`
		Priority    *string   `json:"priority"`
		Tags        *[]string `json:"tags"`
		DueDate     *string   `json:"due_date"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return Errorf("invalid arguments: %v", err), nil
	}

	tk, errRes := resolveTask(ctx, t.store, userID, params.TaskID, params.TaskTitle, false)
	if errRes != nil {
		return errRes, nil
	}

	var p task.Patch
	changed := false
	if params.NewTitle != nil {
		title := strings.TrimSpace(*params.NewTitle)
		if title == "" {
			return Errorf("Task title cannot be empty"), nil
		}
		p.Title = &title
		changed = true
	}
	if params.Description != nil {
		p.Description = params.Description
		changed = true
	}
	if params.Priority != nil {
		pr := task.Priority(*params.Priority)
		if !pr.Valid() {
			return Errorf("Invalid priority '%s': must be low, medium or high", *params.Priority), nil
		}
		p.Priority = &pr
		changed = true
	}
	if params.Tags != nil {
		p.Tags = params.Tags
		changed = true
	}
	if params.DueDate != nil {
		due, err := time.Parse("2006-01-02", *params.DueDate)
		if err != nil {
			return Errorf("Invalid due_date '%s': expected YYYY-MM-DD", *params.DueDate), nil
		}
		p.DueDate = &due
		changed = true
	}
	if !changed {
		return Errorf("No fields to update: pass at least one of new_title, description, priority, tags or due_date"), nil
	}

	updated, err := t.store.Patch(ctx, tk.ID, p)
	if err != nil {
		return Errorf("failed to update task: %v", err), nil
	}
	return Success(fmt.Sprintf("Task '%s' updated", updated.Title), updated), nil
}

// AddSubtaskTool attaches a subtask to an existing task.
type AddSubtaskTool struct {
	store *task.Store
}

func NewAddSubtaskTool(store *task.Store) *AddSubtaskTool { return &AddSubtaskTool{store: store} }

func (t *AddSubtaskTool) Name() string { return "add_subtask" }
func (t *AddSubtaskTool) Description() string {
	return "Add a subtask to an existing task. Identify the parent by task_id or task_title and pass the subtask title."
}

func (t *AddSubtaskTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"task_id": {
				"type": "integer",
				"description": "Numeric id of the parent task"
			},
			"task_title": {
				"type": "string",
				"description": "Title of the parent task, matched case-insensitively"
			},
			"title": {
				"type": "string",
				"description": "Title of the new subtask"
			}
		},
		"required": ["title"]
	}`)
}

func (t *AddSubtaskTool) Execute(ctx context.Context, userID int64, args json.RawMessage) (*Result, error) {
	var params struct {
		TaskID    int64  `json:"task_id"`
		TaskTitle string `json:"task_title"`
		Title     string `json:"title"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return Errorf("invalid arguments: %v", err), nil
	}
	if strings.TrimSpace(params.Title) == "" {
		return Errorf("Subtask title cannot be empty"), nil
	}

	parent, errRes := resolveTask(ctx, t.store, userID, params.TaskID, params.TaskTitle, false)
	if errRes != nil {
		return errRes, nil
	}

	sub := &task.Subtask{
		TaskID: parent.ID,
		UserID: userID,
		Title:  strings.TrimSpace(params.Title),
	}
	if err := t.store.AddSubtask(ctx, sub); err != nil {
		return Errorf("failed to add subtask: %v", err), nil
	}
	return Success(fmt.Sprintf("Subtask '%s' added to task '%s'", sub.Title, parent.Title), sub), nil
}
