package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/featherline/pigeonhole/internal/tasks"
)

// formatTask renders one task for the agent.
func formatTask(t tasks.Task) string {
	s := fmt.Sprintf("#%d [%s] %s", t.ID, t.Status, t.Subject)
	if t.Description != "" {
		s += "\n  " + t.Description
	}
	return s
}

type CreateTaskTool struct {
	store *tasks.Store
}

func NewCreateTaskTool(s *tasks.Store) *CreateTaskTool {
	return &CreateTaskTool{store: s}
}

func (t *CreateTaskTool) Name() string        { return "create_task" }
func (t *CreateTaskTool) Description() string { return "Create a new task on the shared task list." }
func (t *CreateTaskTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"subject": {"type": "string", "description": "Brief title for the task."},
			"description": {"type": "string", "description": "Detailed description of what needs to be done."}
		},
		"required": ["subject"]
	}`)
}

func (t *CreateTaskTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	var p struct {
		Subject     string `json:"subject"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return "", fmt.Errorf("invalid parameters: %w", err)
	}
	task, err := t.store.Create(p.Subject, p.Description)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Task #%d created: %s", task.ID, task.Subject), nil
}

type ListTasksTool struct {
	store *tasks.Store
}

func NewListTasksTool(s *tasks.Store) *ListTasksTool {
	return &ListTasksTool{store: s}
}

func (t *ListTasksTool) Name() string        { return "list_tasks" }
func (t *ListTasksTool) Description() string { return "List tasks, optionally filtered by status." }
func (t *ListTasksTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"status": {"type": "string", "description": "pending, in_progress, completed, or all (default)."}
		}
	}`)
}

func (t *ListTasksTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	var p struct {
		Status string `json:"status"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return "", fmt.Errorf("invalid parameters: %w", err)
		}
	}

	list, err := t.store.List(tasks.Status(p.Status))
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return "No tasks found.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d task(s):\n", len(list))
	for _, task := range list {
		b.WriteString("\n" + formatTask(task))
	}
	return b.String(), nil
}

type UpdateTaskTool struct {
	store *tasks.Store
}

func NewUpdateTaskTool(s *tasks.Store) *UpdateTaskTool {
	return &UpdateTaskTool{store: s}
}

func (t *UpdateTaskTool) Name() string        { return "update_task" }
func (t *UpdateTaskTool) Description() string { return "Update a task's status or details." }
func (t *UpdateTaskTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"task_id": {"type": "integer", "description": "The task ID to update."},
			"status": {"type": "string", "description": "New status: pending, in_progress, or completed."},
			"subject": {"type": "string", "description": "New subject (optional)."},
			"description": {"type": "string", "description": "New description (optional)."}
		},
		"required": ["task_id"]
	}`)
}

func (t *UpdateTaskTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	var p struct {
		TaskID      *int    `json:"task_id"`
		Status      *string `json:"status"`
		Subject     *string `json:"subject"`
		Description *string `json:"description"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return "", fmt.Errorf("invalid parameters: %w", err)
	}
	if p.TaskID == nil {
		return "", fmt.Errorf("task_id is required")
	}

	upd := tasks.Update{Subject: p.Subject, Description: p.Description}
	if p.Status != nil {
		status := tasks.Status(*p.Status)
		upd.Status = &status
	}
	task, err := t.store.Apply(*p.TaskID, upd)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Task #%d updated: %s [%s]", task.ID, task.Subject, task.Status), nil
}

type GetTaskTool struct {
	store *tasks.Store
}

func NewGetTaskTool(s *tasks.Store) *GetTaskTool {
	return &GetTaskTool{store: s}
}

func (t *GetTaskTool) Name() string        { return "get_task" }
func (t *GetTaskTool) Description() string { return "Get details of a specific task." }
func (t *GetTaskTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"task_id": {"type": "integer", "description": "The task ID to retrieve."}
		},
		"required": ["task_id"]
	}`)
}

func (t *GetTaskTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	var p struct {
		TaskID *int `json:"task_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return "", fmt.Errorf("invalid parameters: %w", err)
	}
	if p.TaskID == nil {
		return "", fmt.Errorf("task_id is required")
	}

	task, err := t.store.Get(*p.TaskID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s\n  created: %s\n  updated: %s", formatTask(task), task.CreatedAt, task.UpdatedAt), nil
}

type DeleteTaskTool struct {
	store *tasks.Store
}

func NewDeleteTaskTool(s *tasks.Store) *DeleteTaskTool {
	return &DeleteTaskTool{store: s}
}

func (t *DeleteTaskTool) Name() string        { return "delete_task" }
func (t *DeleteTaskTool) Description() string { return "Delete a task." }
func (t *DeleteTaskTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"task_id": {"type": "integer", "description": "The task ID to delete."}
		},
		"required": ["task_id"]
	}`)
}

func (t *DeleteTaskTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	var p struct {
		TaskID *int `json:"task_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return "", fmt.Errorf("invalid parameters: %w", err)
	}
	if p.TaskID == nil {
		return "", fmt.Errorf("task_id is required")
	}

	if err := t.store.Delete(*p.TaskID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Task #%d deleted.", *p.TaskID), nil
}
