package tools

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/featherline/pigeonhole/internal/tasks"
)

func newTaskStore(t *testing.T) *tasks.Store {
	t.Helper()
	return tasks.NewStore(filepath.Join(t.TempDir(), "tasks.json"))
}

func TestTaskToolsRoundTrip(t *testing.T) {
	st := newTaskStore(t)
	ctx := context.Background()

	params, _ := json.Marshal(map[string]any{"subject": "buy groceries", "description": "milk, eggs"})
	result, err := NewCreateTaskTool(st).Execute(ctx, params)
	if err != nil {
		t.Fatalf("create_task: %v", err)
	}
	if !strings.Contains(result, "Task #1 created") {
		t.Errorf("unexpected create result: %s", result)
	}

	result, err = NewListTasksTool(st).Execute(ctx, nil)
	if err != nil {
		t.Fatalf("list_tasks: %v", err)
	}
	if !strings.Contains(result, "buy groceries") || !strings.Contains(result, "[pending]") {
		t.Errorf("unexpected list result: %s", result)
	}

	params, _ = json.Marshal(map[string]any{"task_id": 1, "status": "completed"})
	result, err = NewUpdateTaskTool(st).Execute(ctx, params)
	if err != nil {
		t.Fatalf("update_task: %v", err)
	}
	if !strings.Contains(result, "[completed]") {
		t.Errorf("unexpected update result: %s", result)
	}

	params, _ = json.Marshal(map[string]any{"task_id": 1})
	result, err = NewGetTaskTool(st).Execute(ctx, params)
	if err != nil {
		t.Fatalf("get_task: %v", err)
	}
	if !strings.Contains(result, "milk, eggs") || !strings.Contains(result, "created:") {
		t.Errorf("unexpected get result: %s", result)
	}

	result, err = NewDeleteTaskTool(st).Execute(ctx, params)
	if err != nil {
		t.Fatalf("delete_task: %v", err)
	}
	if !strings.Contains(result, "deleted") {
		t.Errorf("unexpected delete result: %s", result)
	}

	result, _ = NewListTasksTool(st).Execute(ctx, nil)
	if result != "No tasks found." {
		t.Errorf("task not deleted: %s", result)
	}
}

func TestListTasksToolStatusFilter(t *testing.T) {
	st := newTaskStore(t)
	ctx := context.Background()
	st.Create("open item", "")
	done, _ := st.Create("finished item", "")
	status := tasks.StatusCompleted
	st.Apply(done.ID, tasks.Update{Status: &status})

	params, _ := json.Marshal(map[string]any{"status": "completed"})
	result, err := NewListTasksTool(st).Execute(ctx, params)
	if err != nil {
		t.Fatalf("list_tasks: %v", err)
	}
	if !strings.Contains(result, "finished item") || strings.Contains(result, "open item") {
		t.Errorf("filter not applied: %s", result)
	}
}

func TestTaskToolsValidation(t *testing.T) {
	st := newTaskStore(t)
	ctx := context.Background()

	if _, err := NewCreateTaskTool(st).Execute(ctx, json.RawMessage(`{}`)); err == nil {
		t.Error("create_task accepted missing subject")
	}
	if _, err := NewUpdateTaskTool(st).Execute(ctx, json.RawMessage(`{}`)); err == nil {
		t.Error("update_task accepted missing task_id")
	}
	if _, err := NewGetTaskTool(st).Execute(ctx, json.RawMessage(`{"task_id": 404}`)); err == nil {
		t.Error("get_task found a missing task")
	}
	params, _ := json.Marshal(map[string]any{"task_id": 1, "status": "done-ish"})
	st.Create("a task", "")
	if _, err := NewUpdateTaskTool(st).Execute(ctx, params); err == nil {
		t.Error("update_task accepted an invalid status")
	}
}
