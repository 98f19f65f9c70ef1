package tasks

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "tasks.json"))
}

func strPtr(s string) *string    { return &s }
func statusPtr(s Status) *Status { return &s }

func TestCreateAssignsSequentialIDs(t *testing.T) {
	s := newTestStore(t)

	first, err := s.Create("buy groceries", "milk and eggs")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := s.Create("call dentist", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if first.ID != 1 || second.ID != 2 {
		t.Errorf("ids = %d, %d, want 1, 2", first.ID, second.ID)
	}
	if first.Status != StatusPending {
		t.Errorf("new task status = %q, want pending", first.Status)
	}
	if first.Subject != "buy groceries" || first.Description != "milk and eggs" {
		t.Errorf("task fields wrong: %+v", first)
	}
	if _, err := time.Parse(time.RFC3339, first.CreatedAt); err != nil {
		t.Errorf("created_at not RFC3339: %q", first.CreatedAt)
	}
}

func TestCreateRequiresSubject(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Create("", "details"); err == nil {
		t.Error("Create accepted empty subject")
	}
}

func TestListFiltersByStatus(t *testing.T) {
	s := newTestStore(t)
	a, _ := s.Create("task a", "")
	s.Create("task b", "")
	if _, err := s.Apply(a.ID, Update{Status: statusPtr(StatusCompleted)}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	all, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("List(\"\") = %d tasks, want 2", len(all))
	}

	done, err := s.List(StatusCompleted)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(done) != 1 || done[0].ID != a.ID {
		t.Errorf("List(completed) = %+v, want just task a", done)
	}

	pending, err := s.List(StatusPending)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(pending) != 1 || pending[0].Subject != "task b" {
		t.Errorf("List(pending) = %+v, want just task b", pending)
	}
}

func TestApplyUpdatesFields(t *testing.T) {
	s := newTestStore(t)
	task, _ := s.Create("original subject", "original description")

	updated, err := s.Apply(task.ID, Update{
		Subject: strPtr("new subject"),
		Status:  statusPtr(StatusInProgress),
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if updated.Subject != "new subject" {
		t.Errorf("subject = %q, want new subject", updated.Subject)
	}
	if updated.Status != StatusInProgress {
		t.Errorf("status = %q, want in_progress", updated.Status)
	}
	if updated.Description != "original description" {
		t.Errorf("description changed unexpectedly: %q", updated.Description)
	}

	got, err := s.Get(task.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Subject != "new subject" {
		t.Errorf("update not persisted, Get returned %+v", got)
	}
}

func TestApplyRejectsInvalidStatus(t *testing.T) {
	s := newTestStore(t)
	task, _ := s.Create("a task", "")

	_, err := s.Apply(task.ID, Update{Status: statusPtr(Status("done-ish"))})
	if !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("got %v, want ErrInvalidStatus", err)
	}
}

func TestGetAndApplyNotFound(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Get(99); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(99) = %v, want ErrNotFound", err)
	}
	if _, err := s.Apply(99, Update{Subject: strPtr("x")}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Apply(99) = %v, want ErrNotFound", err)
	}
	if err := s.Delete(99); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(99) = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	task, _ := s.Create("disposable", "")
	s.Create("keeper", "")

	if err := s.Delete(task.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(task.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted task still readable: %v", err)
	}
	remaining, _ := s.List("")
	if len(remaining) != 1 || remaining[0].Subject != "keeper" {
		t.Errorf("remaining = %+v, want just keeper", remaining)
	}
}

func TestIDsNotReusedAfterDelete(t *testing.T) {
	s := newTestStore(t)
	first, _ := s.Create("one", "")
	if err := s.Delete(first.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	second, _ := s.Create("two", "")
	if second.ID != first.ID+1 {
		t.Errorf("id reused: got %d after deleting %d", second.ID, first.ID)
	}
}

func TestPersistenceAcrossStores(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	s := NewStore(path)
	created, err := s.Create("survives restart", "check me")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	reopened := NewStore(path)
	got, err := reopened.Get(created.ID)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Subject != "survives restart" || got.Status != StatusPending {
		t.Errorf("reloaded task = %+v", got)
	}
}

func TestCorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	if err := os.WriteFile(path, []byte("{{ not json"), 0o644); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}

	s := NewStore(path)
	tasks, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("corrupt file produced tasks: %+v", tasks)
	}
	created, err := s.Create("first after corruption", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID != 1 {
		t.Errorf("id after corrupt file = %d, want 1", created.ID)
	}
}
