// Package tasks keeps a small personal task list in a single JSON file.
// Writes rewrite the whole file through a temp file and rename, so a
// crash mid-update leaves the previous version intact.
package tasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	ErrNotFound      = errors.New("task not found")
	ErrInvalidStatus = errors.New("invalid task status")
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

func (s Status) valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

type Task struct {
	ID          int    `json:"id"`
	Subject     string `json:"subject"`
	Description string `json:"description,omitempty"`
	Status      Status `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// fileData is the on-disk layout: the task list plus the next id to hand out.
type fileData struct {
	Tasks  []Task `json:"tasks"`
	NextID int    `json:"next_id"`
}

// Store reads and writes the task file. Safe for concurrent use.
type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Update names the fields to change; nil fields are left alone.
type Update struct {
	Subject     *string
	Description *string
	Status      *Status
}

// Create adds a pending task and returns it with its assigned id.
func (s *Store) Create(subject, description string) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if subject == "" {
		return Task{}, fmt.Errorf("tasks: subject is required")
	}

	data := s.load()
	now := time.Now().UTC().Format(time.RFC3339)
	task := Task{
		ID:          data.NextID,
		Subject:     subject,
		Description: description,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	data.Tasks = append(data.Tasks, task)
	data.NextID++

	if err := s.save(data); err != nil {
		return Task{}, err
	}
	return task, nil
}

// List returns tasks, optionally filtered by status. An empty status
// returns everything.
func (s *Store) List(status Status) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.load()
	if status == "" || status == "all" {
		return data.Tasks, nil
	}
	var out []Task
	for _, t := range data.Tasks {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) Get(id int) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.load()
	for _, t := range data.Tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return Task{}, ErrNotFound
}

// Apply updates the named task and returns the new version.
func (s *Store) Apply(id int, upd Update) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if upd.Status != nil && !upd.Status.valid() {
		return Task{}, fmt.Errorf("%w: %q", ErrInvalidStatus, *upd.Status)
	}

	data := s.load()
	for i := range data.Tasks {
		if data.Tasks[i].ID != id {
			continue
		}
		t := &data.Tasks[i]
		if upd.Subject != nil {
			t.Subject = *upd.Subject
		}
		if upd.Description != nil {
			t.Description = *upd.Description
		}
		if upd.Status != nil {
			t.Status = *upd.Status
		}
		t.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
		if err := s.save(data); err != nil {
			return Task{}, err
		}
		return *t, nil
	}
	return Task{}, ErrNotFound
}

func (s *Store) Delete(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.load()
	for i, t := range data.Tasks {
		if t.ID == id {
			data.Tasks = append(data.Tasks[:i], data.Tasks[i+1:]...)
			return s.save(data)
		}
	}
	return ErrNotFound
}

// load reads the task file. A missing or unreadable file yields an empty
// list with ids starting at 1.
func (s *Store) load() fileData {
	data := fileData{NextID: 1}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return data
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return fileData{NextID: 1}
	}
	if data.NextID < 1 {
		data.NextID = 1
	}
	return data
}

func (s *Store) save(data fileData) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tasks-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.path)
}
