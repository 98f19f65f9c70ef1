// Package store persists message records as one JSON file per message under
// a set of named directories. Directory membership is the sole source of
// truth for a message's state; an atomic rename is the only synchronization
// primitive. Multiple producer processes and a consumer process may operate
// on the same tree concurrently with no further coordination.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Dir names a state directory within the message tree.
type Dir string

const (
	Inbox      Dir = "inbox"      // pending, unclaimed messages
	Processing Dir = "processing" // claimed, in-flight messages
	Failed     Dir = "failed"     // failed messages awaiting retry or dead-lettered
	Processed  Dir = "processed"  // terminal, successfully handled messages
	Outbox     Dir = "outbox"     // replies awaiting delivery by an adapter
)

// Dirs lists every state directory, lifecycle order.
var Dirs = []Dir{Inbox, Processing, Failed, Processed, Outbox}

// Store is a message tree rooted at a base directory. The zero value is not
// usable; construct with New, which creates the directory layout.
type Store struct {
	base string
}

// New creates the directory layout under base and returns a Store on it.
func New(base string) (*Store, error) {
	for _, d := range Dirs {
		if err := os.MkdirAll(filepath.Join(base, string(d)), 0o755); err != nil {
			return nil, fmt.Errorf("store: create %s: %w", d, err)
		}
	}
	return &Store{base: base}, nil
}

// Base returns the root of the message tree.
func (s *Store) Base() string { return s.base }

// DirPath returns the absolute path of a state directory.
func (s *Store) DirPath(dir Dir) string {
	return filepath.Join(s.base, string(dir))
}

// Path returns the file path a message id occupies within dir.
func (s *Store) Path(dir Dir, id string) string {
	return filepath.Join(s.base, string(dir), id+".json")
}

// ValidateID rejects empty ids and ids that could escape the message tree.
func ValidateID(id string) error {
	if id == "" {
		return ErrInvalidID
	}
	if strings.Contains(id, "..") || strings.ContainsAny(id, "/\\") {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// List returns the ids of all records currently in dir. Entries that are not
// completed record files (subdirectories, in-flight temp files) are skipped.
func (s *Store) List(dir Dir) ([]string, error) {
	entries, err := os.ReadDir(s.DirPath(dir))
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", dir, err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

// Count returns the number of records in dir.
func (s *Store) Count(dir Dir) (int, error) {
	ids, err := s.List(dir)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Read returns the raw bytes of a record, or ErrNotFound if absent.
func (s *Store) Read(dir Dir, id string) ([]byte, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(dir, id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s/%s: %w", dir, id, err)
	}
	return data, nil
}

// Write atomically replaces the record for id in dir. The data is written to
// a temp file in the same directory, synced, and renamed into place, so a
// reader never observes a partial file. On failure no temp file is left
// behind.
func (s *Store) Write(dir Dir, id string, data []byte) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	target := s.Path(dir, id)
	parent := filepath.Dir(target)

	tmp, err := os.CreateTemp(parent, "."+id+".tmp-*")
	if err != nil {
		return fmt.Errorf("store: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("store: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("store: sync temp: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("store: chmod temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		committed = true // already cleaned up
		return fmt.Errorf("store: rename temp: %w", err)
	}
	committed = true
	syncDir(parent)
	return nil
}

// Move renames a record from one state directory to another. Returns false
// with a nil error when the source is already gone: the caller lost a race,
// which is normal operation, not a fault. The rename updates the file's
// modification time on the destination only via the filesystem's own rules;
// content is never touched.
func (s *Store) Move(from, to Dir, id string) (bool, error) {
	if err := ValidateID(id); err != nil {
		return false, err
	}
	err := os.Rename(s.Path(from, id), s.Path(to, id))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: move %s/%s -> %s: %w", from, id, to, err)
	}
	return true, nil
}

// Remove deletes a record, returning ErrNotFound if it is already gone.
func (s *Store) Remove(dir Dir, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	err := os.Remove(s.Path(dir, id))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("store: remove %s/%s: %w", dir, id, err)
	}
	return nil
}

// Exists reports whether a record is currently present in dir.
func (s *Store) Exists(dir Dir, id string) bool {
	if ValidateID(id) != nil {
		return false
	}
	_, err := os.Stat(s.Path(dir, id))
	return err == nil
}

// ModTime returns the record file's modification time. For a file in
// processing this is the claim timestamp (claim stamps it explicitly, since
// a rename alone preserves mtime); the reaper treats it as the implicit
// lease start.
func (s *Store) ModTime(dir Dir, id string) (time.Time, error) {
	if err := ValidateID(id); err != nil {
		return time.Time{}, err
	}
	info, err := os.Stat(s.Path(dir, id))
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("store: stat %s/%s: %w", dir, id, err)
	}
	return info.ModTime(), nil
}

// SetModTime overrides a record file's modification time. Claim uses it to
// stamp the lease start after the move; tests use it to age files.
func (s *Store) SetModTime(dir Dir, id string, t time.Time) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	err := os.Chtimes(s.Path(dir, id), t, t)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("store: chtimes %s/%s: %w", dir, id, err)
	}
	return nil
}

// syncDir fsyncs a directory so a completed rename survives power loss.
// Best effort: some filesystems refuse directory syncs.
func syncDir(path string) {
	d, err := os.Open(path)
	if err != nil {
		return
	}
	defer d.Close()
	_ = d.Sync()
}
