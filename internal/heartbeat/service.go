// Package heartbeat maintains a liveness marker file. An external watchdog
// (or a curious operator) checks its mtime to see the daemon is alive, even
// while the consumer is parked in a long blocking wait.
package heartbeat

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type Service struct {
	path     string
	interval time.Duration
	mu       sync.Mutex
	stopCh   chan struct{}
	running  bool
}

type Config struct {
	Path     string
	Interval time.Duration
}

func NewService(cfg Config) *Service {
	interval := cfg.Interval
	if interval == 0 {
		interval = time.Minute
	}
	return &Service{
		path:     cfg.Path,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.tick()
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.tick()
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
}

func (s *Service) tick() {
	if err := s.Touch(); err != nil {
		slog.Error("heartbeat: failed to touch marker", "path", s.path, "error", err)
	}
}

// Touch rewrites the marker with the current time and pid. Also handed to
// the wait loop as its liveness callback, so the marker stays fresh while
// the consumer blocks on an empty inbox.
func (s *Service) Touch() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	payload, err := json.Marshal(map[string]any{
		"pid":        os.Getpid(),
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, payload, 0o644)
}

// LastBeat reads the marker's timestamp. A missing marker returns the zero
// time and no error.
func LastBeat(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}
