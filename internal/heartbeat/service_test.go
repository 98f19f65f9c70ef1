package heartbeat

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTouchWritesMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "heartbeat")
	svc := NewService(Config{Path: path, Interval: time.Hour})

	if err := svc.Touch(); err != nil {
		t.Fatalf("Touch: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("marker not written: %v", err)
	}
	var marker struct {
		PID       int    `json:"pid"`
		UpdatedAt string `json:"updated_at"`
	}
	if err := json.Unmarshal(data, &marker); err != nil {
		t.Fatalf("marker not JSON: %v", err)
	}
	if marker.PID != os.Getpid() {
		t.Errorf("pid = %d, want %d", marker.PID, os.Getpid())
	}
	if _, err := time.Parse(time.RFC3339, marker.UpdatedAt); err != nil {
		t.Errorf("updated_at %q does not parse: %v", marker.UpdatedAt, err)
	}
}

func TestTouchRefreshesModTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heartbeat")
	svc := NewService(Config{Path: path, Interval: time.Hour})

	if err := svc.Touch(); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, past, past); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	if err := svc.Touch(); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	beat, err := LastBeat(path)
	if err != nil {
		t.Fatalf("LastBeat: %v", err)
	}
	if time.Since(beat) > time.Minute {
		t.Errorf("marker not refreshed: %v", beat)
	}
}

func TestStartTicksImmediately(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heartbeat")
	svc := NewService(Config{Path: path, Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("marker missing right after start: %v", err)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heartbeat")
	svc := NewService(Config{Path: path, Interval: 10 * time.Millisecond})

	ctx := context.Background()
	svc.Start(ctx)
	svc.Start(ctx) // second start is a no-op
	svc.Stop()
	svc.Stop() // second stop must not panic
}

func TestLastBeatMissingMarker(t *testing.T) {
	beat, err := LastBeat(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("LastBeat: %v", err)
	}
	if !beat.IsZero() {
		t.Errorf("expected zero time for missing marker, got %v", beat)
	}
}
