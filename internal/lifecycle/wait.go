package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/featherline/pigeonhole/internal/store"
)

// settleDelay lets a writer finish a multi-step write (download + enqueue)
// between the create event and our re-read.
const settleDelay = 100 * time.Millisecond

// WaitResult is what a blocking wait resolved to. TimedOut distinguishes
// "nothing arrived" from an empty-but-successful event check; the waiter is
// restartable, so a timed-out caller simply calls Wait again.
type WaitResult struct {
	Messages []Message
	TimedOut bool
}

// Wait blocks until the inbox holds at least one message matching sources
// (all sources when none given), the timeout elapses, or ctx is cancelled.
// A non-empty inbox returns immediately. Otherwise an inotify watch on the
// inbox picks up new files, with a short settle delay before re-checking.
// While blocked, the configured liveness callback fires on a fixed
// sub-interval so a supervisor can tell an idle waiter from a hung one.
//
// The inbox check precedes the watch registration. A file arriving inside
// that window is picked up on the next Wait call after the timeout; the
// restartable-waiter contract already forces callers to loop.
func (q *Queue) Wait(ctx context.Context, timeout time.Duration, sources ...string) (WaitResult, error) {
	msgs, err := q.CheckInbox(0, sources...)
	if err != nil {
		return WaitResult{}, err
	}
	if len(msgs) > 0 {
		return WaitResult{Messages: msgs}, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return WaitResult{}, fmt.Errorf("lifecycle: create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(q.store.DirPath(store.Inbox)); err != nil {
		return WaitResult{}, fmt.Errorf("lifecycle: watch inbox: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	live := time.NewTicker(q.livenessInterval)
	defer live.Stop()

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return WaitResult{TimedOut: true}, nil
			}
			if !isRecordArrival(ev) {
				continue
			}
			time.Sleep(settleDelay)
			msgs, err := q.CheckInbox(0, sources...)
			if err != nil {
				return WaitResult{}, err
			}
			if len(msgs) > 0 {
				return WaitResult{Messages: msgs}, nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return WaitResult{TimedOut: true}, nil
			}
			slog.Warn("inbox watcher error", "error", err)
		case <-live.C:
			if q.liveness != nil {
				q.liveness()
			}
			slog.Debug("still waiting for messages")
		case <-timer.C:
			return WaitResult{TimedOut: true}, nil
		case <-ctx.Done():
			return WaitResult{}, ctx.Err()
		}
	}
}

// isRecordArrival reports whether ev announces a completed record file.
// Producers land records via rename, so Create and Rename both count;
// in-flight temp files (dot-prefixed, non-.json) do not.
func isRecordArrival(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Base(ev.Name)
	return strings.HasSuffix(name, ".json") && !strings.HasPrefix(name, ".")
}
