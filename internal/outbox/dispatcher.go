// Package outbox delivers replies to their adapters. The outbox directory
// is the durable half of the reply path: a file sits there until its send
// succeeds, and deleting it is the only acknowledgment, so a crash between
// write and delivery costs at most a duplicate send, never a lost reply.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/tidwall/gjson"

	"github.com/featherline/pigeonhole/internal/bus"
	"github.com/featherline/pigeonhole/internal/store"
)

const (
	defaultScanInterval = 30 * time.Second

	// settleDelay lets the atomic write finish before the read. Writes are
	// temp+rename so a visible file is complete, but the event can arrive
	// between the two steps of a non-atomic producer.
	settleDelay = 50 * time.Millisecond
)

// Deliverer hands one outbound message to a platform adapter.
type Deliverer interface {
	Deliver(msg bus.OutboundMessage) error
}

// Dispatcher watches the outbox and pushes each reply through the
// Deliverer, removing files whose send succeeded.
type Dispatcher struct {
	store        *store.Store
	deliverer    Deliverer
	scanInterval time.Duration
}

// New builds a Dispatcher. scanInterval <= 0 selects the default; the scan
// is the catch-up path for files whose filesystem event was missed (or that
// predate this process).
func New(st *store.Store, d Deliverer, scanInterval time.Duration) *Dispatcher {
	if scanInterval <= 0 {
		scanInterval = defaultScanInterval
	}
	return &Dispatcher{store: st, deliverer: d, scanInterval: scanInterval}
}

// Run blocks, dispatching until ctx is cancelled. Events and scans are
// handled on this one goroutine so a file is never delivered twice
// concurrently.
func (d *Dispatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(d.store.DirPath(store.Outbox)); err != nil {
		return err
	}

	// Anything already waiting predates the watcher.
	d.scan()

	ticker := time.NewTicker(d.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isReplyArrival(event) {
				continue
			}
			time.Sleep(settleDelay)
			id := strings.TrimSuffix(filepath.Base(event.Name), ".json")
			d.dispatch(id)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("outbox watcher error", "error", err)
		case <-ticker.C:
			d.scan()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func isReplyArrival(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Base(event.Name)
	return strings.HasSuffix(name, ".json") && !strings.HasPrefix(name, ".")
}

// scan walks the whole outbox once.
func (d *Dispatcher) scan() {
	ids, err := d.store.List(store.Outbox)
	if err != nil {
		slog.Error("outbox scan failed", "error", err)
		return
	}
	for _, id := range ids {
		d.dispatch(id)
	}
}

// dispatch reads one outbox file, routes it by source, and removes it on a
// successful send. Failures leave the file for the next scan.
func (d *Dispatcher) dispatch(id string) {
	raw, err := d.store.Read(store.Outbox, id)
	if errors.Is(err, store.ErrNotFound) {
		return // already delivered via the other path
	}
	if err != nil {
		slog.Error("outbox read failed", "id", id, "error", err)
		return
	}

	msg, err := parseReply(id, raw)
	if err != nil {
		slog.Warn("skipping malformed outbox file", "id", id, "error", err)
		return
	}

	if err := d.deliverer.Deliver(msg); err != nil {
		slog.Error("reply delivery failed, keeping outbox file", "id", id, "source", msg.Source, "error", err)
		return
	}
	if err := d.store.Remove(store.Outbox, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.Error("failed to remove delivered reply", "id", id, "error", err)
	}
}

func parseReply(id string, raw []byte) (bus.OutboundMessage, error) {
	if !gjson.ValidBytes(raw) {
		return bus.OutboundMessage{}, errors.New("invalid JSON")
	}
	source := gjson.GetBytes(raw, "source").String()
	if source == "" {
		return bus.OutboundMessage{}, errors.New("missing source")
	}
	msg := bus.OutboundMessage{
		RecordID: id,
		Source:   source,
		ChatID:   gjson.GetBytes(raw, "chat_id").Value(),
		Text:     gjson.GetBytes(raw, "text").String(),
		ThreadTS: gjson.GetBytes(raw, "thread_ts").String(),
	}
	if buttons := gjson.GetBytes(raw, "buttons"); buttons.Exists() {
		msg.Buttons = json.RawMessage(buttons.Raw)
	}
	return msg, nil
}
