package lifecycle

import (
	"errors"
	"log/slog"
	"time"

	"github.com/tidwall/gjson"

	"github.com/featherline/pigeonhole/internal/store"
)

// RecoverStaleProcessing returns messages whose claim went stale back to
// the inbox. A file in processing older than maxAge (by modification time,
// the implicit claim lease) belongs to a consumer that died or hung after
// claiming; younger files are legitimately in flight and left alone. Run
// at consumer startup and on a periodic timer. Per-file trouble is logged
// and skipped; one bad entry never halts the sweep. Returns the ids moved.
func (q *Queue) RecoverStaleProcessing(maxAge time.Duration) ([]string, error) {
	ids, err := q.store.List(store.Processing)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var recovered []string
	for _, id := range ids {
		mt, err := q.store.ModTime(store.Processing, id)
		if errors.Is(err, store.ErrNotFound) {
			continue // committed or failed since the listing
		}
		if err != nil {
			slog.Warn("reaper: cannot stat processing record", "id", id, "error", err)
			continue
		}
		if now.Sub(mt) <= maxAge {
			continue
		}
		moved, err := q.store.Move(store.Processing, store.Inbox, id)
		if err != nil {
			slog.Warn("reaper: cannot return record to inbox", "id", id, "error", err)
			continue
		}
		if moved {
			slog.Info("recovered stale claim", "id", id, "age", now.Sub(mt).Round(time.Second))
			recovered = append(recovered, id)
		}
	}
	return recovered, nil
}

// RecoverRetryable returns failed messages whose retry due time has passed
// back to the inbox, content unchanged: the retry counter already reflects
// prior attempts and advances again only on the next failure. Permanently
// failed records are never touched: they are the dead-letter archive.
// Malformed entries are logged and skipped. Returns the ids moved.
func (q *Queue) RecoverRetryable() ([]string, error) {
	ids, err := q.store.List(store.Failed)
	if err != nil {
		return nil, err
	}

	now := float64(time.Now().Unix())
	var recovered []string
	for _, id := range ids {
		raw, err := q.store.Read(store.Failed, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			slog.Warn("retry sweep: cannot read failed record", "id", id, "error", err)
			continue
		}
		if !gjson.ValidBytes(raw) {
			slog.Warn("retry sweep: skipping malformed failed record", "id", id)
			continue
		}
		if gjson.GetBytes(raw, "_permanently_failed").Bool() {
			continue
		}
		// An absent _retry_at counts as immediately due.
		if due := gjson.GetBytes(raw, "_retry_at"); due.Exists() && now < due.Float() {
			continue
		}
		moved, err := q.store.Move(store.Failed, store.Inbox, id)
		if err != nil {
			slog.Warn("retry sweep: cannot return record to inbox", "id", id, "error", err)
			continue
		}
		if moved {
			slog.Info("requeued failed message", "id", id,
				"retry_count", gjson.GetBytes(raw, "_retry_count").Int())
			recovered = append(recovered, id)
		}
	}
	return recovered, nil
}
