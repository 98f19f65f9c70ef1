// Package lifecycle implements the message state machine: enqueue into
// inbox, claim into processing, commit into processed, fail into failed
// with retry metadata, plus the recovery sweeps and the blocking wait. All
// transitions are filesystem renames, so a crash mid-operation either
// completed the move or left the file where it was; there is no partial
// state to reconcile.
package lifecycle

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/featherline/pigeonhole/internal/store"
)

const (
	defaultMaxRetries       = 3
	defaultCheckLimit       = 10
	defaultLivenessInterval = 60 * time.Second

	// baseBackoff doubles per attempt: 60s, 120s, 240s, ...
	baseBackoff = 60 * time.Second
)

// defaultReplySources is the set of sources a reply may be routed to.
// sms and signal arrive from external producer processes; telegram and
// slack are the in-process adapters.
var defaultReplySources = []string{"telegram", "slack", "sms", "signal"}

// Queue exposes the lifecycle operations over a message store. Safe for
// concurrent use: every transition is arbitrated by the filesystem itself.
type Queue struct {
	store            *store.Store
	schema           *jsonschema.Schema
	maxRetries       int64
	checkLimit       int
	livenessInterval time.Duration
	liveness         func()
	replySources     map[string]bool
}

// Options tunes a Queue. The zero value gives the stock behavior: three
// retries, ten-message check pages, 60s wait liveness, the standard reply
// source whitelist.
type Options struct {
	MaxRetries       int           // failures tolerated before dead-lettering
	CheckLimit       int           // max messages returned per inbox check
	LivenessInterval time.Duration // liveness signal cadence while blocked in Wait
	Liveness         func()        // invoked on each liveness tick (e.g. heartbeat touch)
	ReplySources     []string      // sources replies may target
}

// New builds a Queue over st.
func New(st *store.Store, opts Options) (*Queue, error) {
	schema, err := compileRecordSchema()
	if err != nil {
		return nil, err
	}

	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	checkLimit := opts.CheckLimit
	if checkLimit <= 0 {
		checkLimit = defaultCheckLimit
	}
	livenessInterval := opts.LivenessInterval
	if livenessInterval <= 0 {
		livenessInterval = defaultLivenessInterval
	}
	sources := opts.ReplySources
	if len(sources) == 0 {
		sources = defaultReplySources
	}
	whitelist := make(map[string]bool, len(sources))
	for _, s := range sources {
		whitelist[s] = true
	}

	return &Queue{
		store:            st,
		schema:           schema,
		maxRetries:       int64(maxRetries),
		checkLimit:       checkLimit,
		livenessInterval: livenessInterval,
		liveness:         opts.Liveness,
		replySources:     whitelist,
	}, nil
}

// Store returns the underlying message store.
func (q *Queue) Store() *store.Store { return q.store }

// Enqueue validates a record against the producer contract and writes it
// atomically into the inbox under its id. Ids are producer-generated; a
// collision with any live record fails loudly.
func (q *Queue) Enqueue(raw []byte) (Message, error) {
	if err := q.validateRecord(raw); err != nil {
		return Message{}, err
	}
	id := gjson.GetBytes(raw, "id").String()
	if err := store.ValidateID(id); err != nil {
		return Message{}, err
	}
	for _, d := range store.Dirs {
		if q.store.Exists(d, id) {
			return Message{}, fmt.Errorf("%w: %s already in %s", ErrDuplicate, id, d)
		}
	}
	if err := q.store.Write(store.Inbox, id, raw); err != nil {
		return Message{}, err
	}
	return parseMessage(id, raw)
}

// Claim moves a message from inbox to processing and returns it. The claim
// always originates from the inbox: a message already in processing belongs
// to whoever moved it there, and an id absent from the inbox yields
// ErrNotFound (typically a racing consumer got there first). After the
// move the file's modification time is stamped as the claim lease start.
func (q *Queue) Claim(id string) (Message, error) {
	raw, err := q.store.Read(store.Inbox, id)
	if err != nil {
		return Message{}, err
	}
	msg, err := parseMessage(id, raw)
	if err != nil {
		return Message{}, err
	}
	moved, err := q.store.Move(store.Inbox, store.Processing, id)
	if err != nil {
		return Message{}, err
	}
	if !moved {
		return Message{}, ErrNotFound
	}
	// A rename keeps the old mtime; the lease clock starts now.
	if err := q.store.SetModTime(store.Processing, id, time.Now()); err != nil {
		slog.Warn("failed to stamp claim time", "id", id, "error", err)
	}
	return msg, nil
}

// Commit moves a message into processed: from processing if claimed, from
// inbox as the permitted shortcut for consumers that commit without an
// explicit claim. ErrNotFound if the id is in neither.
func (q *Queue) Commit(id string) error {
	moved, err := q.store.Move(store.Processing, store.Processed, id)
	if err != nil {
		return err
	}
	if moved {
		return nil
	}
	moved, err = q.store.Move(store.Inbox, store.Processed, id)
	if err != nil {
		return err
	}
	if !moved {
		return ErrNotFound
	}
	return nil
}

// Fail records a failure and moves the message into failed. The retry
// counter increments (absent counts as zero); once it exceeds the retry
// budget the record is frozen as permanently failed, otherwise a due time
// of now + 60·2^(n-1) seconds is stamped. The mutated bytes replace the
// file atomically in its current directory before the rename into failed,
// so exactly one complete copy of the id exists at every instant.
func (q *Queue) Fail(id, cause string) error {
	dir := store.Processing
	raw, err := q.store.Read(dir, id)
	if errors.Is(err, store.ErrNotFound) {
		dir = store.Inbox
		raw, err = q.store.Read(dir, id)
	}
	if err != nil {
		return err
	}
	if !gjson.ValidBytes(raw) {
		return fmt.Errorf("%w: %s", ErrMalformed, id)
	}

	now := time.Now()
	count := gjson.GetBytes(raw, "_retry_count").Int() + 1

	raw, err = setFields(raw, map[string]any{
		"_retry_count":    count,
		"_last_error":     cause,
		"_last_failed_at": now.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	if count > q.maxRetries {
		raw, err = sjson.SetBytes(raw, "_permanently_failed", true)
	} else {
		raw, err = sjson.SetBytes(raw, "_retry_at", now.Add(backoff(count)).Unix())
	}
	if err != nil {
		return fmt.Errorf("lifecycle: stamp retry metadata: %w", err)
	}

	if err := q.store.Write(dir, id, raw); err != nil {
		return err
	}
	moved, err := q.store.Move(dir, store.Failed, id)
	if err != nil {
		return err
	}
	if !moved {
		return ErrNotFound
	}
	return nil
}

// backoff returns the delay before retry attempt n (1-based): 60s, 120s,
// 240s, doubling without jitter so retry timing stays predictable.
func backoff(attempt int64) time.Duration {
	return baseBackoff << uint(attempt-1)
}

// CheckInbox returns up to limit pending messages, oldest id first,
// optionally filtered by source. Malformed entries are logged and skipped
// so one corrupt file never hides the rest. limit <= 0 means the queue's
// configured page size.
func (q *Queue) CheckInbox(limit int, sources ...string) ([]Message, error) {
	if limit <= 0 {
		limit = q.checkLimit
	}
	ids, err := q.store.List(store.Inbox)
	if err != nil {
		return nil, err
	}
	slices.Sort(ids)

	msgs := make([]Message, 0, min(limit, len(ids)))
	for _, id := range ids {
		if len(msgs) >= limit {
			break
		}
		raw, err := q.store.Read(store.Inbox, id)
		if errors.Is(err, store.ErrNotFound) {
			continue // raced away between list and read
		}
		if err != nil {
			return nil, err
		}
		msg, err := parseMessage(id, raw)
		if err != nil {
			slog.Warn("skipping malformed inbox record", "id", id)
			continue
		}
		if len(sources) > 0 && !slices.Contains(sources, msg.Source) {
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
