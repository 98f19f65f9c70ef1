package lifecycle

import (
	"errors"

	"github.com/tidwall/gjson"

	"github.com/featherline/pigeonhole/internal/store"
)

// Stats is a point-in-time census of the message tree. Retryable and
// DeadLettered break Failed down; malformed failed records count toward
// neither bucket.
type Stats struct {
	Inbox        int `json:"inbox"`
	Processing   int `json:"processing"`
	Failed       int `json:"failed"`
	Processed    int `json:"processed"`
	Outbox       int `json:"outbox"`
	Retryable    int `json:"retryable"`
	DeadLettered int `json:"dead_lettered"`
}

// Stats counts records per directory.
func (q *Queue) Stats() (Stats, error) {
	var st Stats
	counts := []struct {
		dir  store.Dir
		into *int
	}{
		{store.Inbox, &st.Inbox},
		{store.Processing, &st.Processing},
		{store.Failed, &st.Failed},
		{store.Processed, &st.Processed},
		{store.Outbox, &st.Outbox},
	}
	for _, c := range counts {
		n, err := q.store.Count(c.dir)
		if err != nil {
			return Stats{}, err
		}
		*c.into = n
	}

	ids, err := q.store.List(store.Failed)
	if err != nil {
		return Stats{}, err
	}
	for _, id := range ids {
		raw, err := q.store.Read(store.Failed, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return Stats{}, err
		}
		if !gjson.ValidBytes(raw) {
			continue
		}
		if gjson.GetBytes(raw, "_permanently_failed").Bool() {
			st.DeadLettered++
		} else {
			st.Retryable++
		}
	}
	return st, nil
}
