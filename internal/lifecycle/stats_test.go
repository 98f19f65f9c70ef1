package lifecycle

import (
	"testing"
	"time"

	"github.com/featherline/pigeonhole/internal/store"
)

func TestStats(t *testing.T) {
	q, st := newTestQueue(t)

	mustEnqueue(t, q, "a", nil)
	mustEnqueue(t, q, "b", nil)
	mustEnqueue(t, q, "c", nil)
	mustEnqueue(t, q, "d", nil)

	if _, err := q.Claim("b"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := q.Commit("c"); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	failWithRetryAt(t, q, st, "d", time.Now().Add(time.Hour).Unix())
	if _, err := q.SendReply(Reply{Source: "telegram", ChatID: 42, Text: "ack"}); err != nil {
		t.Fatalf("SendReply: %v", err)
	}

	got, err := q.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := Stats{Inbox: 1, Processing: 1, Failed: 1, Processed: 1, Outbox: 1, Retryable: 1}
	if got != want {
		t.Errorf("Stats = %+v, want %+v", got, want)
	}
}

func TestStatsDeadLetterBreakdown(t *testing.T) {
	q, st := newTestQueue(t)
	mustEnqueue(t, q, "dead", nil)

	for attempt := 1; attempt <= 4; attempt++ {
		if attempt > 1 {
			if _, err := st.Move(store.Failed, store.Inbox, "dead"); err != nil {
				t.Fatalf("requeue: %v", err)
			}
		}
		if _, err := q.Claim("dead"); err != nil {
			t.Fatalf("Claim: %v", err)
		}
		if err := q.Fail("dead", "boom"); err != nil {
			t.Fatalf("Fail: %v", err)
		}
	}

	got, err := q.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if got.Failed != 1 || got.DeadLettered != 1 || got.Retryable != 0 {
		t.Errorf("Stats = %+v, want one dead-lettered failure", got)
	}
}

func TestStatsEmpty(t *testing.T) {
	q, _ := newTestQueue(t)
	got, err := q.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if got != (Stats{}) {
		t.Errorf("Stats on empty tree = %+v, want zeros", got)
	}
}
