package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

// runCLI executes one verb against a fresh root command so flag state
// never leaks between invocations. The --config path points into the temp
// base so a developer's real config never bleeds in.
func runCLI(t *testing.T, base string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	full := append([]string{"--base", base, "--config", filepath.Join(base, "absent-config.json")}, args...)
	cmd.SetArgs(full)
	err := cmd.Execute()
	return buf.String(), err
}

func mustRunCLI(t *testing.T, base string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, base, args...)
	if err != nil {
		t.Fatalf("pigeonhole %s: %v\noutput: %s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestEnqueueClaimCommitFlow(t *testing.T) {
	base := t.TempDir()

	out := mustRunCLI(t, base, "enqueue", "--chat-id", "42", "--text", "hello world")
	id := strings.TrimSpace(strings.TrimPrefix(out, "enqueued"))
	if id == "" {
		t.Fatalf("no id in enqueue output %q", out)
	}

	out = mustRunCLI(t, base, "inbox")
	if !strings.Contains(out, id) || !strings.Contains(out, "1 pending") {
		t.Errorf("inbox should list the message, got %q", out)
	}

	out = mustRunCLI(t, base, "claim", id)
	if !strings.Contains(out, `"hello world"`) {
		t.Errorf("claim should print the record, got %q", out)
	}

	mustRunCLI(t, base, "commit", id)
	archived := filepath.Join(base, "messages", "processed", id+".json")
	if _, err := os.Stat(archived); err != nil {
		t.Errorf("record should be archived at %s: %v", archived, err)
	}

	out = mustRunCLI(t, base, "stats")
	if !strings.Contains(out, "processed:  1") {
		t.Errorf("stats should count the archive, got %q", out)
	}
}

func TestFailSchedulesRetry(t *testing.T) {
	base := t.TempDir()

	out := mustRunCLI(t, base, "enqueue", "--chat-id", "7", "--text", "flaky")
	id := strings.TrimSpace(strings.TrimPrefix(out, "enqueued"))

	mustRunCLI(t, base, "claim", id)
	mustRunCLI(t, base, "fail", id, "--error", "downstream boom")

	raw, err := os.ReadFile(filepath.Join(base, "messages", "failed", id+".json"))
	if err != nil {
		t.Fatalf("failed record missing: %v", err)
	}
	if got := gjson.GetBytes(raw, "_retry_count").Int(); got != 1 {
		t.Errorf("expected retry count 1, got %d", got)
	}
	if got := gjson.GetBytes(raw, "_last_error").String(); got != "downstream boom" {
		t.Errorf("expected recorded cause, got %q", got)
	}

	// The retry is minutes away, so an immediate sweep requeues nothing.
	out = mustRunCLI(t, base, "sweep")
	if !strings.Contains(out, "requeued 0 stale, 0 retryable") {
		t.Errorf("unexpected sweep output %q", out)
	}
}

func TestSendWritesOutbox(t *testing.T) {
	base := t.TempDir()

	out := mustRunCLI(t, base, "send", "--chat-id", "99", "--text", "pong")
	if !strings.Contains(out, "queued") {
		t.Errorf("unexpected send output %q", out)
	}

	entries, err := os.ReadDir(filepath.Join(base, "messages", "outbox"))
	if err != nil {
		t.Fatalf("outbox dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 outbox entry, got %d", len(entries))
	}
	if !strings.HasSuffix(entries[0].Name(), "_telegram.json") {
		t.Errorf("outbox entry should carry the source suffix, got %s", entries[0].Name())
	}
}

func TestHistoryShowsBothDirections(t *testing.T) {
	base := t.TempDir()
	mustRunCLI(t, base, "enqueue", "--chat-id", "42", "--text", "ping from user")
	mustRunCLI(t, base, "send", "--chat-id", "42", "--text", "pong from assistant")

	out := mustRunCLI(t, base, "history", "--chat-id", "42")
	if !strings.Contains(out, "user: ping from user") {
		t.Errorf("history should include the enqueued message, got %q", out)
	}
	if !strings.Contains(out, "assistant: pong from assistant") {
		t.Errorf("history should include the reply, got %q", out)
	}

	out = mustRunCLI(t, base, "history", "--chat-id", "42", "--role", "assistant")
	if strings.Contains(out, "ping from user") {
		t.Errorf("role filter should drop user entries, got %q", out)
	}
}

func TestTasksVerbs(t *testing.T) {
	base := t.TempDir()

	out := mustRunCLI(t, base, "tasks", "add", "buy milk")
	if !strings.Contains(out, "task #1 created") {
		t.Errorf("unexpected add output %q", out)
	}

	out = mustRunCLI(t, base, "tasks", "list")
	if !strings.Contains(out, "#1 [pending] buy milk") {
		t.Errorf("unexpected list output %q", out)
	}

	mustRunCLI(t, base, "tasks", "done", "1")
	out = mustRunCLI(t, base, "tasks", "list", "--status", "completed")
	if !strings.Contains(out, "buy milk") {
		t.Errorf("completed filter should show the task, got %q", out)
	}

	mustRunCLI(t, base, "tasks", "rm", "1")
	out = mustRunCLI(t, base, "tasks", "list")
	if !strings.Contains(out, "no tasks") {
		t.Errorf("expected empty list, got %q", out)
	}
}

func TestJobsVerbs(t *testing.T) {
	base := t.TempDir()

	mustRunCLI(t, base, "jobs", "add",
		"--name", "morning", "--type", "at", "--schedule", "08:30",
		"--context", "run the standup checklist", "--chat-id", "42")

	out := mustRunCLI(t, base, "jobs", "list")
	if !strings.Contains(out, "morning") || !strings.Contains(out, "(at 08:30)") {
		t.Errorf("unexpected jobs list %q", out)
	}

	if _, err := os.Stat(filepath.Join(base, "scheduled_jobs.json")); err != nil {
		t.Errorf("job store should persist: %v", err)
	}

	mustRunCLI(t, base, "jobs", "remove", "morning")
	out = mustRunCLI(t, base, "jobs", "list")
	if !strings.Contains(out, "no scheduled jobs") {
		t.Errorf("expected empty jobs list, got %q", out)
	}
}

func TestJobsAddRejectsBadSchedule(t *testing.T) {
	base := t.TempDir()
	_, err := runCLI(t, base, "jobs", "add",
		"--name", "broken", "--type", "at", "--schedule", "not-a-time",
		"--context", "x", "--chat-id", "1")
	if err == nil {
		t.Fatal("expected schedule validation error")
	}
}

func TestToolsManifest(t *testing.T) {
	base := t.TempDir()
	out := mustRunCLI(t, base, "tools")
	for _, name := range []string{"check_inbox", "send_reply", "schedule_job", "memory_search"} {
		if !strings.Contains(out, name) {
			t.Errorf("manifest missing %s: %q", name, out)
		}
	}
}

func TestToolExecute(t *testing.T) {
	base := t.TempDir()
	out := mustRunCLI(t, base, "tool", "get_message_stats", "--params", "{}")
	if !strings.Contains(out, "Inbox: 0") {
		t.Errorf("unexpected tool output %q", out)
	}
}

func TestEnqueueRequiresChatID(t *testing.T) {
	if _, err := runCLI(t, t.TempDir(), "enqueue", "--text", "orphan"); err == nil {
		t.Fatal("expected missing flag error")
	}
}

func TestStatsJSON(t *testing.T) {
	out := mustRunCLI(t, t.TempDir(), "stats", "--json")
	if !gjson.Valid(out) {
		t.Fatalf("expected JSON stats, got %q", out)
	}
	if gjson.Get(out, "inbox").Int() != 0 {
		t.Errorf("expected empty inbox, got %s", out)
	}
}

func TestChatIDValue(t *testing.T) {
	if v := chatIDValue("123456"); v != int64(123456) {
		t.Errorf("numeric ids should stay numeric, got %T %v", v, v)
	}
	if v := chatIDValue("C0AB12CD"); v != "C0AB12CD" {
		t.Errorf("string ids should pass through, got %T %v", v, v)
	}
}
