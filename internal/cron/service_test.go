package cron

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/featherline/pigeonhole/internal/bus"
)

func TestAddAndListJobs(t *testing.T) {
	svc := NewService(filepath.Join(t.TempDir(), "cron.json"), bus.NewMessageBus(10))

	if err := svc.AddJob("hourly-digest", CronSchedule{Type: ScheduleCron, Expression: "0 * * * *"}, "digest time", "telegram", 42); err != nil {
		t.Fatalf("AddJob 1: %v", err)
	}
	if err := svc.AddJob("standup", CronSchedule{Type: ScheduleEvery, Expression: "5m"}, "standup", "slack", "C1"); err != nil {
		t.Fatalf("AddJob 2: %v", err)
	}

	jobs := svc.ListJobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	// sorted by name
	if jobs[0].Name != "hourly-digest" || jobs[1].Name != "standup" {
		t.Errorf("unexpected order: %q, %q", jobs[0].Name, jobs[1].Name)
	}
}

func TestAddJobDuplicateName(t *testing.T) {
	svc := NewService(filepath.Join(t.TempDir(), "cron.json"), bus.NewMessageBus(10))

	if err := svc.AddJob("reminder", CronSchedule{Type: ScheduleEvery, Expression: "1h"}, "x", "telegram", 1); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if err := svc.AddJob("reminder", CronSchedule{Type: ScheduleEvery, Expression: "2h"}, "y", "telegram", 1); err == nil {
		t.Fatal("expected error on duplicate job name")
	}
}

func TestRemoveJob(t *testing.T) {
	svc := NewService(filepath.Join(t.TempDir(), "cron.json"), bus.NewMessageBus(10))

	if err := svc.AddJob("once", CronSchedule{Type: ScheduleCron, Expression: "0 * * * *"}, "msg", "telegram", 42); err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	if err := svc.RemoveJob("once"); err != nil {
		t.Fatalf("RemoveJob: %v", err)
	}

	if jobs := svc.ListJobs(); len(jobs) != 0 {
		t.Fatalf("expected 0 jobs after removal, got %d", len(jobs))
	}

	if err := svc.RemoveJob("once"); err == nil {
		t.Fatal("expected error removing non-existent job")
	}
}

func TestPersistence(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "cron.json")
	msgBus := bus.NewMessageBus(10)

	svc1 := NewService(storePath, msgBus)
	if err := svc1.AddJob("morning", CronSchedule{Type: ScheduleAt, Expression: "08:30"}, "hello", "telegram", 42); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if err := svc1.AddJob("sync", CronSchedule{Type: ScheduleEvery, Expression: "10m"}, "world", "slack", "C2"); err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	svc2 := NewService(storePath, msgBus)
	if err := svc2.LoadFromDisk(); err != nil {
		t.Fatalf("LoadFromDisk: %v", err)
	}

	jobs := svc2.ListJobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 restored jobs, got %d", len(jobs))
	}
	if jobs[0].Name != "morning" || jobs[0].Context != "hello" || jobs[0].Source != "telegram" {
		t.Errorf("restored job lost fields: %+v", jobs[0])
	}
}

func TestCronScheduleConversion(t *testing.T) {
	cases := []struct {
		schedule CronSchedule
		wantErr  bool
	}{
		{CronSchedule{Type: ScheduleCron, Expression: "0 */2 * * *"}, false},
		{CronSchedule{Type: ScheduleEvery, Expression: "30m"}, false},
		{CronSchedule{Type: ScheduleEvery, Expression: "2h"}, false},
		{CronSchedule{Type: ScheduleAt, Expression: "14:30"}, false},
		{CronSchedule{Type: ScheduleAt, Expression: "00:00"}, false},
		{CronSchedule{Type: ScheduleCron, Expression: "not a cron expr"}, true},
		{CronSchedule{Type: ScheduleCron, Expression: "99 99 * * *"}, true},
		{CronSchedule{Type: ScheduleEvery, Expression: "notaduration"}, true},
		{CronSchedule{Type: ScheduleAt, Expression: "25:00"}, true},
		{CronSchedule{Type: ScheduleAt, Expression: "badtime"}, true},
	}

	for _, tc := range cases {
		expr, err := toCronExpr(tc.schedule)
		if tc.wantErr {
			if err == nil {
				t.Errorf("schedule %+v: expected error, got expr %q", tc.schedule, expr)
			}
		} else {
			if err != nil {
				t.Errorf("schedule %+v: unexpected error: %v", tc.schedule, err)
			}
			if expr == "" {
				t.Errorf("schedule %+v: got empty expression", tc.schedule)
			}
		}
	}
}

func TestJobTrigger(t *testing.T) {
	msgBus := bus.NewMessageBus(10)
	svc := NewService(filepath.Join(t.TempDir(), "cron.json"), msgBus)
	svc.Start()
	defer svc.Stop()

	if err := svc.AddJob("ping", CronSchedule{Type: ScheduleEvery, Expression: "1s"}, "check the oven", "telegram", 42); err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	msg, err := msgBus.ConsumeInbound(ctx)
	if err != nil {
		t.Fatalf("no message received within timeout: %v", err)
	}

	if msg.Text != "check the oven" {
		t.Errorf("expected text %q, got %q", "check the oven", msg.Text)
	}
	if msg.Source != "telegram" {
		t.Errorf("expected source telegram, got %q", msg.Source)
	}
	if msg.Extra["scheduled_job"] != "ping" {
		t.Errorf("expected scheduled_job=ping, got %v", msg.Extra["scheduled_job"])
	}
}
