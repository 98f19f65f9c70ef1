package cron

import "time"

// ScheduleType defines how a job is scheduled.
type ScheduleType string

const (
	ScheduleAt    ScheduleType = "at"    // specific time (e.g. "14:30")
	ScheduleEvery ScheduleType = "every" // interval (e.g. "30m", "2h")
	ScheduleCron  ScheduleType = "cron"  // cron expression (e.g. "0 */2 * * *")
)

type CronSchedule struct {
	Type       ScheduleType `json:"type"`
	Expression string       `json:"expression"` // cron expr, time, or duration
}

// CronJob fires a message record into the inbox on schedule. Source and
// ChatID address a real conversation so whatever the consumer replies
// routes back through a working adapter.
type CronJob struct {
	Name      string       `json:"name"`
	Schedule  CronSchedule `json:"schedule"`
	Context   string       `json:"context"` // text of the record enqueued on fire
	Source    string       `json:"source"`
	ChatID    any          `json:"chatId"`
	CreatedAt time.Time    `json:"createdAt"`
}

// CronStore persists jobs to a JSON file.
type CronStore struct {
	Jobs []CronJob `json:"jobs"`
}
