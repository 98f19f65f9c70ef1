package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/featherline/pigeonhole/internal/cron"
)

// JobScheduler is the scheduled-jobs surface the tools need.
type JobScheduler interface {
	AddJob(name string, schedule cron.CronSchedule, context, source string, chatID any) error
	RemoveJob(name string) error
	ListJobs() []cron.CronJob
}

type ScheduleJobTool struct {
	scheduler JobScheduler
}

func NewScheduleJobTool(s JobScheduler) *ScheduleJobTool {
	return &ScheduleJobTool{scheduler: s}
}

func (t *ScheduleJobTool) Name() string { return "schedule_job" }
func (t *ScheduleJobTool) Description() string {
	return "Create a recurring job. On each fire the job's context arrives as a new inbox message addressed to the given chat, so replies route back there."
}
func (t *ScheduleJobTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"name": {"type": "string", "description": "Unique job name (e.g. morning-briefing)."},
			"schedule": {"type": "string", "description": "When to fire: a cron expression ('0 9 * * *'), an interval ('30m'), or a time of day ('14:30'), matching schedule_type."},
			"schedule_type": {"type": "string", "enum": ["cron", "every", "at"], "description": "How to read the schedule. Default cron."},
			"context": {"type": "string", "description": "Instructions delivered as the message text on each fire."},
			"source": {"type": "string", "description": "Platform of the conversation the job reports to. Default telegram."},
			"chat_id": {
				"oneOf": [{"type": "integer"}, {"type": "string"}],
				"description": "Chat the job's messages belong to."
			}
		},
		"required": ["name", "schedule", "context", "chat_id"]
	}`)
}

func (t *ScheduleJobTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	var p struct {
		Name         string `json:"name"`
		Schedule     string `json:"schedule"`
		ScheduleType string `json:"schedule_type"`
		Context      string `json:"context"`
		Source       string `json:"source"`
		ChatID       any    `json:"chat_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return "", fmt.Errorf("invalid parameters: %w", err)
	}
	if p.Name == "" || p.Schedule == "" || p.Context == "" || p.ChatID == nil {
		return "", fmt.Errorf("name, schedule, context, and chat_id are required")
	}
	if p.ScheduleType == "" {
		p.ScheduleType = "cron"
	}
	if p.Source == "" {
		p.Source = "telegram"
	}

	schedule := cron.CronSchedule{Type: cron.ScheduleType(p.ScheduleType), Expression: p.Schedule}
	if err := t.scheduler.AddJob(p.Name, schedule, p.Context, p.Source, p.ChatID); err != nil {
		return "", fmt.Errorf("failed to schedule job: %w", err)
	}
	return fmt.Sprintf("Job %q scheduled (%s %s).", p.Name, p.ScheduleType, p.Schedule), nil
}

type RemoveScheduledJobTool struct {
	scheduler JobScheduler
}

func NewRemoveScheduledJobTool(s JobScheduler) *RemoveScheduledJobTool {
	return &RemoveScheduledJobTool{scheduler: s}
}

func (t *RemoveScheduledJobTool) Name() string        { return "remove_scheduled_job" }
func (t *RemoveScheduledJobTool) Description() string { return "Delete a scheduled job by name." }
func (t *RemoveScheduledJobTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"name": {"type": "string", "description": "The job name to remove."}
		},
		"required": ["name"]
	}`)
}

func (t *RemoveScheduledJobTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	var p struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return "", fmt.Errorf("invalid parameters: %w", err)
	}
	if p.Name == "" {
		return "", fmt.Errorf("name is required")
	}

	if err := t.scheduler.RemoveJob(p.Name); err != nil {
		return "", fmt.Errorf("failed to remove job: %w", err)
	}
	return fmt.Sprintf("Job %q removed.", p.Name), nil
}

type ListScheduledJobsTool struct {
	scheduler JobScheduler
}

func NewListScheduledJobsTool(s JobScheduler) *ListScheduledJobsTool {
	return &ListScheduledJobsTool{scheduler: s}
}

func (t *ListScheduledJobsTool) Name() string        { return "list_scheduled_jobs" }
func (t *ListScheduledJobsTool) Description() string { return "List all scheduled jobs." }
func (t *ListScheduledJobsTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *ListScheduledJobsTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	jobs := t.scheduler.ListJobs()
	if len(jobs) == 0 {
		return "No scheduled jobs.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d scheduled job(s):\n", len(jobs))
	for _, j := range jobs {
		fmt.Fprintf(&b, "\n%s (%s %s) -> %s chat %v\n  %s",
			j.Name, j.Schedule.Type, j.Schedule.Expression, j.Source, j.ChatID, j.Context)
	}
	return b.String(), nil
}
