package cron

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	robfigcron "github.com/robfig/cron/v3"

	"github.com/featherline/pigeonhole/internal/bus"
)

// Service schedules named jobs that enqueue message records when they
// fire. Jobs persist across restarts via a JSON file.
type Service struct {
	scheduler *robfigcron.Cron
	bus       *bus.MessageBus
	storePath string
	entries   map[string]robfigcron.EntryID
	jobDefs   map[string]CronJob
	mu        sync.Mutex
}

func NewService(storePath string, msgBus *bus.MessageBus) *Service {
	return &Service{
		scheduler: robfigcron.New(),
		bus:       msgBus,
		storePath: storePath,
		entries:   make(map[string]robfigcron.EntryID),
		jobDefs:   make(map[string]CronJob),
	}
}

// Start begins the scheduler.
func (s *Service) Start() {
	s.scheduler.Start()
}

// Stop stops the scheduler.
func (s *Service) Stop() {
	s.scheduler.Stop()
}

// AddJob registers a named job. The name is the handle for removal, so a
// second job under the same name is refused.
func (s *Service) AddJob(name string, schedule CronSchedule, context, source string, chatID any) error {
	cronExpr, err := toCronExpr(schedule)
	if err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobDefs[name]; exists {
		return fmt.Errorf("job %q already exists", name)
	}

	job := CronJob{
		Name:      name,
		Schedule:  schedule,
		Context:   context,
		Source:    source,
		ChatID:    chatID,
		CreatedAt: time.Now(),
	}

	entryID, err := s.scheduler.AddFunc(cronExpr, func() {
		slog.Info("scheduled job fired", "job", name)
		s.bus.PublishInbound(bus.InboundMessage{
			Source: source,
			ChatID: chatID,
			Type:   "text",
			Text:   context,
			Extra:  map[string]any{"scheduled_job": name},
		})
	})
	if err != nil {
		return fmt.Errorf("failed to register cron job: %w", err)
	}

	s.entries[name] = entryID
	s.jobDefs[name] = job

	if err := s.saveToDisk(); err != nil {
		slog.Warn("failed to persist cron jobs", "error", err)
	}

	return nil
}

// RemoveJob removes a job by name.
func (s *Service) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("job %q not found", name)
	}

	s.scheduler.Remove(entryID)
	delete(s.entries, name)
	delete(s.jobDefs, name)

	if err := s.saveToDisk(); err != nil {
		slog.Warn("failed to persist cron jobs after removal", "error", err)
	}

	return nil
}

// ListJobs returns all registered jobs, sorted by name.
func (s *Service) ListJobs() []CronJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]CronJob, 0, len(s.jobDefs))
	for _, job := range s.jobDefs {
		result = append(result, job)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// LoadFromDisk loads persisted jobs and re-registers them.
func (s *Service) LoadFromDisk() error {
	data, err := os.ReadFile(s.storePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cron store: %w", err)
	}

	var store CronStore
	if err := json.Unmarshal(data, &store); err != nil {
		return fmt.Errorf("failed to parse cron store: %w", err)
	}

	for _, job := range store.Jobs {
		if err := s.AddJob(job.Name, job.Schedule, job.Context, job.Source, job.ChatID); err != nil {
			slog.Warn("failed to restore cron job", "job", job.Name, "error", err)
		}
	}
	return nil
}

// saveToDisk persists current jobs to JSON file. Caller must hold s.mu.
func (s *Service) saveToDisk() error {
	jobs := make([]CronJob, 0, len(s.jobDefs))
	for _, job := range s.jobDefs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })

	store := CronStore{Jobs: jobs}
	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cron store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.storePath), 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	return os.WriteFile(s.storePath, data, 0o644)
}

// toCronExpr converts a CronSchedule to a robfig/cron expression string.
func toCronExpr(schedule CronSchedule) (string, error) {
	switch schedule.Type {
	case ScheduleCron:
		if _, err := robfigcron.ParseStandard(schedule.Expression); err != nil {
			return "", fmt.Errorf("invalid cron expression %q: %w", schedule.Expression, err)
		}
		return schedule.Expression, nil
	case ScheduleEvery:
		d, err := time.ParseDuration(schedule.Expression)
		if err != nil {
			return "", fmt.Errorf("invalid duration %q: %w", schedule.Expression, err)
		}
		return fmt.Sprintf("@every %s", d), nil
	case ScheduleAt:
		var h, m int
		if _, err := fmt.Sscanf(schedule.Expression, "%d:%d", &h, &m); err != nil {
			return "", fmt.Errorf("invalid time %q, expected HH:MM: %w", schedule.Expression, err)
		}
		if h < 0 || h > 23 || m < 0 || m > 59 {
			return "", fmt.Errorf("time %q out of range", schedule.Expression)
		}
		return fmt.Sprintf("%d %d * * *", m, h), nil
	default:
		return "", fmt.Errorf("unknown schedule type %q", schedule.Type)
	}
}
