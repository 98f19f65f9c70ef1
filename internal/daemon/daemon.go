// Package daemon runs the relay's background half as one supervised
// process: platform adapters feeding the intake loop, the outbox
// dispatcher, recovery sweeps, scheduled jobs, and the heartbeat. The
// consumer side (claiming and replying) lives in other processes and
// meets this one only through the message tree on disk.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/featherline/pigeonhole/internal/bus"
	"github.com/featherline/pigeonhole/internal/channels"
	"github.com/featherline/pigeonhole/internal/config"
	"github.com/featherline/pigeonhole/internal/cron"
	"github.com/featherline/pigeonhole/internal/heartbeat"
	"github.com/featherline/pigeonhole/internal/history"
	"github.com/featherline/pigeonhole/internal/lifecycle"
	"github.com/featherline/pigeonhole/internal/outbox"
	"github.com/featherline/pigeonhole/internal/store"
)

// After this many consecutive sweep failures the loop backs off before
// trying again.
const (
	sweepFailureLimit   = 5
	sweepFailureBackoff = time.Minute
)

type Service struct {
	cfg     *config.Config
	store   *store.Store
	queue   *lifecycle.Queue
	bus     *bus.MessageBus
	manager *channels.Manager
	outbox  *outbox.Dispatcher
	jobs    *cron.Service
	heart   *heartbeat.Service
	history *history.Manager
}

// New assembles the daemon from config. Adapters are added for every
// platform with credentials configured; none configured is fine (the tree
// still accepts records from producers running elsewhere).
func New(cfg *config.Config) (*Service, error) {
	st, err := store.New(cfg.MessagesDir())
	if err != nil {
		return nil, err
	}

	heart := heartbeat.NewService(heartbeat.Config{
		Path:     cfg.HeartbeatFile(),
		Interval: cfg.Heartbeat.Interval(),
	})

	queue, err := lifecycle.New(st, lifecycle.Options{
		MaxRetries:       cfg.Lifecycle.MaxRetries,
		CheckLimit:       cfg.Lifecycle.CheckLimit,
		LivenessInterval: cfg.Lifecycle.LivenessInterval(),
		ReplySources:     cfg.Lifecycle.ReplySources,
		Liveness: func() {
			if err := heart.Touch(); err != nil {
				slog.Warn("heartbeat touch failed", "error", err)
			}
		},
	})
	if err != nil {
		return nil, err
	}

	msgBus := bus.NewMessageBus(0)
	manager := channels.NewManager(channels.Deps{Bus: msgBus, MediaDir: cfg.MediaDir()})
	if cfg.Channels.Telegram.Token != "" {
		raw, _ := json.Marshal(cfg.Channels.Telegram)
		if err := manager.AddChannel("telegram", raw); err != nil {
			return nil, fmt.Errorf("telegram adapter: %w", err)
		}
	}
	if cfg.Channels.Slack.BotToken != "" && cfg.Channels.Slack.AppToken != "" {
		raw, _ := json.Marshal(cfg.Channels.Slack)
		if err := manager.AddChannel("slack", raw); err != nil {
			return nil, fmt.Errorf("slack adapter: %w", err)
		}
	}

	return &Service{
		cfg:     cfg,
		store:   st,
		queue:   queue,
		bus:     msgBus,
		manager: manager,
		outbox:  outbox.New(st, manager, cfg.Outbox.ScanInterval()),
		jobs:    cron.NewService(cfg.JobsFile(), msgBus),
		heart:   heart,
		history: history.NewManager(cfg.HistoryDir()),
	}, nil
}

// Queue exposes the lifecycle for callers embedding the daemon.
func (s *Service) Queue() *lifecycle.Queue { return s.queue }

// Bus exposes the intake bus, mainly for tests.
func (s *Service) Bus() *bus.MessageBus { return s.bus }

// Jobs exposes the scheduled-jobs service.
func (s *Service) Jobs() *cron.Service { return s.jobs }

// Run blocks until ctx is canceled or a component fails. Cancellation is
// a clean shutdown, not an error.
func (s *Service) Run(ctx context.Context) error {
	slog.Info("daemon starting", "base", s.cfg.DataDir)

	// Sweep once up front so work orphaned by a crash is requeued before
	// anything new arrives.
	if err := s.runSweeps(); err != nil {
		slog.Warn("startup sweep failed", "error", err)
	}

	if err := s.manager.StartAll(ctx); err != nil {
		return fmt.Errorf("start adapters: %w", err)
	}
	defer func() {
		if err := s.manager.StopAll(); err != nil {
			slog.Warn("adapter shutdown", "error", err)
		}
	}()

	if err := s.jobs.LoadFromDisk(); err != nil {
		slog.Warn("failed to restore scheduled jobs", "error", err)
	}
	s.jobs.Start()
	defer s.jobs.Stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.intakeLoop(ctx) })
	g.Go(func() error { return s.outbox.Run(ctx) })
	g.Go(func() error { return s.sweepLoop(ctx) })
	if s.cfg.Heartbeat.Enabled {
		g.Go(func() error {
			s.heart.Start(ctx)
			return nil
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		slog.Info("daemon stopped")
		return nil
	}
	return err
}

// intakeLoop turns adapter events into durable inbox records.
func (s *Service) intakeLoop(ctx context.Context) error {
	for {
		in, err := s.bus.ConsumeInbound(ctx)
		if err != nil {
			return err
		}
		s.ingest(in)
	}
}

func (s *Service) ingest(in bus.InboundMessage) {
	typ := in.Type
	if typ == "" {
		typ = "text"
	}
	extra := make(map[string]any, len(in.Extra)+1)
	for k, v := range in.Extra {
		extra[k] = v
	}
	if in.SenderID != "" {
		extra["sender_id"] = in.SenderID
	}

	id := recordID(in.PlatformID)
	raw, err := lifecycle.NewRecord(id, in.Source, in.ChatID, typ, in.Text, extra)
	if err != nil {
		slog.Error("failed to build record", "source", in.Source, "error", err)
		return
	}
	msg, err := s.queue.Enqueue(raw)
	switch {
	case errors.Is(err, lifecycle.ErrDuplicate):
		slog.Debug("duplicate message dropped", "id", id)
		return
	case err != nil:
		slog.Error("failed to enqueue message", "id", id, "error", err)
		return
	}

	if err := s.history.Record(in.Source, in.ChatID, "user", in.Text); err != nil {
		slog.Warn("failed to record history", "error", err)
	}
	slog.Info("message enqueued", "id", msg.ID, "source", msg.Source, "type", typ)
}

// recordID builds `<epoch_ms>_<suffix>`, suffix being the platform's own
// message id when it has one so a record traces back to its origin.
func recordID(platformID string) string {
	suffix := platformID
	if suffix == "" {
		suffix = uuid.NewString()[:8]
	}
	return fmt.Sprintf("%d_%s", time.Now().UnixMilli(), suffix)
}

// sweepLoop periodically requeues stale claims and due retries.
func (s *Service) sweepLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Lifecycle.SweepInterval())
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.runSweeps(); err != nil {
				failures++
				slog.Error("sweep failed", "error", err, "consecutive", failures)
				if failures >= sweepFailureLimit {
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(sweepFailureBackoff):
					}
				}
				continue
			}
			failures = 0
		}
	}
}

func (s *Service) runSweeps() error {
	stale, staleErr := s.queue.RecoverStaleProcessing(s.cfg.Lifecycle.StaleAfter())
	if len(stale) > 0 {
		slog.Info("requeued stale claims", "count", len(stale))
	}
	due, dueErr := s.queue.RecoverRetryable()
	if len(due) > 0 {
		slog.Info("requeued retryable messages", "count", len(due))
	}
	return errors.Join(staleErr, dueErr)
}
