package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/featherline/pigeonhole/internal/bus"
)

// Manager owns the running adapters. Delivery is pull-based: the outbox
// dispatcher hands each reply to Deliver and keeps the file until the send
// succeeds, so there is no subscription fan-out here.
type Manager struct {
	channels []Channel
	deps     Deps
	mu       sync.Mutex
}

func NewManager(deps Deps) *Manager {
	return &Manager{deps: deps}
}

// AddChannel creates and adds a channel from config.
func (m *Manager) AddChannel(name string, cfgJSON json.RawMessage) error {
	factory, ok := GetFactory(name)
	if !ok {
		return fmt.Errorf("no factory registered for channel %q", name)
	}
	ch, err := factory(cfgJSON, m.deps)
	if err != nil {
		return fmt.Errorf("failed to create channel %q: %w", name, err)
	}
	m.mu.Lock()
	m.channels = append(m.channels, ch)
	m.mu.Unlock()
	return nil
}

// StartAll starts all registered channels.
func (m *Manager) StartAll(ctx context.Context) error {
	for _, ch := range m.snapshot() {
		if err := ch.Start(ctx); err != nil {
			return fmt.Errorf("failed to start channel %q: %w", ch.Name(), err)
		}
	}
	return nil
}

// StopAll stops all channels.
func (m *Manager) StopAll() error {
	var firstErr error
	for _, ch := range m.snapshot() {
		if err := ch.Stop(); err != nil {
			slog.Error("failed to stop channel", "channel", ch.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Deliver routes one outbound message to the adapter named by its source.
// The error comes straight from the platform send, so the caller can decide
// whether the backing outbox file may be deleted.
func (m *Manager) Deliver(msg bus.OutboundMessage) error {
	for _, ch := range m.snapshot() {
		if ch.Name() == msg.Source {
			return ch.Send(msg)
		}
	}
	return fmt.Errorf("no channel for source %q", msg.Source)
}

// Has reports whether an adapter for the named source is registered with
// this manager.
func (m *Manager) Has(source string) bool {
	for _, ch := range m.snapshot() {
		if ch.Name() == source {
			return true
		}
	}
	return false
}

func (m *Manager) snapshot() []Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	chs := make([]Channel, len(m.channels))
	copy(chs, m.channels)
	return chs
}
