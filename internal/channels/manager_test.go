package channels

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/featherline/pigeonhole/internal/bus"
)

// mockChannel is a test double for Channel.
type mockChannel struct {
	name    string
	sent    []bus.OutboundMessage
	sendErr error
	started bool
	stopped bool
}

func (m *mockChannel) Name() string { return m.name }
func (m *mockChannel) Start(_ context.Context) error {
	m.started = true
	return nil
}
func (m *mockChannel) Stop() error {
	m.stopped = true
	return nil
}
func (m *mockChannel) Send(msg bus.OutboundMessage) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, msg)
	return nil
}
func (m *mockChannel) IsAllowed(_ string) bool { return true }

func TestRegisterAndGetFactory(t *testing.T) {
	const name = "test-channel-reg"
	Register(name, func(cfg json.RawMessage, deps Deps) (Channel, error) {
		return &mockChannel{name: name}, nil
	})

	factory, ok := GetFactory(name)
	if !ok {
		t.Fatalf("expected factory for %q to be registered", name)
	}
	if factory == nil {
		t.Fatal("expected non-nil factory")
	}
}

func TestManagerAddChannel(t *testing.T) {
	const name = "test-channel-add"
	Register(name, func(cfg json.RawMessage, deps Deps) (Channel, error) {
		return &mockChannel{name: name}, nil
	})

	mgr := NewManager(Deps{Bus: bus.NewMessageBus(16)})

	if err := mgr.AddChannel(name, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("AddChannel failed: %v", err)
	}
	if !mgr.Has(name) {
		t.Fatalf("expected manager to have channel %q", name)
	}
	if err := mgr.AddChannel("never-registered", json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected error for unregistered channel")
	}
}

func TestManagerStartStopAll(t *testing.T) {
	a := &mockChannel{name: "deliver-a"}
	b := &mockChannel{name: "deliver-b"}
	mgr := NewManager(Deps{})
	mgr.channels = []Channel{a, b}

	if err := mgr.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll failed: %v", err)
	}
	if !a.started || !b.started {
		t.Error("not every channel was started")
	}

	if err := mgr.StopAll(); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}
	if !a.stopped || !b.stopped {
		t.Error("not every channel was stopped")
	}
}

func TestManagerDeliver(t *testing.T) {
	a := &mockChannel{name: "deliver-a"}
	b := &mockChannel{name: "deliver-b"}
	mgr := NewManager(Deps{})
	mgr.channels = []Channel{a, b}

	msg := bus.OutboundMessage{Source: "deliver-b", ChatID: "c1", Text: "hello"}
	if err := mgr.Deliver(msg); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if len(a.sent) != 0 {
		t.Errorf("message delivered to wrong channel: %v", a.sent)
	}
	if len(b.sent) != 1 || b.sent[0].Text != "hello" {
		t.Errorf("expected one delivery to deliver-b, got %v", b.sent)
	}

	if err := mgr.Deliver(bus.OutboundMessage{Source: "nowhere", Text: "x"}); err == nil {
		t.Error("expected error for unroutable source")
	}
}

func TestManagerDeliverPropagatesSendError(t *testing.T) {
	sendErr := errors.New("net down")
	ch := &mockChannel{name: "flaky", sendErr: sendErr}
	mgr := NewManager(Deps{})
	mgr.channels = []Channel{ch}

	err := mgr.Deliver(bus.OutboundMessage{Source: "flaky", Text: "x"})
	if !errors.Is(err, sendErr) {
		t.Errorf("expected send error to surface, got %v", err)
	}
}
