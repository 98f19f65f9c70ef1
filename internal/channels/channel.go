package channels

import (
	"context"
	"encoding/json"

	"github.com/featherline/pigeonhole/internal/bus"
)

// Channel is the interface all chat platform adapters must implement.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Send(msg bus.OutboundMessage) error
	IsAllowed(senderID string) bool
}

// Deps is what a factory gets to work with: the intake bus and a directory
// for downloaded media files.
type Deps struct {
	Bus      *bus.MessageBus
	MediaDir string
}

// ChannelFactory creates a Channel from JSON config.
type ChannelFactory func(cfg json.RawMessage, deps Deps) (Channel, error)

var registry = map[string]ChannelFactory{}

// Register adds a channel factory to the registry.
func Register(name string, factory ChannelFactory) {
	registry[name] = factory
}

// GetFactory returns the factory for a channel name.
func GetFactory(name string) (ChannelFactory, bool) {
	f, ok := registry[name]
	return f, ok
}

// RegisteredNames returns all registered channel names.
func RegisteredNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
