package bus

import (
	"context"
)

// MessageBus funnels inbound messages from every adapter into the single
// intake loop that persists them. It is deliberately one-directional: the
// reply path rides durable outbox files instead of a channel, so replies
// survive a crash between write and delivery.
type MessageBus struct {
	inbound chan InboundMessage
}

// NewMessageBus creates a new MessageBus with the given buffer size.
// If bufSize is 0, defaults to 100.
func NewMessageBus(bufSize int) *MessageBus {
	if bufSize <= 0 {
		bufSize = 100
	}
	return &MessageBus{
		inbound: make(chan InboundMessage, bufSize),
	}
}

// PublishInbound sends an inbound message onto the bus, blocking while the
// buffer is full so adapters back-pressure instead of dropping.
func (b *MessageBus) PublishInbound(msg InboundMessage) {
	b.inbound <- msg
}

// ConsumeInbound blocks until an inbound message is available or ctx is
// cancelled.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, error) {
	select {
	case msg, ok := <-b.inbound:
		if !ok {
			return InboundMessage{}, context.Canceled
		}
		return msg, nil
	case <-ctx.Done():
		return InboundMessage{}, ctx.Err()
	}
}

// Close closes the inbound channel. Publish after Close panics; stop the
// adapters first.
func (b *MessageBus) Close() {
	close(b.inbound)
}
