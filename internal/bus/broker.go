package bus

import (
	"context"
	"log/slog"
	"sync"
)

const defaultChannelBuffer = 256

// MessageBus is the single in-process broker wiring channels, the agent
// runtime, and WebSocket clients together: inbound channel messages flow
// in through PublishInbound/ConsumeInbound, agent replies flow back out
// through PublishOutbound/SubscribeOutbound, and server-side events fan
// out to every subscriber via Broadcast. It satisfies both EventPublisher
// and MessageRouter so callers can depend on whichever narrower interface
// they actually need.
type MessageBus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage

	mu   sync.RWMutex
	subs map[string]EventHandler
}

// New creates a MessageBus with the given channel buffer size. A buffer
// of 0 uses a sensible default; PublishInbound/PublishOutbound never
// block the caller, they drop and log when the buffer is full.
func New(buffer int) *MessageBus {
	if buffer <= 0 {
		buffer = defaultChannelBuffer
	}
	return &MessageBus{
		inbound:  make(chan InboundMessage, buffer),
		outbound: make(chan OutboundMessage, buffer),
		subs:     make(map[string]EventHandler),
	}
}

// PublishInbound enqueues a message received from a channel. It never
// blocks: if the inbound queue is full the message is dropped and logged,
// since a stalled consumer should not back up every channel connection.
func (b *MessageBus) PublishInbound(msg InboundMessage) {
	select {
	case b.inbound <- msg:
	default:
		slog.Warn("bus: inbound queue full, dropping message", "channel", msg.Channel, "chat", msg.ChatID)
	}
}

// ConsumeInbound blocks until a message is available or ctx is done.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	select {
	case msg := <-b.inbound:
		return msg, true
	case <-ctx.Done():
		return InboundMessage{}, false
	}
}

// PublishOutbound enqueues a reply for delivery back to a channel.
func (b *MessageBus) PublishOutbound(msg OutboundMessage) {
	select {
	case b.outbound <- msg:
	default:
		slog.Warn("bus: outbound queue full, dropping message", "channel", msg.Channel, "chat", msg.ChatID)
	}
}

// SubscribeOutbound blocks until a reply is available or ctx is done.
func (b *MessageBus) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	select {
	case msg := <-b.outbound:
		return msg, true
	case <-ctx.Done():
		return OutboundMessage{}, false
	}
}

// Subscribe registers handler to receive every broadcast event under id.
// A second Subscribe with the same id replaces the prior handler.
func (b *MessageBus) Subscribe(id string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[id] = handler
}

// Unsubscribe removes id's handler, if any.
func (b *MessageBus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Broadcast delivers event to every current subscriber. Each handler runs
// in its own goroutine so a slow WebSocket write never blocks the sender
// or delays delivery to other subscribers.
func (b *MessageBus) Broadcast(event Event) {
	b.mu.RLock()
	handlers := make([]EventHandler, 0, len(b.subs))
	for _, h := range b.subs {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		go h(event)
	}
}
