package bus

import (
	"sync"
	"time"
)

// InboundDebouncer merges rapid-fire messages from the same sender/chat
// into one flush, so a user who sends three quick texts in a row produces
// one agent run instead of three. Each key's pending messages are joined
// with a blank line and flushed once that key has been quiet for the
// debounce window.
type InboundDebouncer struct {
	window time.Duration
	flush  func(InboundMessage)

	mu      sync.Mutex
	pending map[string]*pendingGroup
	closed  bool
}

type pendingGroup struct {
	msg   InboundMessage
	timer *time.Timer
}

func NewInboundDebouncer(window time.Duration, flush func(InboundMessage)) *InboundDebouncer {
	return &InboundDebouncer{
		window:  window,
		flush:   flush,
		pending: make(map[string]*pendingGroup),
	}
}

func debounceKey(msg InboundMessage) string {
	return msg.Channel + "|" + msg.ChatID + "|" + msg.SenderID
}

// Push queues msg for debounced delivery. If a message for the same
// channel/chat/sender is already pending, its content is merged and the
// flush timer restarts.
func (d *InboundDebouncer) Push(msg InboundMessage) {
	key := debounceKey(msg)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	if g, ok := d.pending[key]; ok {
		g.timer.Stop()
		if msg.Content != "" {
			if g.msg.Content != "" {
				g.msg.Content += "\n\n" + msg.Content
			} else {
				g.msg.Content = msg.Content
			}
		}
		g.msg.Media = append(g.msg.Media, msg.Media...)
		g.msg.Metadata = msg.Metadata // last message's metadata (message_id etc.) wins
		g.timer = time.AfterFunc(d.window, func() { d.fire(key) })
		return
	}

	g := &pendingGroup{msg: msg}
	g.timer = time.AfterFunc(d.window, func() { d.fire(key) })
	d.pending[key] = g
}

func (d *InboundDebouncer) fire(key string) {
	d.mu.Lock()
	g, ok := d.pending[key]
	if ok {
		delete(d.pending, key)
	}
	d.mu.Unlock()
	if ok {
		d.flush(g.msg)
	}
}

// Stop cancels every pending timer without flushing. Queued messages are
// dropped; callers that need a final flush should track that separately.
func (d *InboundDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	for _, g := range d.pending {
		g.timer.Stop()
	}
	d.pending = nil
}
