// Package chatsessions is the arbiter between inbound producers (channels,
// the gateway's own chat.send RPC) and the agent loop: for each session key
// it guarantees at most one agent-loop invocation in flight, queues or
// coalesces turns that arrive while a run is active, and fans out
// streaming deltas to subscribers.
package chatsessions

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Mode controls how turns that arrive while a run is in flight are handled.
type Mode string

const (
	// ModeQueue serializes turns FIFO: each waits for the previous to finish.
	ModeQueue Mode = "queue"
	// ModeCollect coalesces every turn that arrives while a run is active
	// into one composite turn, run once the current run finishes.
	ModeCollect Mode = "collect"
)

// Turn is one pending user message awaiting a run.
type Turn struct {
	RunID       string
	Message     string
	Origin      string // channel name, or "gateway" for direct RPC sends
	ReplyTarget *ReplyTarget
	// Metadata carries whatever the RunFunc needs to finish the job beyond
	// Message/ReplyTarget (media paths, peer kind, thread ids, ...). The
	// arbiter never reads it — it's opaque passthrough to the RunFunc.
	Metadata map[string]string
}

// ReplyTarget identifies where a run's final reply should be delivered.
type ReplyTarget struct {
	Channel   string
	ChatID    string
	MessageID string
}

// RunFunc executes one (possibly coalesced) turn and returns its result.
type RunFunc func(ctx context.Context, sessionKey string, turn Turn) (content string, err error)

// Delta is one streaming update published to subscribers of a session.
type Delta struct {
	RunID   string
	Content string
	Done    bool
	Err     error
}

type session struct {
	mu          sync.Mutex
	mode        Mode
	running     bool
	activeRunID string
	cancel      context.CancelFunc
	pending     []Turn

	subMu sync.RWMutex
	subs  map[string]chan Delta
}

// Arbiter owns one session per key and runs turns through a RunFunc,
// never more than one at a time per key.
type Arbiter struct {
	run RunFunc

	mu       sync.Mutex
	sessions map[string]*session
}

func New(run RunFunc) *Arbiter {
	return &Arbiter{run: run, sessions: make(map[string]*session)}
}

func (a *Arbiter) get(sessionKey string) *session {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[sessionKey]
	if !ok {
		s = &session{mode: ModeQueue, subs: make(map[string]chan Delta)}
		a.sessions[sessionKey] = s
	}
	return s
}

// SetMode sets the queue/collect mode for a session key (default: queue).
func (a *Arbiter) SetMode(sessionKey string, mode Mode) {
	s := a.get(sessionKey)
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
}

// Send appends a turn and starts a run immediately if none is active,
// otherwise queues (or, in collect mode, coalesces) it. Returns the run ID
// the turn will execute under once started.
func (a *Arbiter) Send(ctx context.Context, sessionKey string, turn Turn) string {
	if turn.RunID == "" {
		turn.RunID = uuid.NewString()
	}
	s := a.get(sessionKey)

	s.mu.Lock()
	if s.running {
		if s.mode == ModeCollect && len(s.pending) > 0 {
			last := &s.pending[len(s.pending)-1]
			last.Message = last.Message + "\n\n" + turn.Message
			last.RunID = turn.RunID
			if turn.ReplyTarget != nil {
				last.ReplyTarget = turn.ReplyTarget
			}
		} else {
			s.pending = append(s.pending, turn)
		}
		s.mu.Unlock()
		return turn.RunID
	}
	s.running = true
	s.activeRunID = turn.RunID
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	go a.execute(runCtx, sessionKey, s, turn)
	return turn.RunID
}

func (a *Arbiter) execute(ctx context.Context, sessionKey string, s *session, turn Turn) {
	content, err := a.run(ctx, sessionKey, turn)
	a.publish(s, Delta{RunID: turn.RunID, Content: content, Err: err, Done: true})

	s.mu.Lock()
	s.running = false
	s.activeRunID = ""
	s.cancel = nil
	var next *Turn
	if len(s.pending) > 0 {
		t := s.pending[0]
		s.pending = s.pending[1:]
		next = &t
	}
	s.mu.Unlock()

	if next != nil {
		a.Send(context.Background(), sessionKey, *next)
	}
}

// Abort cooperatively cancels the in-flight run for a session key, if its
// run ID matches. Returns whether a run was cancelled.
func (a *Arbiter) Abort(sessionKey, runID string) bool {
	s := a.get(sessionKey)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.activeRunID != runID || s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

// ActiveRun returns the run ID currently executing for a session key, if
// any — used by callers (e.g. a "/stop" command) that don't already know
// the run ID they want to abort.
func (a *Arbiter) ActiveRun(sessionKey string) (string, bool) {
	s := a.get(sessionKey)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return "", false
	}
	return s.activeRunID, true
}

// CancelAll aborts the active run (if any) and drops every queued turn for
// a session key. Returns whether anything was cancelled.
func (a *Arbiter) CancelAll(sessionKey string) bool {
	s := a.get(sessionKey)
	s.mu.Lock()
	cancelled := len(s.pending) > 0
	s.pending = nil
	if s.running && s.cancel != nil {
		s.cancel()
		cancelled = true
	}
	s.mu.Unlock()
	return cancelled
}

// Publish sends a streaming delta to every subscriber of a session key.
func (a *Arbiter) Publish(sessionKey string, delta Delta) {
	a.publish(a.get(sessionKey), delta)
}

func (a *Arbiter) publish(s *session, delta Delta) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for id, ch := range s.subs {
		select {
		case ch <- delta:
		default:
			slog.Warn("chatsessions: subscriber channel full, dropping delta", "subscriber", id)
		}
	}
}

// Subscribe registers a fan-out channel for a session key's streaming
// deltas, returning an unsubscribe func.
func (a *Arbiter) Subscribe(sessionKey, subscriberID string, ch chan Delta) func() {
	s := a.get(sessionKey)
	s.subMu.Lock()
	s.subs[subscriberID] = ch
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, subscriberID)
		s.subMu.Unlock()
	}
}
