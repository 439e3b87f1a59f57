// Package tracing records per-run traces (one root span per agent.Loop.Run
// call, nested LLM-call and tool-call spans beneath it) for later
// inspection over the gateway's traces.* RPC methods. It is a no-op unless
// a Collector backed by a TracingStore is wired in — the default
// standalone build has no tracing store, so agent runs simply skip all of
// this.
package tracing

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/moltis/moltis/internal/store"
)

type ctxKey int

const (
	ctxKeyTraceID ctxKey = iota
	ctxKeyCollector
	ctxKeyParentSpanID
	ctxKeyAnnounceParentSpanID
	ctxKeyDelegateParentTraceID
)

func WithTraceID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxKeyTraceID, id)
}

func TraceIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(ctxKeyTraceID).(uuid.UUID)
	return id
}

func WithCollector(ctx context.Context, c *Collector) context.Context {
	return context.WithValue(ctx, ctxKeyCollector, c)
}

func CollectorFromContext(ctx context.Context) *Collector {
	c, _ := ctx.Value(ctxKeyCollector).(*Collector)
	return c
}

func WithParentSpanID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxKeyParentSpanID, id)
}

func ParentSpanIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(ctxKeyParentSpanID).(uuid.UUID)
	return id
}

// WithAnnounceParentSpanID marks a run as nested under a parent run's root
// span — used when one agent's run reformulates another's output for
// delivery (e.g. a subagent reporting back to its caller).
func WithAnnounceParentSpanID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxKeyAnnounceParentSpanID, id)
}

func AnnounceParentSpanIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(ctxKeyAnnounceParentSpanID).(uuid.UUID)
	return id
}

// WithDelegateParentTraceID links a run's trace to the trace of the run
// that spawned it, so the gateway can render delegated runs as children of
// their caller in the trace tree.
func WithDelegateParentTraceID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxKeyDelegateParentTraceID, id)
}

func DelegateParentTraceIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(ctxKeyDelegateParentTraceID).(uuid.UUID)
	return id
}

// Collector buffers trace/span writes and forwards them to a TracingStore.
// Verbose controls whether full message/output bodies are recorded
// (MOLTIS_TRACE_VERBOSE=1) or only short previews.
type Collector struct {
	store   store.TracingStore
	verbose bool
}

func NewCollector(s store.TracingStore) *Collector {
	return &Collector{store: s}
}

// SetVerbose toggles full-body span previews; off by default to keep trace
// storage small.
func (c *Collector) SetVerbose(v bool) { c.verbose = v }

func (c *Collector) Verbose() bool { return c.verbose }

func (c *Collector) CreateTrace(ctx context.Context, t *store.TraceData) error {
	if c == nil || c.store == nil {
		return nil
	}
	return c.store.CreateTrace(t)
}

func (c *Collector) FinishTrace(ctx context.Context, id uuid.UUID, status, errMsg, outputPreview string) {
	if c == nil || c.store == nil {
		return
	}
	if err := c.store.FinishTrace(id, status, errMsg, outputPreview); err != nil {
		slog.Warn("tracing: failed to finish trace", "trace", id, "error", err)
	}
}

func (c *Collector) EmitSpan(span store.SpanData) {
	if c == nil || c.store == nil {
		return
	}
	if span.ID == uuid.Nil {
		span.ID = store.GenNewID()
	}
	if err := c.store.CreateSpan(&span); err != nil {
		slog.Warn("tracing: failed to record span", "trace", span.TraceID, "error", err)
	}
}
