package store

import (
	"time"

	"github.com/google/uuid"
)

// GenNewID returns a fresh random identifier for traces, spans, and jobs.
func GenNewID() uuid.UUID {
	return uuid.New()
}

// Trace/span status values.
const (
	TraceStatusRunning   = "running"
	TraceStatusCompleted = "completed"
	TraceStatusError     = "error"
	TraceStatusCancelled = "cancelled"

	SpanStatusCompleted = "completed"
	SpanStatusError     = "error"
)

// Span kinds recorded within a trace.
const (
	SpanTypeAgent    = "agent"
	SpanTypeLLMCall  = "llm_call"
	SpanTypeToolCall = "tool_call"
)

// SpanLevelDefault is the only level this build records; finer-grained
// debug/verbose levels are controlled by Collector.Verbose instead.
const SpanLevelDefault = "DEFAULT"

// TraceData is the root record for one agent run, created when the run
// starts and finalized with FinishTrace when it ends.
type TraceData struct {
	ID             uuid.UUID
	RunID          string
	SessionKey     string
	UserID         string
	Channel        string
	Name           string
	InputPreview   string
	OutputPreview  string
	Status         string
	Error          string
	StartTime      time.Time
	EndTime        *time.Time
	CreatedAt      time.Time
	AgentID        *uuid.UUID
	ParentTraceID  *uuid.UUID
	Tags           []string
}

// SpanData is one LLM call, tool call, or agent span nested under a trace.
type SpanData struct {
	ID            uuid.UUID
	TraceID       uuid.UUID
	ParentSpanID  *uuid.UUID
	AgentID       *uuid.UUID
	SpanType      string
	Name          string
	StartTime     time.Time
	EndTime       *time.Time
	DurationMS    int
	Model         string
	Provider      string
	ToolName      string
	ToolCallID    string
	InputPreview  string
	OutputPreview string
	InputTokens   int
	OutputTokens  int
	FinishReason  string
	Status        string
	Error         string
	Level         string
	Metadata      []byte
	CreatedAt     time.Time
}

// TracingStore persists traces and spans. The only implementation in this
// build is the optional Postgres backend (internal/store/pg); tracing is a
// no-op when it's nil.
type TracingStore interface {
	CreateTrace(trace *TraceData) error
	FinishTrace(id uuid.UUID, status, errMsg, outputPreview string) error
	CreateSpan(span *SpanData) error
}
