package protocol

// WebSocket event names pushed from server to client.
const (
	EventAgent             = "agent"
	EventChat              = "chat"
	EventHealth            = "health"
	EventCron              = "cron"
	EventExecApprovalReq   = "exec.approval.requested"
	EventExecApprovalRes   = "exec.approval.resolved"
	EventPresence          = "presence"
	EventTick              = "tick"
	EventShutdown          = "shutdown"
	EventDevicePairReq     = "device.pair.requested"
	EventDevicePairRes     = "device.pair.resolved"
	EventConnectChallenge  = "connect.challenge"
	EventHeartbeat         = "heartbeat"

	// Cache invalidation events (internal, not forwarded to WS clients).
	EventCacheInvalidate = "cache.invalidate"
)

// Agent event subtypes (in payload.type)
const (
	AgentEventRunStarted   = "run.started"
	AgentEventRunCompleted = "run.completed"
	AgentEventRunFailed    = "run.failed"
	AgentEventRunRetrying  = "run.retrying"
	AgentEventToolCall     = "tool.call"
	AgentEventToolResult   = "tool.result"
)

// Chat event subtypes (in payload.type)
const (
	ChatEventChunk    = "chunk"
	ChatEventMessage  = "message"
	ChatEventThinking = "thinking"
)
