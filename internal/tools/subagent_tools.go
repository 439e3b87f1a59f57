package tools

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// AsyncCallback is invoked once an asynchronously-running tool (a spawned
// subagent) finishes, so the agent loop can inject its result back into
// the conversation without the caller blocking on Execute.
type AsyncCallback func(ctx context.Context, result *Result)

// AnnounceQueueItem is one subagent's finished-task summary, queued for
// delivery back to its parent session.
type AnnounceQueueItem struct {
	SubagentID string
	Label      string
	Status     string
	Result     string
	Runtime    time.Duration
	Iterations int
}

// AnnounceMetadata carries the routing context a queued announce needs to
// reach the parent's session and trace.
type AnnounceMetadata struct {
	OriginChannel    string
	OriginChatID     string
	OriginPeerKind   string
	OriginUserID     string
	ParentAgent      string
	OriginTraceID    string
	OriginRootSpanID string
}

// FormatBatchedAnnounce renders one or more finished subagent tasks as a
// single system message for the parent agent to reformulate.
func FormatBatchedAnnounce(items []AnnounceQueueItem, remainingActive int) string {
	var out string
	if len(items) == 1 {
		it := items[0]
		out = fmt.Sprintf("Subagent '%s' %s in %s (%d iterations).\n\nResult:\n%s",
			it.Label, it.Status, it.Runtime.Round(time.Second), it.Iterations, it.Result)
	} else {
		out = fmt.Sprintf("%d subagents finished:\n\n", len(items))
		for _, it := range items {
			out += fmt.Sprintf("--- %s (%s, %s) ---\n%s\n\n", it.Label, it.Status, it.Runtime.Round(time.Second), it.Result)
		}
	}
	if remainingActive > 0 {
		out += fmt.Sprintf("\n(%d subagent(s) still running)", remainingActive)
	}
	return out
}

// AnnounceQueue batches subagent completions per parent session so a
// burst of finishing subagents produces one delivered message instead of
// one per task, the same debounce shape InboundDebouncer uses for
// channel messages.
type AnnounceQueue struct {
	window    time.Duration
	flush     func(sessionKey string, items []AnnounceQueueItem, meta AnnounceMetadata)
	countFn   func(parentID string) int
	maxQueued int

	mu      sync.Mutex
	pending map[string]*pendingAnnounce
}

type pendingAnnounce struct {
	items []AnnounceQueueItem
	meta  AnnounceMetadata
	timer *time.Timer
}

// NewAnnounceQueue builds a queue that batches announces for batchWindowMs
// milliseconds before flushing, capping any one session's backlog at
// maxQueued items.
func NewAnnounceQueue(maxQueued, batchWindowMs int, flush func(sessionKey string, items []AnnounceQueueItem, meta AnnounceMetadata), countFn func(parentID string) int) *AnnounceQueue {
	return &AnnounceQueue{
		window:    time.Duration(batchWindowMs) * time.Millisecond,
		flush:     flush,
		countFn:   countFn,
		maxQueued: maxQueued,
		pending:   make(map[string]*pendingAnnounce),
	}
}

// Enqueue adds item to sessionKey's pending batch, restarting its flush
// timer, unless the session's backlog has already hit maxQueued — in
// which case it flushes immediately rather than growing unbounded.
func (q *AnnounceQueue) Enqueue(sessionKey string, item AnnounceQueueItem, meta AnnounceMetadata) {
	q.mu.Lock()
	p, ok := q.pending[sessionKey]
	if !ok {
		p = &pendingAnnounce{meta: meta}
		q.pending[sessionKey] = p
	} else {
		p.timer.Stop()
		p.meta = meta
	}
	p.items = append(p.items, item)

	if len(p.items) >= q.maxQueued {
		delete(q.pending, sessionKey)
		q.mu.Unlock()
		q.flush(sessionKey, p.items, p.meta)
		return
	}

	p.timer = time.AfterFunc(q.window, func() { q.fire(sessionKey) })
	q.mu.Unlock()
}

func (q *AnnounceQueue) fire(sessionKey string) {
	q.mu.Lock()
	p, ok := q.pending[sessionKey]
	if ok {
		delete(q.pending, sessionKey)
	}
	q.mu.Unlock()
	if ok {
		q.flush(sessionKey, p.items, p.meta)
	}
}

// SpawnTool lets an agent fire off an asynchronous subagent for a task it
// doesn't need to block on — the result announces back to the parent
// session once the subagent finishes.
type SpawnTool struct {
	mgr      *SubagentManager
	parentID string
	depth    int
}

func NewSpawnTool(mgr *SubagentManager, parentID string, depth int) *SpawnTool {
	return &SpawnTool{mgr: mgr, parentID: parentID, depth: depth}
}

func (t *SpawnTool) Name() string { return "spawn" }
func (t *SpawnTool) Description() string {
	return "Spawn a background subagent for a task; its result is announced back to this conversation when done"
}

func (t *SpawnTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"task": map[string]interface{}{
				"type":        "string",
				"description": "The task for the subagent to complete",
			},
			"label": map[string]interface{}{
				"type":        "string",
				"description": "Short human-readable label for this task",
			},
			"model": map[string]interface{}{
				"type":        "string",
				"description": "Optional model override for this subagent",
			},
		},
		"required": []string{"task"},
	}
}

func (t *SpawnTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	task, _ := args["task"].(string)
	if task == "" {
		return ErrorResult("task is required")
	}
	label, _ := args["label"].(string)
	model, _ := args["model"].(string)

	channel := ToolChannelFromCtx(ctx)
	chatID := ToolChatIDFromCtx(ctx)
	peerKind := ToolPeerKindFromCtx(ctx)
	callback := ToolAsyncCBFromCtx(ctx)

	msg, err := t.mgr.Spawn(ctx, t.parentID, t.depth, task, label, model, channel, chatID, peerKind, callback)
	if err != nil {
		return ErrorResult(err.Error())
	}
	return AsyncResult(msg)
}

// SubagentTool runs a subagent synchronously and returns its result
// directly, for callers that need the answer inline rather than as a
// later announce.
type SubagentTool struct {
	mgr      *SubagentManager
	parentID string
	depth    int
}

func NewSubagentTool(mgr *SubagentManager, parentID string, depth int) *SubagentTool {
	return &SubagentTool{mgr: mgr, parentID: parentID, depth: depth}
}

func (t *SubagentTool) Name() string { return "subagent" }
func (t *SubagentTool) Description() string {
	return "Run a subagent synchronously and return its result directly, blocking until it completes"
}

func (t *SubagentTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"task": map[string]interface{}{
				"type":        "string",
				"description": "The task for the subagent to complete",
			},
			"label": map[string]interface{}{
				"type":        "string",
				"description": "Short human-readable label for this task",
			},
		},
		"required": []string{"task"},
	}
}

func (t *SubagentTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	task, _ := args["task"].(string)
	if task == "" {
		return ErrorResult("task is required")
	}
	label, _ := args["label"].(string)
	channel := ToolChannelFromCtx(ctx)
	chatID := ToolChatIDFromCtx(ctx)

	result, iterations, err := t.mgr.RunSync(ctx, t.parentID, t.depth, task, label, channel, chatID)
	if err != nil {
		return ErrorResult(err.Error())
	}
	return NewResult(fmt.Sprintf("Subagent completed in %d iterations.\n\nResult:\n%s", iterations, result))
}
