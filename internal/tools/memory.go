package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/moltis/moltis/internal/store"
)

// MemorySearchTool runs a hybrid keyword/semantic search over the
// operator's memory index. A nil store (memory not configured) makes the
// tool report unavailability instead of panicking, so it can still be
// registered unconditionally and simply decline at call time.
type MemorySearchTool struct {
	memory store.MemoryStore
}

func NewMemorySearchTool(mem store.MemoryStore) *MemorySearchTool {
	return &MemorySearchTool{memory: mem}
}

func (t *MemorySearchTool) Name() string        { return "memory_search" }
func (t *MemorySearchTool) Description() string { return "Search saved memory for relevant notes" }
func (t *MemorySearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{"type": "string", "description": "Search query"},
			"limit": map[string]interface{}{"type": "integer", "description": "Max results (default 5)"},
		},
		"required": []string{"query"},
	}
}

func (t *MemorySearchTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	if t.memory == nil {
		return ErrorResult("memory is not configured")
	}
	query, _ := args["query"].(string)
	if query == "" {
		return ErrorResult("query is required")
	}
	limit := 5
	if l, ok := args["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}

	hits, err := t.memory.Search(query, nil, limit)
	if err != nil {
		return ErrorResult(fmt.Sprintf("memory search failed: %v", err))
	}
	if len(hits) == 0 {
		return SilentResult("no matching memory found")
	}

	var b strings.Builder
	for _, h := range hits {
		fmt.Fprintf(&b, "## %s (score %.2f)\n%s\n\n", h.Path, h.Score, h.Content)
	}
	return SilentResult(b.String())
}

// MemoryGetTool returns the full content of one previously-indexed
// memory chunk by path, used once search has located a promising hit.
type MemoryGetTool struct {
	memory store.MemoryStore
}

func NewMemoryGetTool(mem store.MemoryStore) *MemoryGetTool {
	return &MemoryGetTool{memory: mem}
}

func (t *MemoryGetTool) Name() string        { return "memory_get" }
func (t *MemoryGetTool) Description() string { return "Fetch a memory entry by its path" }
func (t *MemoryGetTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{"type": "string", "description": "Memory entry path, from a prior memory_search result"},
		},
		"required": []string{"path"},
	}
}

func (t *MemoryGetTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	if t.memory == nil {
		return ErrorResult("memory is not configured")
	}
	path, _ := args["path"].(string)
	if path == "" {
		return ErrorResult("path is required")
	}

	hits, err := t.memory.Search(path, nil, 1)
	if err != nil {
		return ErrorResult(fmt.Sprintf("memory lookup failed: %v", err))
	}
	for _, h := range hits {
		if h.Path == path {
			return SilentResult(h.Content)
		}
	}
	return ErrorResult(fmt.Sprintf("no memory entry found at %s", path))
}
