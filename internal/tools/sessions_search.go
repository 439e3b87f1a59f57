package tools

import (
	"context"
	"encoding/json"

	"github.com/moltis/moltis/internal/store"
)

// ============================================================
// sessions_search
// ============================================================

type SessionsSearchTool struct {
	sessions store.SessionStore
}

func NewSessionsSearchTool() *SessionsSearchTool { return &SessionsSearchTool{} }

func (t *SessionsSearchTool) SetSessionStore(s store.SessionStore) { t.sessions = s }

func (t *SessionsSearchTool) Name() string { return "sessions_search" }
func (t *SessionsSearchTool) Description() string {
	return "Search across all session logs for a substring, returning at most one hit per session."
}

func (t *SessionsSearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Substring to search for (case-insensitive)",
			},
			"max_results": map[string]interface{}{
				"type":        "number",
				"description": "Max sessions to return a hit from (default 20)",
			},
		},
		"required": []string{"query"},
	}
}

func (t *SessionsSearchTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	if t.sessions == nil {
		return ErrorResult("session store not available")
	}

	query, _ := args["query"].(string)
	if query == "" {
		return ErrorResult("query is required")
	}

	maxResults := 20
	if v, ok := args["max_results"].(float64); ok && int(v) > 0 {
		maxResults = int(v)
	}

	hits := t.sessions.Search(query, maxResults)
	out, _ := json.Marshal(map[string]interface{}{
		"count":   len(hits),
		"results": hits,
	})
	return SilentResult(string(out))
}
