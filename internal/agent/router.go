package agent

import (
	"fmt"
	"sort"
	"sync"
)

// Router holds one Loop per configured agent and resolves a session's
// target agent by ID. A single-operator gateway typically runs one
// "default" agent, but the config format allows several (e.g. a personal
// assistant agent and a separate coding-focused agent sharing the process).
type Router struct {
	mu    sync.RWMutex
	loops map[string]*Loop
}

func NewRouter() *Router {
	return &Router{loops: make(map[string]*Loop)}
}

// Register adds or replaces the Loop for an agent ID.
func (r *Router) Register(agentID string, loop *Loop) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loops[agentID] = loop
}

// Get returns the Loop for an agent ID.
func (r *Router) Get(agentID string) (*Loop, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	loop, ok := r.loops[agentID]
	if !ok {
		return nil, fmt.Errorf("agent %q not configured", agentID)
	}
	return loop, nil
}

// List returns the configured agent IDs, sorted.
func (r *Router) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.loops))
	for id := range r.loops {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
