package tools

import (
	"context"
	"regexp"
	"sort"
	"sync"

	"github.com/moltis/moltis/internal/providers"
)

// Tool is the interface every built-in tool implements: a stable name
// used in provider tool-call payloads, a human description, a JSON
// Schema describing its parameters, and an executor. Execute reads its
// request-scoped context (channel, chat ID, session key, workspace) from
// the WithTool* helpers rather than through mutable setters, so a single
// Tool instance is safe to run concurrently across sessions.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) *Result
}

// ToProviderDef converts a Tool into the wire shape sent to LLM providers.
func ToProviderDef(t Tool) providers.ToolDefinition {
	return providers.ToolDefinition{
		Type: "function",
		Function: providers.ToolFunctionSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		},
	}
}

// Registry holds every tool available to the agent loop, keyed by name.
// It is the single place that knows how to turn a provider tool call
// into a Result: it injects request context, enforces the optional
// per-session rate limit, runs the tool, and scrubs credential-shaped
// strings from the output before it reaches the LLM or the user.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool

	limiter   *ToolRateLimiter // nil = no rate limiting
	scrubbing bool
}

// NewRegistry creates an empty registry with credential scrubbing on by
// default, matching the scrub-by-default posture of the config it reads
// ScrubCredentials from.
func NewRegistry() *Registry {
	return &Registry{
		tools:     make(map[string]Tool),
		scrubbing: true,
	}
}

// Register adds a tool, replacing any existing tool with the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns every registered tool name, sorted for deterministic
// policy evaluation and test output.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// ProviderDefs returns every registered tool's definition, unfiltered.
// Callers that need policy filtering use PolicyEngine.FilterTools instead.
func (r *Registry) ProviderDefs() []providers.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]providers.ToolDefinition, 0, len(r.tools))
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		defs = append(defs, ToProviderDef(r.tools[name]))
	}
	return defs
}

// SetRateLimiter installs (or, with nil, removes) a per-session-key rate
// limit applied before every tool execution.
func (r *Registry) SetRateLimiter(limiter *ToolRateLimiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiter = limiter
}

// SetScrubbing toggles credential-shaped redaction of tool output. On by
// default; an operator who trusts their own sandboxed tool output can
// disable it.
func (r *Registry) SetScrubbing(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scrubbing = enabled
}

// ExecuteWithContext runs the named tool with request-scoped context
// injected, enforcing the rate limiter (keyed by sessionKey) and
// scrubbing the result when scrubbing is enabled. approvalMgr is accepted
// for the exec-approval gate the shell tool will eventually consult; it
// is currently unused because that gate has not been built yet.
func (r *Registry) ExecuteWithContext(ctx context.Context, name string, args map[string]interface{}, channel, chatID, peerKind, sessionKey string, approvalMgr interface{}) *Result {
	r.mu.RLock()
	t, ok := r.tools[name]
	limiter := r.limiter
	scrub := r.scrubbing
	r.mu.RUnlock()

	if !ok {
		return ErrorResult("unknown tool: " + name)
	}

	if limiter != nil && !limiter.Allow(sessionKey) {
		return ErrorResult("rate limit exceeded for this session, try again later")
	}

	ctx = WithToolChannel(ctx, channel)
	ctx = WithToolChatID(ctx, chatID)
	ctx = WithToolPeerKind(ctx, peerKind)
	ctx = WithToolSandboxKey(ctx, sessionKey)

	result := t.Execute(ctx, args)
	if result == nil {
		result = ErrorResult("tool returned no result")
	}

	if scrub {
		result.ForLLM = scrubCredentials(result.ForLLM)
		if result.ForUser != "" {
			result.ForUser = scrubCredentials(result.ForUser)
		}
	}
	return result
}

// credentialPatterns matches common secret shapes (provider API keys,
// bearer tokens, AWS access keys) so a tool that reads a .env file or a
// shell command's output doesn't hand a live credential straight to the
// model.
var credentialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-[A-Za-z0-9_-]{20,}`),
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._-]{20,}`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`(?i)(api[_-]?key|secret|token|password)\s*[:=]\s*["']?[A-Za-z0-9_\-./+]{12,}["']?`),
}

const redacted = "[redacted]"

func scrubCredentials(s string) string {
	if s == "" {
		return s
	}
	for _, pat := range credentialPatterns {
		s = pat.ReplaceAllString(s, redacted)
	}
	return s
}
