package tools

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/moltis/moltis/internal/bus"
	"github.com/moltis/moltis/pkg/protocol"
)

// ApprovalDecision is the outcome of an exec approval request.
type ApprovalDecision string

const (
	ApprovalPending ApprovalDecision = "pending"
	ApprovalApprove ApprovalDecision = "approve"
	ApprovalDeny    ApprovalDecision = "deny"
)

// ExecSecurity controls which commands the exec tool allows without a
// per-run approval prompt.
type ExecSecurity string

const (
	// ExecSecurityDeny allows only commands matching the allowlist.
	ExecSecurityDeny ExecSecurity = "deny"
	// ExecSecurityAllowlist allows allowlisted commands outright and
	// routes everything else through the Ask policy.
	ExecSecurityAllowlist ExecSecurity = "allowlist"
	// ExecSecurityFull allows any command not caught by the deny-pattern
	// list, subject to the Ask policy.
	ExecSecurityFull ExecSecurity = "full"
)

// ExecAskMode controls when an otherwise-allowed command still requires
// operator approval before running.
type ExecAskMode string

const (
	ExecAskOff    ExecAskMode = "off"     // never ask
	ExecAskOnMiss ExecAskMode = "on-miss" // ask only when the allowlist doesn't match
	ExecAskAlways ExecAskMode = "always"  // always ask
)

// ApprovalAware is implemented by tools that can be wired to an
// ExecApprovalManager after construction.
type ApprovalAware interface {
	SetApprovalManager(mgr *ExecApprovalManager, agentID string)
}

// ExecApprovalConfig configures an ExecApprovalManager.
type ExecApprovalConfig struct {
	Security  ExecSecurity
	Ask       ExecAskMode
	Allowlist []string // glob patterns matched against the full command string
}

// DefaultExecApprovalConfig returns the default policy: any command is
// allowed, and none require operator approval.
func DefaultExecApprovalConfig() ExecApprovalConfig {
	return ExecApprovalConfig{
		Security: ExecSecurityFull,
		Ask:      ExecAskOff,
	}
}

// ApprovalRequest records a single pending or resolved exec approval.
type ApprovalRequest struct {
	ID          string           `json:"id"`
	Command     string           `json:"command"`
	AgentID     string           `json:"agent_id"`
	RequestedAt int64            `json:"requested_at"`
	Decision    ApprovalDecision `json:"decision"`
	DecidedAt   int64            `json:"decided_at,omitempty"`
}

// ExecApprovalManager gates shell-exec commands behind a security policy
// and, when the policy calls for it, an operator-confirmed approval
// carried over the event bus to a connected gateway client.
type ExecApprovalManager struct {
	cfg ExecApprovalConfig

	mu       sync.Mutex
	pending  map[string]chan ApprovalDecision
	requests map[string]*ApprovalRequest

	publisher bus.EventPublisher
}

// NewExecApprovalManager builds a manager from the given policy.
func NewExecApprovalManager(cfg ExecApprovalConfig) *ExecApprovalManager {
	return &ExecApprovalManager{
		cfg:      cfg,
		pending:  make(map[string]chan ApprovalDecision),
		requests: make(map[string]*ApprovalRequest),
	}
}

// SetPublisher wires an event publisher so pending/resolved approvals are
// broadcast to connected operator clients.
func (m *ExecApprovalManager) SetPublisher(pub bus.EventPublisher) {
	m.mu.Lock()
	m.publisher = pub
	m.mu.Unlock()
}

func (m *ExecApprovalManager) matchesAllowlist(command string) bool {
	for _, pattern := range m.cfg.Allowlist {
		if ok, err := filepath.Match(pattern, command); err == nil && ok {
			return true
		}
		// Also allow prefix-style patterns like "git *" to match the
		// leading word without requiring a full glob match.
		if strings.HasSuffix(pattern, "*") {
			prefix := strings.TrimSuffix(pattern, "*")
			if strings.HasPrefix(command, prefix) {
				return true
			}
		}
	}
	return false
}

// CheckCommand classifies a command against the security policy, returning
// "deny", "ask", or "allow".
func (m *ExecApprovalManager) CheckCommand(command string) string {
	matched := m.matchesAllowlist(command)

	switch m.cfg.Security {
	case ExecSecurityDeny:
		if !matched {
			return "deny"
		}
		if m.cfg.Ask == ExecAskAlways {
			return "ask"
		}
		return "allow"

	case ExecSecurityAllowlist:
		if matched {
			if m.cfg.Ask == ExecAskAlways {
				return "ask"
			}
			return "allow"
		}
		if m.cfg.Ask == ExecAskOff {
			return "deny"
		}
		return "ask"

	default: // ExecSecurityFull
		if m.cfg.Ask == ExecAskAlways || (m.cfg.Ask == ExecAskOnMiss && !matched) {
			return "ask"
		}
		return "allow"
	}
}

// RequestApproval blocks until an operator resolves the pending request,
// or the timeout elapses. A timeout resolves to deny (fail closed).
func (m *ExecApprovalManager) RequestApproval(command, agentID string, timeout time.Duration) (ApprovalDecision, error) {
	req := &ApprovalRequest{
		ID:          uuid.NewString(),
		Command:     command,
		AgentID:     agentID,
		RequestedAt: time.Now().UnixMilli(),
		Decision:    ApprovalPending,
	}
	ch := make(chan ApprovalDecision, 1)

	m.mu.Lock()
	m.pending[req.ID] = ch
	m.requests[req.ID] = req
	pub := m.publisher
	m.mu.Unlock()

	if pub != nil {
		pub.Broadcast(bus.Event{Name: protocol.EventExecApprovalReq, Payload: req})
	}

	select {
	case decision := <-ch:
		return decision, nil
	case <-time.After(timeout):
		m.mu.Lock()
		delete(m.pending, req.ID)
		req.Decision = ApprovalDeny
		req.DecidedAt = time.Now().UnixMilli()
		m.mu.Unlock()
		return ApprovalDeny, fmt.Errorf("approval request %s timed out waiting for operator decision", req.ID)
	}
}

// List returns all known approval requests, pending and resolved, newest
// request-time last.
func (m *ExecApprovalManager) List() []*ApprovalRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*ApprovalRequest, 0, len(m.requests))
	for _, req := range m.requests {
		out = append(out, req)
	}
	return out
}

// Resolve delivers an operator's decision for a pending request, unblocking
// whatever call is waiting on RequestApproval.
func (m *ExecApprovalManager) Resolve(id string, approve bool) error {
	m.mu.Lock()
	ch, ok := m.pending[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("no pending approval request %s", id)
	}
	delete(m.pending, id)

	decision := ApprovalDeny
	if approve {
		decision = ApprovalApprove
	}

	req := m.requests[id]
	if req != nil {
		req.Decision = decision
		req.DecidedAt = time.Now().UnixMilli()
	}
	pub := m.publisher
	m.mu.Unlock()

	ch <- decision

	if pub != nil {
		pub.Broadcast(bus.Event{Name: protocol.EventExecApprovalRes, Payload: req})
	}
	return nil
}
