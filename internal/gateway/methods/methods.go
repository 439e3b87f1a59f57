// Package methods registers the gateway's RPC handlers against a
// *gateway.MethodRouter. Each Register* function owns one component's
// slice of the method table (chat, sessions, cron, exec approvals,
// channels, skills, pairing) so cmd/gateway.go only has to build the
// dependencies and call RegisterAll once.
package methods

import (
	"encoding/json"
	"fmt"

	"github.com/moltis/moltis/internal/agent"
	"github.com/moltis/moltis/internal/channels"
	"github.com/moltis/moltis/internal/channels/otp"
	"github.com/moltis/moltis/internal/chatsessions"
	"github.com/moltis/moltis/internal/gateway"
	"github.com/moltis/moltis/internal/mcp"
	"github.com/moltis/moltis/internal/scheduler"
	"github.com/moltis/moltis/internal/skills"
	"github.com/moltis/moltis/internal/store"
	"github.com/moltis/moltis/internal/tools"
)

// Deps bundles every component the RPC surface reaches into. Fields left
// nil simply skip that group's registration — a gateway running without,
// say, a scheduler still serves chat/sessions/exec-approval methods.
type Deps struct {
	Agents    *agent.Router
	Arbiter   *chatsessions.Arbiter
	Sessions  store.SessionStore
	Scheduler *scheduler.Scheduler
	Approvals *tools.ExecApprovalManager
	Channels  *channels.Manager
	Skills    *skills.Loader
	Pairing   *otp.Pairing
	Memory    store.MemoryStore
	MCPBridge *mcp.Bridge
}

// RegisterAll wires every available handler group onto router.
func RegisterAll(router *gateway.MethodRouter, deps Deps) {
	registerSystem(router, deps)
	if deps.Arbiter != nil && deps.Agents != nil {
		registerChat(router, deps)
	}
	if deps.Sessions != nil {
		registerSessions(router, deps)
	}
	if deps.Scheduler != nil {
		registerCron(router, deps)
	}
	if deps.Approvals != nil {
		registerApprovals(router, deps)
	}
	if deps.Channels != nil {
		registerChannels(router, deps)
	}
	if deps.Skills != nil {
		registerSkills(router, deps)
	}
	if deps.Pairing != nil {
		registerPairing(router, deps)
	}
	if deps.Memory != nil {
		registerMemory(router, deps)
	}
	if deps.MCPBridge != nil {
		registerMCP(router, deps)
	}
}

// decodeParams re-marshals the router's generic params value into a typed
// struct. protocol.RequestFrame.Params decodes off the wire as
// map[string]interface{}, so every handler needing named fields goes
// through this instead of a type assertion.
func decodeParams(params interface{}, out interface{}) error {
	if params == nil {
		return nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("re-marshal params: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	return nil
}
