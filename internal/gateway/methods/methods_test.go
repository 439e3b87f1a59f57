package methods

import (
	"testing"

	"github.com/moltis/moltis/internal/agent"
)

func TestSessionKeyFormat(t *testing.T) {
	got := sessionKey("assistant", "telegram", "direct", "12345")
	want := "agent:assistant:telegram:direct:12345"
	if got != want {
		t.Fatalf("sessionKey = %q, want %q", got, want)
	}
}

func TestDecodeParamsNil(t *testing.T) {
	var p chatSendParams
	if err := decodeParams(nil, &p); err != nil {
		t.Fatalf("decodeParams(nil): %v", err)
	}
	if p.Message != "" {
		t.Fatal("expected zero value when params is nil")
	}
}

func TestDecodeParamsFromMap(t *testing.T) {
	raw := map[string]interface{}{
		"agentId": "assistant",
		"message": "hello",
		"stream":  true,
	}
	var p chatSendParams
	if err := decodeParams(raw, &p); err != nil {
		t.Fatalf("decodeParams: %v", err)
	}
	if p.AgentID != "assistant" || p.Message != "hello" || !p.Stream {
		t.Fatalf("unexpected decode result: %+v", p)
	}
}

func TestDefaultAgentIDEmptyRouter(t *testing.T) {
	deps := Deps{Agents: agent.NewRouter()}
	if got := defaultAgentID(deps); got != "" {
		t.Fatalf("expected empty default agent ID, got %q", got)
	}
}
