package tools

import (
	"context"
	"testing"
)

func TestBrowserToolSchema(t *testing.T) {
	bt := NewBrowserTool(true)
	if bt.Name() != "browser" {
		t.Fatalf("unexpected name: %s", bt.Name())
	}
	params := bt.Parameters()
	props, ok := params["properties"].(map[string]interface{})
	if !ok {
		t.Fatal("expected properties map")
	}
	for _, key := range []string{"action", "url", "ref", "text", "script", "selector"} {
		if _, ok := props[key]; !ok {
			t.Fatalf("expected parameter %q in schema", key)
		}
	}
}

func TestBrowserToolRequiresAction(t *testing.T) {
	bt := NewBrowserTool(true)
	res := bt.Execute(context.Background(), map[string]interface{}{})
	if !res.IsError {
		t.Fatal("expected error when action is missing")
	}
}

func TestBrowserToolUnknownActionSurfacesFromSession(t *testing.T) {
	bt := NewBrowserTool(true)
	// With no Chrome binary available in the test environment, launching a
	// session fails gracefully as an error Result rather than panicking.
	res := bt.Execute(context.Background(), map[string]interface{}{"action": "bogus"})
	if !res.IsError {
		t.Fatal("expected an error Result (either launch failure or unknown action)")
	}
}

func TestSessionKeyForPrefersSandboxKey(t *testing.T) {
	ctx := WithToolSandboxKey(context.Background(), "sandbox-1")
	ctx = WithToolAgentKey(ctx, "agent-1")
	if got := sessionKeyFor(ctx); got != "sandbox-1" {
		t.Fatalf("expected sandbox key to win, got %s", got)
	}
}

func TestSessionKeyForFallsBackToAgentKey(t *testing.T) {
	ctx := WithToolAgentKey(context.Background(), "agent-1")
	if got := sessionKeyFor(ctx); got != "agent-1" {
		t.Fatalf("expected agent key fallback, got %s", got)
	}
}

func TestSessionKeyForDefaultsWhenNeitherSet(t *testing.T) {
	if got := sessionKeyFor(context.Background()); got != "default" {
		t.Fatalf("expected default fallback, got %s", got)
	}
}
