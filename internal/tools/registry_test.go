package tools

import (
	"context"
	"testing"
)

type echoTool struct{ name string }

func (e echoTool) Name() string        { return e.name }
func (e echoTool) Description() string { return "echoes its input" }
func (e echoTool) Parameters() map[string]interface{} {
	return map[string]interface{}{"type": "object"}
}
func (e echoTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	v, _ := args["text"].(string)
	return NewResult(v)
}

func TestRegistryRegisterGetList(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool{name: "echo"})
	r.Register(echoTool{name: "alpha"})

	if r.Count() != 2 {
		t.Fatalf("expected 2 tools, got %d", r.Count())
	}
	if _, ok := r.Get("echo"); !ok {
		t.Fatal("expected echo to be registered")
	}
	if _, ok := r.Get("missing"); ok {
		t.Fatal("expected missing tool to be absent")
	}

	names := r.List()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "echo" {
		t.Fatalf("expected sorted [alpha echo], got %v", names)
	}
}

func TestRegistryProviderDefsCarriesSchema(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool{name: "echo"})

	defs := r.ProviderDefs()
	if len(defs) != 1 {
		t.Fatalf("expected 1 definition, got %d", len(defs))
	}
	if defs[0].Function.Name != "echo" {
		t.Fatalf("unexpected tool name in definition: %q", defs[0].Function.Name)
	}
}

func TestRegistryExecuteWithContextUnknownTool(t *testing.T) {
	r := NewRegistry()
	result := r.ExecuteWithContext(context.Background(), "nope", nil, "", "", "", "", nil)
	if !result.IsError {
		t.Fatal("expected an error result for an unregistered tool")
	}
}

func TestRegistryExecuteWithContextRunsTool(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool{name: "echo"})
	result := r.ExecuteWithContext(context.Background(), "echo", map[string]interface{}{"text": "hi"}, "telegram", "chat1", "direct", "sess1", nil)
	if result.ForLLM != "hi" {
		t.Fatalf("expected echoed content, got %q", result.ForLLM)
	}
}

func TestRegistryScrubsCredentialsByDefault(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool{name: "echo"})
	secret := "sk-abcdefghijklmnopqrstuvwxyz123456"
	result := r.ExecuteWithContext(context.Background(), "echo", map[string]interface{}{"text": "key is " + secret}, "", "", "", "", nil)
	if result.ForLLM == "key is "+secret {
		t.Fatal("expected credential-shaped content to be scrubbed")
	}
}

func TestRegistrySetScrubbingDisables(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool{name: "echo"})
	r.SetScrubbing(false)
	secret := "sk-abcdefghijklmnopqrstuvwxyz123456"
	result := r.ExecuteWithContext(context.Background(), "echo", map[string]interface{}{"text": secret}, "", "", "", "", nil)
	if result.ForLLM != secret {
		t.Fatalf("expected scrubbing disabled to leave content untouched, got %q", result.ForLLM)
	}
}

func TestRegistryRateLimiterBlocksExcessCalls(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool{name: "echo"})
	r.SetRateLimiter(NewToolRateLimiter(1))

	first := r.ExecuteWithContext(context.Background(), "echo", map[string]interface{}{"text": "a"}, "", "", "", "sess1", nil)
	if first.IsError {
		t.Fatalf("expected first call to succeed, got error: %v", first.ForLLM)
	}
	second := r.ExecuteWithContext(context.Background(), "echo", map[string]interface{}{"text": "b"}, "", "", "", "sess1", nil)
	if !second.IsError {
		t.Fatal("expected second call within the same hour to be rate limited")
	}

	// A distinct session key has its own independent budget.
	other := r.ExecuteWithContext(context.Background(), "echo", map[string]interface{}{"text": "c"}, "", "", "", "sess2", nil)
	if other.IsError {
		t.Fatal("expected a distinct session key to have its own budget")
	}
}

func TestToProviderDefMapsFields(t *testing.T) {
	def := ToProviderDef(echoTool{name: "echo"})
	if def.Type != "function" || def.Function.Name != "echo" || def.Function.Description == "" {
		t.Fatalf("unexpected provider def: %+v", def)
	}
}
