package providers

import "testing"

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(NewOpenAIProvider("openrouter", "key", "", "some-model"))

	p, err := r.Get("openrouter")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Name() != "openrouter" {
		t.Fatalf("expected openrouter, got %q", p.Name())
	}
}

func TestRegistryGetMissing(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("nope"); err == nil {
		t.Fatal("expected error for unregistered provider")
	}
}

func TestRegistryNames(t *testing.T) {
	r := NewRegistry()
	r.Register(NewOpenAIProvider("groq", "key", "", "some-model"))
	r.Register(NewOpenAIProvider("deepseek", "key", "", "some-model"))

	names := r.Names()
	if len(names) != 2 {
		t.Fatalf("expected 2 names, got %d", len(names))
	}
}
