package tools

import (
	"context"
	"testing"

	"github.com/moltis/moltis/internal/store"
)

type fakeMemoryStore struct {
	hits []store.MemoryHit
	err  error
}

func (f *fakeMemoryStore) UpsertChunk(path, contentHash, content string, embedding []float32) error {
	return nil
}
func (f *fakeMemoryStore) DeleteByPath(path string) error { return nil }
func (f *fakeMemoryStore) Search(query string, embedding []float32, limit int) ([]store.MemoryHit, error) {
	return f.hits, f.err
}

func TestMemorySearchToolReturnsHits(t *testing.T) {
	mem := &fakeMemoryStore{hits: []store.MemoryHit{{Path: "notes/a.md", Content: "hello", Score: 0.9}}}
	tool := NewMemorySearchTool(mem)

	result := tool.Execute(context.Background(), map[string]interface{}{"query": "hello"})
	if result.IsError {
		t.Fatalf("expected search to succeed, got error: %s", result.ForLLM)
	}
	if result.ForLLM == "" {
		t.Fatal("expected non-empty search output")
	}
}

func TestMemorySearchToolRequiresQuery(t *testing.T) {
	tool := NewMemorySearchTool(&fakeMemoryStore{})
	result := tool.Execute(context.Background(), map[string]interface{}{})
	if !result.IsError {
		t.Fatal("expected missing query to error")
	}
}

func TestMemorySearchToolNoBackend(t *testing.T) {
	tool := NewMemorySearchTool(nil)
	result := tool.Execute(context.Background(), map[string]interface{}{"query": "x"})
	if !result.IsError {
		t.Fatal("expected nil memory store to error")
	}
}

func TestMemoryGetToolReturnsExactPathMatch(t *testing.T) {
	mem := &fakeMemoryStore{hits: []store.MemoryHit{
		{Path: "notes/other.md", Content: "nope"},
		{Path: "notes/a.md", Content: "the content"},
	}}
	tool := NewMemoryGetTool(mem)

	result := tool.Execute(context.Background(), map[string]interface{}{"path": "notes/a.md"})
	if result.IsError {
		t.Fatalf("expected get to succeed, got error: %s", result.ForLLM)
	}
	if result.ForLLM != "the content" {
		t.Fatalf("unexpected content: %q", result.ForLLM)
	}
}

func TestMemoryGetToolNoMatch(t *testing.T) {
	mem := &fakeMemoryStore{hits: []store.MemoryHit{{Path: "notes/other.md", Content: "nope"}}}
	tool := NewMemoryGetTool(mem)

	result := tool.Execute(context.Background(), map[string]interface{}{"path": "notes/missing.md"})
	if !result.IsError {
		t.Fatal("expected no exact match to error")
	}
}
