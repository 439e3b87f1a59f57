package memory

import (
	"testing"
)

func TestUpsertAndKeywordSearch(t *testing.T) {
	st, err := NewStore(t.TempDir(), Weights{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer st.Close()

	if err := st.UpsertChunk("notes/a.md", ContentHash("the quick brown fox"), "the quick brown fox", nil); err != nil {
		t.Fatalf("UpsertChunk: %v", err)
	}
	if err := st.UpsertChunk("notes/b.md", ContentHash("a lazy dog sleeps"), "a lazy dog sleeps", nil); err != nil {
		t.Fatalf("UpsertChunk: %v", err)
	}

	hits, err := st.Search("fox", nil, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Path != "notes/a.md" {
		t.Fatalf("unexpected hits: %+v", hits)
	}
}

func TestDeleteByPathRemovesChunk(t *testing.T) {
	st, err := NewStore(t.TempDir(), Weights{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer st.Close()

	st.UpsertChunk("notes/a.md", ContentHash("hello world"), "hello world", nil)
	if err := st.DeleteByPath("notes/a.md"); err != nil {
		t.Fatalf("DeleteByPath: %v", err)
	}

	hits, err := st.Search("hello", nil, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits after delete, got %+v", hits)
	}
}

func TestSearchWithEmbeddingUsesHybridWeights(t *testing.T) {
	st, err := NewStore(t.TempDir(), Weights{Vector: 0.7, Keyword: 0.3})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer st.Close()

	vecA := []float32{1, 0, 0}
	vecB := []float32{0, 1, 0}
	st.UpsertChunk("a.md", ContentHash("alpha content"), "alpha content", vecA)
	st.UpsertChunk("b.md", ContentHash("beta content"), "beta content", vecB)

	hits, err := st.Search("content", vecA, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Path != "a.md" {
		t.Fatalf("expected closest vector match first, got %+v", hits)
	}
}

func TestSearchEmptyStoreReturnsNoResults(t *testing.T) {
	st, err := NewStore(t.TempDir(), Weights{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer st.Close()

	hits, err := st.Search("anything", nil, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits on empty store, got %+v", hits)
	}
}
