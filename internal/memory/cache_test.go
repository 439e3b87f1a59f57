package memory

import "testing"

func TestEmbeddingCachePutGet(t *testing.T) {
	c := NewEmbeddingCache(10)
	c.Put("openai", "text-embedding-3-small", "hash1", []float32{1, 2, 3})

	v, ok := c.Get("openai", "text-embedding-3-small", "hash1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(v) != 3 || v[0] != 1 {
		t.Fatalf("unexpected cached vector: %v", v)
	}

	if _, ok := c.Get("openai", "text-embedding-3-small", "missing"); ok {
		t.Fatal("expected cache miss for unknown hash")
	}
}

func TestEmbeddingCacheEvictsLRU(t *testing.T) {
	c := NewEmbeddingCache(2)
	c.Put("p", "m", "a", []float32{1})
	c.Put("p", "m", "b", []float32{2})
	c.Put("p", "m", "c", []float32{3}) // evicts "a"

	if _, ok := c.Get("p", "m", "a"); ok {
		t.Fatal("expected oldest entry to be evicted")
	}
	if _, ok := c.Get("p", "m", "c"); !ok {
		t.Fatal("expected newest entry to remain cached")
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 entries after eviction, got %d", c.Len())
	}
}

func TestEmbeddingCachePutIsIdempotent(t *testing.T) {
	c := NewEmbeddingCache(10)
	c.Put("p", "m", "a", []float32{1})
	c.Put("p", "m", "a", []float32{9})

	v, ok := c.Get("p", "m", "a")
	if !ok || v[0] != 9 {
		t.Fatalf("expected re-put to overwrite, got %v", v)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", c.Len())
	}
}
