package memory

import "testing"

func TestChunkTextShortContentIsOneChunk(t *testing.T) {
	chunks := ChunkText("hello world")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Hash != ContentHash("hello world") {
		t.Fatal("expected chunk hash to match content hash")
	}
}

func TestChunkTextEmptyReturnsNil(t *testing.T) {
	if chunks := ChunkText("   "); chunks != nil {
		t.Fatalf("expected nil for blank content, got %+v", chunks)
	}
}

func TestChunkTextLongContentSplitsIntoMultipleChunks(t *testing.T) {
	var long string
	for i := 0; i < 50; i++ {
		long += "This is a reasonably long paragraph of text used to exercise chunking behavior across boundaries.\n\n"
	}

	chunks := ChunkText(long)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks for long content, got %d", len(chunks))
	}
	for _, c := range chunks {
		if c.Hash != ContentHash(c.Content) {
			t.Fatal("expected each chunk's hash to match its own content")
		}
	}
}
