package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	defaultChunkSize    = 1500 // bytes
	defaultChunkOverlap = 200  // bytes
)

// ContentHash returns the content-addressing hash used as the second
// half of a chunk's (path, content_hash) key.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Chunk is one fixed-size, overlapping slice of a source file's text.
type Chunk struct {
	Content string
	Hash    string
}

// ChunkText splits text into overlapping chunks of approximately
// defaultChunkSize bytes, breaking on paragraph boundaries where
// possible so a chunk doesn't split mid-sentence when avoidable.
func ChunkText(text string) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= defaultChunkSize {
		return []Chunk{{Content: text, Hash: ContentHash(text)}}
	}

	paragraphs := strings.Split(text, "\n\n")
	var chunks []Chunk
	var buf strings.Builder

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		content := strings.TrimSpace(buf.String())
		chunks = append(chunks, Chunk{Content: content, Hash: ContentHash(content)})
		buf.Reset()
	}

	for _, p := range paragraphs {
		if buf.Len()+len(p) > defaultChunkSize && buf.Len() > 0 {
			flush()
			// carry the configured overlap forward from the previous
			// chunk so search queries spanning a boundary still match.
			if len(chunks) > 0 {
				prev := chunks[len(chunks)-1].Content
				if len(prev) > defaultChunkOverlap {
					buf.WriteString(prev[len(prev)-defaultChunkOverlap:])
					buf.WriteString("\n\n")
				}
			}
		}
		buf.WriteString(p)
		buf.WriteString("\n\n")
	}
	flush()

	return chunks
}
