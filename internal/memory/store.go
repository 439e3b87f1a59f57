// Package memory implements the Memory Index: a content-addressed chunk
// store with hybrid vector+keyword search, combining philippgille/chromem-go
// for the embedding half with a SQLite FTS5 virtual table for the keyword
// half. Chunks are keyed by (path, content_hash) so re-indexing unchanged
// content is a no-op.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/philippgille/chromem-go"

	_ "modernc.org/sqlite"

	"github.com/moltis/moltis/internal/store"
)

const collectionName = "chunks"

// Weights controls the hybrid-search blend between the vector and
// keyword indices; both default to 0.5 when zero-valued.
type Weights struct {
	Vector  float64
	Keyword float64
}

// Store is the concrete store.MemoryStore implementation backed by a
// chromem-go persistent vector collection and a SQLite FTS5 keyword
// index over the same chunk corpus.
type Store struct {
	vectors *chromem.Collection
	db      *sql.DB
	weights Weights
}

// noEmbed is the embeddingFunc handed to chromem-go: every chunk this
// store indexes already carries a precomputed embedding (from the
// caller's own provider call), so the collection is never asked to
// embed text itself.
func noEmbed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("memory: embeddings must be precomputed by the caller, got bare text %q", truncate(text, 40))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// NewStore opens (creating if absent) the vector collection and keyword
// index under dataDir, e.g. "<data_dir>/memory".
func NewStore(dataDir string, weights Weights) (*Store, error) {
	if weights.Vector == 0 && weights.Keyword == 0 {
		weights = Weights{Vector: 0.5, Keyword: 0.5}
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("memory: create data dir: %w", err)
	}

	vectorDB, err := chromem.NewPersistentDB(filepath.Join(dataDir, "vectors"), false)
	if err != nil {
		return nil, fmt.Errorf("memory: open vector db: %w", err)
	}
	coll, err := vectorDB.GetOrCreateCollection(collectionName, nil, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("memory: open vector collection: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dataDir, "keyword.db"))
	if err != nil {
		return nil, fmt.Errorf("memory: open keyword db: %w", err)
	}
	if _, err := db.Exec(`CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
		path UNINDEXED, content_hash UNINDEXED, content
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("memory: create fts5 table: %w", err)
	}

	return &Store{vectors: coll, db: db, weights: weights}, nil
}

// Close releases the SQLite handle. The chromem-go collection has no
// explicit close; it flushes to disk on every write.
func (s *Store) Close() error {
	return s.db.Close()
}

// chunkID derives a stable document/row ID from path + content hash so
// re-indexing unchanged content is a no-op overwrite rather than
// accumulating duplicate rows.
func chunkID(path, contentHash string) string {
	return path + "#" + contentHash
}

// UpsertChunk stores (or replaces) one chunk's embedding in the vector
// index and its text in the keyword index, keyed by (path, contentHash).
func (s *Store) UpsertChunk(path, contentHash, content string, embedding []float32) error {
	id := chunkID(path, contentHash)

	if len(embedding) > 0 {
		doc := chromem.Document{
			ID:        id,
			Content:   content,
			Embedding: embedding,
			Metadata: map[string]string{
				"path":         path,
				"content_hash": contentHash,
			},
		}
		if err := s.vectors.AddDocument(context.Background(), doc); err != nil {
			return fmt.Errorf("memory: upsert vector chunk: %w", err)
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("memory: begin keyword upsert: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM chunks_fts WHERE path = ? AND content_hash = ?`, path, contentHash); err != nil {
		tx.Rollback()
		return fmt.Errorf("memory: clear stale keyword row: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO chunks_fts (path, content_hash, content) VALUES (?, ?, ?)`, path, contentHash, content); err != nil {
		tx.Rollback()
		return fmt.Errorf("memory: insert keyword row: %w", err)
	}
	return tx.Commit()
}

// DeleteByPath removes every chunk indexed under path, from both indices.
func (s *Store) DeleteByPath(path string) error {
	if err := s.vectors.Delete(context.Background(), map[string]string{"path": path}, nil); err != nil {
		return fmt.Errorf("memory: delete vector chunks for %s: %w", path, err)
	}
	if _, err := s.db.Exec(`DELETE FROM chunks_fts WHERE path = ?`, path); err != nil {
		return fmt.Errorf("memory: delete keyword rows for %s: %w", path, err)
	}
	return nil
}

type scoredHit struct {
	path    string
	content string
	vecScore float64
	kwScore  float64
}

// Search runs the keyword index always, and additionally the vector
// index when an embedding is supplied, combining both with the
// configured weights (weighted sum of vec_score and kw_score). With no
// embedding, this degrades to keyword-only search.
func (s *Store) Search(query string, embedding []float32, limit int) ([]store.MemoryHit, error) {
	if limit <= 0 {
		limit = 10
	}

	hits := map[string]*scoredHit{}

	kw, err := s.keywordSearch(query, limit*2)
	if err != nil {
		return nil, err
	}
	for _, h := range kw {
		hits[h.path] = h
	}

	if len(embedding) > 0 {
		vec, err := s.vectorSearch(embedding, limit*2)
		if err != nil {
			return nil, err
		}
		for _, h := range vec {
			if existing, ok := hits[h.path]; ok {
				existing.vecScore = h.vecScore
				if existing.content == "" {
					existing.content = h.content
				}
			} else {
				hits[h.path] = h
			}
		}
	}

	results := make([]store.MemoryHit, 0, len(hits))
	for _, h := range hits {
		score := s.weights.Keyword*h.kwScore + s.weights.Vector*h.vecScore
		results = append(results, store.MemoryHit{Path: h.path, Content: h.content, Score: score})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// keywordSearch queries the FTS5 index and min-max normalizes bm25's
// internal rank into a [0, 1] score, where the most-negative rank (best
// match) maps to 1.0.
func (s *Store) keywordSearch(query string, limit int) ([]*scoredHit, error) {
	if query == "" {
		return nil, nil
	}

	rows, err := s.db.Query(
		`SELECT path, content, rank FROM chunks_fts WHERE chunks_fts MATCH ? ORDER BY rank LIMIT ?`,
		query, limit,
	)
	if err != nil {
		// FTS5 MATCH syntax errors (e.g. bare punctuation) degrade to no
		// results instead of failing the whole hybrid search.
		return nil, nil
	}
	defer rows.Close()

	type raw struct {
		path, content string
		rank          float64
	}
	var all []raw
	minRank := math.MaxFloat64
	maxRank := -math.MaxFloat64
	for rows.Next() {
		var r raw
		if err := rows.Scan(&r.path, &r.content, &r.rank); err != nil {
			continue
		}
		all = append(all, r)
		if r.rank < minRank {
			minRank = r.rank
		}
		if r.rank > maxRank {
			maxRank = r.rank
		}
	}

	out := make([]*scoredHit, 0, len(all))
	for _, r := range all {
		score := 1.0
		if maxRank > minRank {
			// rank is more negative for better matches; invert so the
			// minimum (best) rank normalizes to 1.0.
			score = 1 - (r.rank-minRank)/(maxRank-minRank)
		}
		out = append(out, &scoredHit{path: r.path, content: r.content, kwScore: score})
	}
	return out, nil
}

// vectorSearch loads the nearest chunks by cosine similarity against
// the query embedding via chromem-go's precomputed-embedding query path.
func (s *Store) vectorSearch(embedding []float32, limit int) ([]*scoredHit, error) {
	count := s.vectors.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	results, err := s.vectors.QueryEmbedding(context.Background(), embedding, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("memory: vector query: %w", err)
	}

	out := make([]*scoredHit, 0, len(results))
	for _, r := range results {
		out = append(out, &scoredHit{
			path:     r.Metadata["path"],
			content:  r.Content,
			vecScore: float64(r.Similarity),
		})
	}
	return out, nil
}

var _ store.MemoryStore = (*Store)(nil)
