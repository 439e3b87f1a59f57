package store

// Stores is the top-level container for the storage backends a standalone
// gateway process wires up. Sessions and Skills always have a file-backed
// implementation; Memory and Tracing are nil unless the optional Postgres
// backend (internal/store/pg) is configured.
type Stores struct {
	Sessions SessionStore
	Memory   MemoryStore
	Skills   SkillStore
	Tracing  TracingStore // nil unless Postgres is configured
}

// MemoryStore persists memory index chunks for semantic + keyword search.
// The default implementation lives in internal/memory; an optional
// Postgres-backed implementation lives in internal/store/pg.
type MemoryStore interface {
	UpsertChunk(path, contentHash, content string, embedding []float32) error
	DeleteByPath(path string) error
	Search(query string, embedding []float32, limit int) ([]MemoryHit, error)
}

// MemoryHit is one scored search result from a MemoryStore.
type MemoryHit struct {
	Path    string
	Content string
	Score   float64
}

// SkillStore tracks loaded skill metadata for CRUD tools and the gateway's
// skills.list RPC method.
type SkillStore interface {
	List() []SkillInfo
	Get(name string) (SkillInfo, bool)
}

// SkillInfo describes one loaded skill.
type SkillInfo struct {
	Name        string
	Description string
	Path        string
}
