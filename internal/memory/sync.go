package memory

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EmbedFunc computes the embedding vector for one chunk of text, using
// whatever provider/model the caller configured for memory indexing.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// Syncer watches a directory of memory source files and incrementally
// re-indexes them into a Store: on create/write it recomputes the file's
// content hash, skips if unchanged, otherwise deletes the file's prior
// chunks and re-chunks + re-embeds; on remove it deletes the file's
// chunks outright. Grounded on internal/skills/watcher.go's fsnotify +
// debounce pattern.
type Syncer struct {
	store    *Store
	embed    EmbedFunc
	cache    *EmbeddingCache
	provider string
	model    string

	root string
	fsw  *fsnotify.Watcher

	mu         sync.Mutex
	fileHashes map[string]string
}

// NewSyncer creates a Syncer rooted at dir. embed computes embeddings for
// new or changed chunks; cache may be nil to skip embedding reuse.
func NewSyncer(st *Store, dir string, embed EmbedFunc, cache *EmbeddingCache, provider, model string) (*Syncer, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		fsw.Close()
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		slog.Debug("memory sync: directory not watchable yet", "dir", dir, "error", err)
	}

	return &Syncer{
		store:      st,
		embed:      embed,
		cache:      cache,
		provider:   provider,
		model:      model,
		root:       dir,
		fsw:        fsw,
		fileHashes: make(map[string]string),
	}, nil
}

// SyncAll walks the root directory once, indexing every file — used on
// startup before the fsnotify loop takes over for incremental updates.
func (s *Syncer) SyncAll(ctx context.Context) error {
	return filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d == nil || d.IsDir() {
			return nil
		}
		return s.syncFile(ctx, path)
	})
}

// Start begins watching for filesystem changes, debounced 500ms per
// path so editor saves (write-then-chmod-then-write) produce one sync.
func (s *Syncer) Start(ctx context.Context) {
	go func() {
		timers := map[string]*time.Timer{}
		var mu sync.Mutex

		schedule := func(path string) {
			mu.Lock()
			defer mu.Unlock()
			if t, ok := timers[path]; ok {
				t.Stop()
			}
			timers[path] = time.AfterFunc(500*time.Millisecond, func() {
				if err := s.syncFile(ctx, path); err != nil {
					slog.Warn("memory sync: failed to index file", "path", path, "error", err)
				}
			})
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-s.fsw.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
					if err := s.store.DeleteByPath(ev.Name); err != nil {
						slog.Warn("memory sync: failed to remove deleted file", "path", ev.Name, "error", err)
					}
					s.mu.Lock()
					delete(s.fileHashes, ev.Name)
					s.mu.Unlock()
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					schedule(ev.Name)
				}
			case err, ok := <-s.fsw.Errors:
				if !ok {
					return
				}
				slog.Warn("memory sync watcher error", "error", err)
			}
		}
	}()
}

func (s *Syncer) Stop() {
	s.fsw.Close()
}

// syncFile recomputes (path, hash); if unchanged, skips entirely; if
// changed, deletes the file's prior chunks, re-chunks, and re-embeds.
func (s *Syncer) syncFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	hash := ContentHash(string(data))

	s.mu.Lock()
	prev, seen := s.fileHashes[path]
	s.mu.Unlock()
	if seen && prev == hash {
		return nil // unchanged, skip
	}

	if err := s.store.DeleteByPath(path); err != nil {
		return err
	}

	for _, chunk := range ChunkText(string(data)) {
		embedding, err := s.embedChunk(ctx, chunk)
		if err != nil {
			slog.Warn("memory sync: embedding failed, indexing keyword-only", "path", path, "error", err)
			embedding = nil
		}
		if err := s.store.UpsertChunk(path, chunk.Hash, chunk.Content, embedding); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.fileHashes[path] = hash
	s.mu.Unlock()
	return nil
}

func (s *Syncer) embedChunk(ctx context.Context, chunk Chunk) ([]float32, error) {
	if s.embed == nil {
		return nil, nil
	}
	if s.cache != nil {
		if v, ok := s.cache.Get(s.provider, s.model, chunk.Hash); ok {
			return v, nil
		}
	}
	v, err := s.embed(ctx, chunk.Content)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Put(s.provider, s.model, chunk.Hash, v)
	}
	return v, nil
}
