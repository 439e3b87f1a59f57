package sessions

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/moltis/moltis/internal/filelock"
	"github.com/moltis/moltis/internal/providers"
)

// Session stores conversation history for one agent+scope combination. The
// message log itself lives on disk as an append-only JSONL file; Messages
// here is an in-memory cache of that file's contents.
type Session struct {
	Key      string              `json:"key"`       // agent:{agentId}:{sessionKey}
	Messages []providers.Message `json:"messages"`
	Summary  string              `json:"summary,omitempty"`
	Created  time.Time           `json:"created"`
	Updated  time.Time           `json:"updated"`

	// Metadata
	Model                      string `json:"model,omitempty"`
	Provider                   string `json:"provider,omitempty"`
	Channel                    string `json:"channel,omitempty"`
	InputTokens                int64  `json:"inputTokens,omitempty"`
	OutputTokens               int64  `json:"outputTokens,omitempty"`
	CompactionCount            int    `json:"compactionCount,omitempty"`
	MemoryFlushCompactionCount int    `json:"memoryFlushCompactionCount,omitempty"`
	MemoryFlushAt              int64  `json:"memoryFlushAt,omitempty"` // unix ms
	Label                      string `json:"label,omitempty"`
	SpawnedBy                  string `json:"spawnedBy,omitempty"`
	SpawnDepth                 int    `json:"spawnDepth,omitempty"`

	ContextWindow    int `json:"contextWindow,omitempty"`
	LastPromptTokens int `json:"lastPromptTokens,omitempty"`
	LastMessageCount int `json:"lastMessageCount,omitempty"`
}

// Manager handles session lifecycle, persistence, and lookup. Conversation
// history is append-only JSONL on disk (one message object per line,
// written through an exclusive file lock); Session.Messages is a read
// cache rebuilt from that file on first access. Metadata that is not part
// of the message log (summary, token counters, labels, ...) lives in a
// small sidecar file written with the older snapshot-then-rename style,
// since it isn't conversation data and the one-message-per-line invariant
// doesn't apply to it.
type Manager struct {
	sessions map[string]*Session
	locks    map[string]*filelock.FileLock
	mu       sync.RWMutex
	storage  string
}

func NewManager(storage string) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		locks:    make(map[string]*filelock.FileLock),
		storage:  storage,
	}
	if storage != "" {
		os.MkdirAll(storage, 0755)
		os.MkdirAll(filepath.Join(storage, "media"), 0755)
		m.loadAll()
	}
	return m
}

// SessionKey builds a composite session key: agent:{agentId}:{scopeKey}
func SessionKey(agentID, scopeKey string) string {
	return fmt.Sprintf("agent:%s:%s", agentID, scopeKey)
}

func (m *Manager) lockFor(key string) *filelock.FileLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = filelock.New(m.logPath(key))
		m.locks[key] = l
	}
	return l
}

func (m *Manager) logPath(key string) string {
	return filepath.Join(m.storage, sanitizeFilename(key)+".jsonl")
}

func (m *Manager) metaPath(key string) string {
	return filepath.Join(m.storage, sanitizeFilename(key)+".meta.json")
}

// GetOrCreate returns an existing session or creates a new one.
func (m *Manager) GetOrCreate(key string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[key]; ok {
		return s
	}

	s := &Session{
		Key:      key,
		Messages: []providers.Message{},
		Created:  time.Now(),
		Updated:  time.Now(),
	}
	m.sessions[key] = s
	return s
}

// AddMessage appends a message to a session, both in the in-memory cache
// and durably on disk via append (exclusive file lock, one JSON line).
func (m *Manager) AddMessage(key string, msg providers.Message) {
	m.mu.Lock()
	s, ok := m.sessions[key]
	if !ok {
		s = &Session{
			Key:      key,
			Messages: []providers.Message{},
			Created:  time.Now(),
		}
		m.sessions[key] = s
	}
	s.Messages = append(s.Messages, msg)
	s.Updated = time.Now()
	m.mu.Unlock()

	if m.storage != "" {
		if err := m.append(key, msg); err != nil {
			log.Printf("sessions: append %s: %v", key, err)
		}
	}
}

// append writes one message as a single JSON line to the session's log
// file, holding an exclusive lock for the duration of the write.
func (m *Manager) append(key string, msg providers.Message) error {
	lock := m.lockFor(key)
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()

	f, err := os.OpenFile(m.logPath(key), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	line, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

// GetHistory returns a copy of the message history.
func (m *Manager) GetHistory(key string) []providers.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[key]
	if !ok {
		return nil
	}

	msgs := make([]providers.Message, len(s.Messages))
	copy(msgs, s.Messages)
	return msgs
}

// ReadLastN returns at most the last n messages of a session's log,
// reading from disk (not the in-memory cache) so it reflects concurrent
// writers from other processes. Malformed lines are skipped with a
// warning, never fatal.
func (m *Manager) ReadLastN(key string, n int) []providers.Message {
	all := m.readAll(key)
	if n <= 0 || len(all) <= n {
		return all
	}
	return all[len(all)-n:]
}

// readAll parses every line of a session's log file. Malformed lines are
// skipped with a warning rather than aborting the read.
func (m *Manager) readAll(key string) []providers.Message {
	if m.storage == "" {
		return nil
	}
	f, err := os.Open(m.logPath(key))
	if err != nil {
		return nil
	}
	defer f.Close()

	var msgs []providers.Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var msg providers.Message
		if err := json.Unmarshal(line, &msg); err != nil {
			log.Printf("sessions: skipping malformed line %d in %s: %v", lineNo, key, err)
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

// ReplaceHistory truncates a session's log and rewrites it from scratch
// with the given messages, under the same exclusive lock used by append.
func (m *Manager) ReplaceHistory(key string, messages []providers.Message) error {
	m.mu.Lock()
	if s, ok := m.sessions[key]; ok {
		s.Messages = append([]providers.Message{}, messages...)
		s.Updated = time.Now()
	} else {
		m.sessions[key] = &Session{Key: key, Messages: append([]providers.Message{}, messages...), Created: time.Now(), Updated: time.Now()}
	}
	m.mu.Unlock()

	if m.storage == "" {
		return nil
	}

	lock := m.lockFor(key)
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()

	f, err := os.OpenFile(m.logPath(key), os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, msg := range messages {
		line, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

// SearchResult is one hit from Search.
type SearchResult struct {
	SessionKey   string `json:"session_key"`
	Role         string `json:"role"`
	Snippet      string `json:"snippet"`
	MessageIndex int    `json:"message_index"`
}

// Search performs a case-insensitive substring scan across every session's
// log file, returning at most one hit per session (to support
// autocomplete), with a snippet window of 40 bytes before and 60 bytes
// after the first match.
func (m *Manager) Search(query string, maxResults int) []SearchResult {
	if m.storage == "" || query == "" {
		return nil
	}
	needle := strings.ToLower(query)

	files, err := os.ReadDir(m.storage)
	if err != nil {
		return nil
	}

	var results []SearchResult
	for _, f := range files {
		if maxResults > 0 && len(results) >= maxResults {
			break
		}
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".jsonl") {
			continue
		}
		key := strings.TrimSuffix(f.Name(), ".jsonl")
		key = strings.ReplaceAll(key, "_", ":")

		msgs := m.readAll(key)
		for i, msg := range msgs {
			idx := strings.Index(strings.ToLower(msg.Content), needle)
			if idx < 0 {
				continue
			}
			results = append(results, SearchResult{
				SessionKey:   key,
				Role:         msg.Role,
				Snippet:      snippetWindow(msg.Content, idx, len(query)),
				MessageIndex: i,
			})
			break // at most one hit per session
		}
	}
	return results
}

// snippetWindow extracts up to 40 bytes before and 60 bytes after the
// match starting at idx (length matchLen) within content.
func snippetWindow(content string, idx, matchLen int) string {
	start := idx - 40
	if start < 0 {
		start = 0
	}
	end := idx + matchLen + 60
	if end > len(content) {
		end = len(content)
	}
	return content[start:end]
}

// SaveMedia writes a media blob under the sanitized session key's media
// directory and returns the stored path.
func (m *Manager) SaveMedia(key, name string, data []byte) (string, error) {
	if m.storage == "" {
		return "", fmt.Errorf("sessions: no storage directory configured")
	}
	dir := filepath.Join(m.storage, "media", sanitizeFilename(key))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	safeName := sanitizeFilename(name)
	path := filepath.Join(dir, safeName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// ReadMedia reads a previously saved media blob for a session.
func (m *Manager) ReadMedia(key, name string) ([]byte, error) {
	if m.storage == "" {
		return nil, fmt.Errorf("sessions: no storage directory configured")
	}
	path := filepath.Join(m.storage, "media", sanitizeFilename(key), sanitizeFilename(name))
	return os.ReadFile(path)
}

// GetSummary returns the session summary.
func (m *Manager) GetSummary(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[key]; ok {
		return s.Summary
	}
	return ""
}

// SetSummary updates the session summary.
func (m *Manager) SetSummary(key, summary string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[key]; ok {
		s.Summary = summary
		s.Updated = time.Now()
	}
}

// SetLabel updates the session label.
func (m *Manager) SetLabel(key, label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[key]; ok {
		s.Label = label
		s.Updated = time.Now()
	}
}

// UpdateMetadata sets model/provider/channel metadata on a session.
func (m *Manager) UpdateMetadata(key, model, provider, channel string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[key]; ok {
		if model != "" {
			s.Model = model
		}
		if provider != "" {
			s.Provider = provider
		}
		if channel != "" {
			s.Channel = channel
		}
	}
}

// AccumulateTokens adds token counts from a completed run.
func (m *Manager) AccumulateTokens(key string, inputTokens, outputTokens int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[key]; ok {
		s.InputTokens += inputTokens
		s.OutputTokens += outputTokens
	}
}

// IncrementCompaction bumps the compaction counter after summarization.
func (m *Manager) IncrementCompaction(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[key]; ok {
		s.CompactionCount++
	}
}

// GetCompactionCount returns the current compaction count for a session.
func (m *Manager) GetCompactionCount(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[key]; ok {
		return s.CompactionCount
	}
	return 0
}

// GetMemoryFlushCompactionCount returns the compaction count at which memory flush last ran.
func (m *Manager) GetMemoryFlushCompactionCount(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[key]; ok {
		return s.MemoryFlushCompactionCount
	}
	return -1 // never flushed
}

// SetMemoryFlushDone records that memory flush completed at the current compaction count.
func (m *Manager) SetMemoryFlushDone(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[key]; ok {
		s.MemoryFlushCompactionCount = s.CompactionCount
		s.MemoryFlushAt = time.Now().UnixMilli()
	}
}

// SetSpawnInfo sets subagent origin metadata on a session.
func (m *Manager) SetSpawnInfo(key, spawnedBy string, depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[key]; ok {
		s.SpawnedBy = spawnedBy
		s.SpawnDepth = depth
	}
}

// SetContextWindow caches the agent's context window on the session.
func (m *Manager) SetContextWindow(key string, cw int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[key]; ok {
		s.ContextWindow = cw
	}
}

// GetContextWindow returns the cached context window for a session (0 if unset).
func (m *Manager) GetContextWindow(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[key]; ok {
		return s.ContextWindow
	}
	return 0
}

// SetLastPromptTokens records actual prompt tokens from the last LLM response.
func (m *Manager) SetLastPromptTokens(key string, tokens, msgCount int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[key]; ok {
		s.LastPromptTokens = tokens
		s.LastMessageCount = msgCount
	}
}

// GetLastPromptTokens returns the last known prompt tokens and message count.
func (m *Manager) GetLastPromptTokens(key string) (int, int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[key]; ok {
		return s.LastPromptTokens, s.LastMessageCount
	}
	return 0, 0
}

// TruncateHistory keeps only the last N messages, rewriting the on-disk
// log to match (replace_history semantics).
func (m *Manager) TruncateHistory(key string, keepLast int) {
	m.mu.Lock()
	s, ok := m.sessions[key]
	if !ok {
		m.mu.Unlock()
		return
	}
	if keepLast <= 0 {
		s.Messages = []providers.Message{}
	} else if len(s.Messages) > keepLast {
		s.Messages = s.Messages[len(s.Messages)-keepLast:]
	}
	s.Updated = time.Now()
	kept := append([]providers.Message{}, s.Messages...)
	m.mu.Unlock()

	if m.storage != "" {
		if err := m.ReplaceHistory(key, kept); err != nil {
			log.Printf("sessions: truncate %s: %v", key, err)
		}
	}
}

// Reset clears a session's history and summary, both in-memory and on
// disk (the log file is truncated to empty, not deleted).
func (m *Manager) Reset(key string) {
	m.mu.Lock()
	s, ok := m.sessions[key]
	if ok {
		s.Messages = []providers.Message{}
		s.Summary = ""
		s.Updated = time.Now()
	}
	m.mu.Unlock()

	if ok && m.storage != "" {
		if err := m.ReplaceHistory(key, nil); err != nil {
			log.Printf("sessions: reset %s: %v", key, err)
		}
	}
}

// Delete removes a session entirely, including its log file, metadata
// sidecar, and any saved media.
func (m *Manager) Delete(key string) error {
	m.mu.Lock()
	delete(m.sessions, key)
	delete(m.locks, key)
	m.mu.Unlock()

	if m.storage == "" {
		return nil
	}

	var firstErr error
	for _, path := range []string{m.logPath(key), m.metaPath(key)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	mediaDir := filepath.Join(m.storage, "media", sanitizeFilename(key))
	if err := os.RemoveAll(mediaDir); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// List returns metadata for all sessions, optionally filtered by agent ID.
func (m *Manager) List(agentID string) []SessionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []SessionInfo
	prefix := ""
	if agentID != "" {
		prefix = "agent:" + agentID + ":"
	}

	for key, s := range m.sessions {
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			continue
		}
		result = append(result, SessionInfo{
			Key:          key,
			MessageCount: len(s.Messages),
			Created:      s.Created,
			Updated:      s.Updated,
		})
	}
	return result
}

// LastUsedChannel finds the most recently updated channel session for an agent
// and extracts channel + chatID from the key. Returns ("", "") if none found.
// Used for heartbeat delivery target resolution (target="last").
func (m *Manager) LastUsedChannel(agentID string) (channel, chatID string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := "agent:" + agentID + ":"
	var bestKey string
	var bestUpdated time.Time

	for key, s := range m.sessions {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		// Skip non-channel sessions (cron, subagent, heartbeat)
		rest := key[len(prefix):]
		if strings.HasPrefix(rest, "cron:") || strings.HasPrefix(rest, "subagent:") || strings.HasPrefix(rest, "heartbeat:") {
			continue
		}
		if s.Updated.After(bestUpdated) {
			bestUpdated = s.Updated
			bestKey = key
		}
	}

	if bestKey == "" {
		return "", ""
	}

	// Parse: agent:{agentId}:{channel}:{peerKind}:{chatId}
	parts := strings.SplitN(bestKey, ":", 5)
	if len(parts) >= 5 {
		return parts[2], parts[4]
	}
	return "", ""
}

// SessionInfo is a lightweight session descriptor for listing.
type SessionInfo struct {
	Key          string    `json:"key"`
	MessageCount int       `json:"messageCount"`
	Created      time.Time `json:"created"`
	Updated      time.Time `json:"updated"`
}

// sessionMeta is the sidecar snapshot of everything about a session that
// isn't conversation history (which lives append-only in the .jsonl log).
type sessionMeta struct {
	Key                        string `json:"key"`
	Summary                    string `json:"summary,omitempty"`
	Created                    time.Time `json:"created"`
	Updated                    time.Time `json:"updated"`
	Model                      string `json:"model,omitempty"`
	Provider                   string `json:"provider,omitempty"`
	Channel                    string `json:"channel,omitempty"`
	InputTokens                int64  `json:"inputTokens,omitempty"`
	OutputTokens               int64  `json:"outputTokens,omitempty"`
	CompactionCount            int    `json:"compactionCount,omitempty"`
	MemoryFlushCompactionCount int    `json:"memoryFlushCompactionCount,omitempty"`
	MemoryFlushAt              int64  `json:"memoryFlushAt,omitempty"`
	Label                      string `json:"label,omitempty"`
	SpawnedBy                  string `json:"spawnedBy,omitempty"`
	SpawnDepth                 int    `json:"spawnDepth,omitempty"`
	ContextWindow              int    `json:"contextWindow,omitempty"`
	LastPromptTokens           int    `json:"lastPromptTokens,omitempty"`
	LastMessageCount           int    `json:"lastMessageCount,omitempty"`
}

// Save persists a session's metadata sidecar atomically (temp file +
// rename). The message log itself is already durable: every AddMessage
// call appends to it directly under a file lock.
func (m *Manager) Save(key string) error {
	if m.storage == "" {
		return nil
	}

	m.mu.RLock()
	s, ok := m.sessions[key]
	if !ok {
		m.mu.RUnlock()
		return nil
	}
	meta := sessionMeta{
		Key:                        s.Key,
		Summary:                    s.Summary,
		Created:                    s.Created,
		Updated:                    s.Updated,
		Model:                      s.Model,
		Provider:                   s.Provider,
		Channel:                    s.Channel,
		InputTokens:                s.InputTokens,
		OutputTokens:               s.OutputTokens,
		CompactionCount:            s.CompactionCount,
		MemoryFlushCompactionCount: s.MemoryFlushCompactionCount,
		MemoryFlushAt:              s.MemoryFlushAt,
		Label:                      s.Label,
		SpawnedBy:                  s.SpawnedBy,
		SpawnDepth:                 s.SpawnDepth,
		ContextWindow:              s.ContextWindow,
		LastPromptTokens:           s.LastPromptTokens,
		LastMessageCount:           s.LastMessageCount,
	}
	m.mu.RUnlock()

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}

	filename := sanitizeFilename(key)
	if filename == "." || !filepath.IsLocal(filename) || strings.ContainsAny(filename, `/\`) {
		return os.ErrInvalid
	}

	tmpFile, err := os.CreateTemp(m.storage, "session-meta-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return err
	}
	tmpFile.Close()

	if err := os.Rename(tmpPath, m.metaPath(key)); err != nil {
		return err
	}
	cleanup = false
	return nil
}

// loadAll rebuilds the in-memory session cache from the metadata sidecars
// and JSONL logs on disk.
func (m *Manager) loadAll() {
	files, err := os.ReadDir(m.storage)
	if err != nil {
		return
	}

	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".meta.json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(m.storage, f.Name()))
		if err != nil {
			continue
		}

		var meta sessionMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}

		s := &Session{
			Key:                        meta.Key,
			Summary:                    meta.Summary,
			Created:                    meta.Created,
			Updated:                    meta.Updated,
			Model:                      meta.Model,
			Provider:                   meta.Provider,
			Channel:                    meta.Channel,
			InputTokens:                meta.InputTokens,
			OutputTokens:               meta.OutputTokens,
			CompactionCount:            meta.CompactionCount,
			MemoryFlushCompactionCount: meta.MemoryFlushCompactionCount,
			MemoryFlushAt:              meta.MemoryFlushAt,
			Label:                      meta.Label,
			SpawnedBy:                  meta.SpawnedBy,
			SpawnDepth:                 meta.SpawnDepth,
			ContextWindow:              meta.ContextWindow,
			LastPromptTokens:           meta.LastPromptTokens,
			LastMessageCount:           meta.LastMessageCount,
			Messages:                   m.readAll(meta.Key),
		}
		if s.Messages == nil {
			s.Messages = []providers.Message{}
		}
		m.sessions[s.Key] = s
	}

	// Pick up any session that has a log file but never got a metadata
	// sidecar written yet (e.g. process crashed after the first append).
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".jsonl") {
			continue
		}
		key := strings.ReplaceAll(strings.TrimSuffix(f.Name(), ".jsonl"), "_", ":")
		if _, ok := m.sessions[key]; ok {
			continue
		}
		msgs := m.readAll(key)
		if msgs == nil {
			msgs = []providers.Message{}
		}
		now := time.Now()
		if info, err := f.Info(); err == nil {
			now = info.ModTime()
		}
		m.sessions[key] = &Session{Key: key, Messages: msgs, Created: now, Updated: now}
	}
}

func sanitizeFilename(key string) string {
	return strings.ReplaceAll(key, ":", "_")
}
