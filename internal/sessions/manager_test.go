package sessions

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"

	"github.com/moltis/moltis/internal/providers"
)

func TestAddMessageAppendsOneJSONLinePerMessage(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)
	key := "agent:default:telegram:direct:1"

	m.AddMessage(key, providers.Message{Role: "user", Content: "hello"})
	m.AddMessage(key, providers.Message{Role: "assistant", Content: "hi there"})

	f, err := os.Open(filepath.Join(dir, "agent_default_telegram_direct_1.jsonl"))
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lines := 0
	for scanner.Scan() {
		lines++
	}
	if lines != 2 {
		t.Fatalf("expected 2 lines, got %d", lines)
	}
}

func TestReadLastN(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)
	key := "agent:default:cron:job:run:1"

	for i := 0; i < 5; i++ {
		m.AddMessage(key, providers.Message{Role: "user", Content: "msg"})
	}

	last := m.ReadLastN(key, 2)
	if len(last) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(last))
	}
}

func TestReplaceHistoryTruncatesAndRewrites(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)
	key := "agent:default:subagent:worker"

	m.AddMessage(key, providers.Message{Role: "user", Content: "one"})
	m.AddMessage(key, providers.Message{Role: "user", Content: "two"})

	if err := m.ReplaceHistory(key, []providers.Message{{Role: "user", Content: "replaced"}}); err != nil {
		t.Fatalf("ReplaceHistory: %v", err)
	}

	history := m.GetHistory(key)
	if len(history) != 1 || history[0].Content != "replaced" {
		t.Fatalf("unexpected history after replace: %+v", history)
	}

	onDisk := m.ReadLastN(key, 10)
	if len(onDisk) != 1 || onDisk[0].Content != "replaced" {
		t.Fatalf("unexpected on-disk log after replace: %+v", onDisk)
	}
}

func TestSearchReturnsSnippetWindow(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)
	key := "agent:default:telegram:direct:42"

	content := "the quick brown fox jumps over the lazy dog and keeps running far past the needle into more text"
	m.AddMessage(key, providers.Message{Role: "user", Content: content})

	hits := m.Search("needle", 10)
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].SessionKey != key {
		t.Fatalf("expected session key %q, got %q", key, hits[0].SessionKey)
	}
	if len(hits[0].Snippet) == 0 {
		t.Fatal("expected non-empty snippet")
	}
}

func TestSearchAtMostOneHitPerSession(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)
	key := "agent:default:telegram:direct:7"

	m.AddMessage(key, providers.Message{Role: "user", Content: "find me here"})
	m.AddMessage(key, providers.Message{Role: "assistant", Content: "find me again too"})

	hits := m.Search("find me", 10)
	if len(hits) != 1 {
		t.Fatalf("expected at most 1 hit per session, got %d", len(hits))
	}
}

func TestSaveMediaReadMediaRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)
	key := "agent:default:telegram:direct:9"

	path, err := m.SaveMedia(key, "photo.jpg", []byte("fake-bytes"))
	if err != nil {
		t.Fatalf("SaveMedia: %v", err)
	}
	if path == "" {
		t.Fatal("expected non-empty stored path")
	}

	data, err := m.ReadMedia(key, "photo.jpg")
	if err != nil {
		t.Fatalf("ReadMedia: %v", err)
	}
	if string(data) != "fake-bytes" {
		t.Fatalf("unexpected media content: %q", data)
	}
}

func TestLoadAllRebuildsFromDisk(t *testing.T) {
	dir := t.TempDir()
	key := "agent:default:telegram:direct:5"

	m1 := NewManager(dir)
	m1.AddMessage(key, providers.Message{Role: "user", Content: "persisted"})
	m1.SetSummary(key, "a summary")
	if err := m1.Save(key); err != nil {
		t.Fatalf("Save: %v", err)
	}

	m2 := NewManager(dir)
	history := m2.GetHistory(key)
	if len(history) != 1 || history[0].Content != "persisted" {
		t.Fatalf("expected reloaded history, got %+v", history)
	}
	if m2.GetSummary(key) != "a summary" {
		t.Fatalf("expected reloaded summary, got %q", m2.GetSummary(key))
	}
}

func TestResetTruncatesLogFile(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)
	key := "agent:default:telegram:direct:3"

	m.AddMessage(key, providers.Message{Role: "user", Content: "gone soon"})
	m.Reset(key)

	if len(m.GetHistory(key)) != 0 {
		t.Fatal("expected empty history after reset")
	}
	if len(m.ReadLastN(key, 10)) != 0 {
		t.Fatal("expected empty on-disk log after reset")
	}
}
