package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileToolWritesAndCreatesParents(t *testing.T) {
	dir := t.TempDir()
	tool := NewWriteFileTool(dir, true)

	result := tool.Execute(context.Background(), map[string]interface{}{
		"path":    "sub/notes.txt",
		"content": "hello world",
	})
	if result.IsError {
		t.Fatalf("expected write to succeed, got error: %s", result.ForLLM)
	}

	data, err := os.ReadFile(filepath.Join(dir, "sub", "notes.txt"))
	if err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}
	if string(data) != "hello world" {
		t.Fatalf("unexpected content: %q", data)
	}
}

func TestListFilesToolListsDirectory(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644)
	os.Mkdir(filepath.Join(dir, "sub"), 0o755)

	tool := NewListFilesTool(dir, true)
	result := tool.Execute(context.Background(), map[string]interface{}{})
	if result.IsError {
		t.Fatalf("expected list to succeed, got error: %s", result.ForLLM)
	}
	if result.ForLLM != "a.txt\nsub/" {
		t.Fatalf("unexpected listing: %q", result.ForLLM)
	}
}

func TestEditToolReplacesSingleOccurrence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	os.WriteFile(path, []byte("foo bar baz"), 0o644)

	tool := NewEditTool(dir, true)
	result := tool.Execute(context.Background(), map[string]interface{}{
		"path":     "f.txt",
		"old_text": "bar",
		"new_text": "qux",
	})
	if result.IsError {
		t.Fatalf("expected edit to succeed, got error: %s", result.ForLLM)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "foo qux baz" {
		t.Fatalf("unexpected content after edit: %q", data)
	}
}

func TestEditToolRejectsAmbiguousMatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	os.WriteFile(path, []byte("foo foo"), 0o644)

	tool := NewEditTool(dir, true)
	result := tool.Execute(context.Background(), map[string]interface{}{
		"path":     "f.txt",
		"old_text": "foo",
		"new_text": "bar",
	})
	if !result.IsError {
		t.Fatal("expected ambiguous match to be rejected")
	}
}

func TestEditToolRejectsMissingMatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	os.WriteFile(path, []byte("foo"), 0o644)

	tool := NewEditTool(dir, true)
	result := tool.Execute(context.Background(), map[string]interface{}{
		"path":     "f.txt",
		"old_text": "missing",
		"new_text": "bar",
	})
	if !result.IsError {
		t.Fatal("expected missing old_text to be rejected")
	}
}
