package sandbox

import (
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"
)

// FsBridge maps host-relative filesystem tool calls onto a container's
// mounted workspace path, executing them through the sandbox's shell
// (there is no separate file-transfer channel; docker exec is the only
// thing a Sandbox exposes).
type FsBridge struct {
	sb        Sandbox
	mountRoot string
}

func NewFsBridge(sb Sandbox, mountRoot string) *FsBridge {
	return &FsBridge{sb: sb, mountRoot: mountRoot}
}

// ContainerPath maps a workspace-relative path to its in-container
// location.
func (b *FsBridge) ContainerPath(relPath string) string {
	return filepath.Join(b.mountRoot, relPath)
}

// ReadFile reads a file's contents through base64, so binary content
// survives the round-trip through the container's stdout.
func (b *FsBridge) ReadFile(ctx context.Context, relPath string) (string, error) {
	out, err := b.sb.Exec(ctx, []string{"sh", "-c", "base64 " + shQuote(b.ContainerPath(relPath))}, b.mountRoot)
	if err != nil {
		return "", fmt.Errorf("read %s: %w: %s", relPath, err, out)
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(out))
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", relPath, err)
	}
	return string(data), nil
}

// WriteFile writes content to a file, creating parent directories as
// needed, by piping base64-encoded content through the container shell.
func (b *FsBridge) WriteFile(ctx context.Context, relPath, content string) error {
	target := b.ContainerPath(relPath)
	encoded := base64.StdEncoding.EncodeToString([]byte(content))
	script := fmt.Sprintf("mkdir -p %s && echo %s | base64 -d > %s",
		shQuote(filepath.Dir(target)), shQuote(encoded), shQuote(target))
	if out, err := b.sb.Exec(ctx, []string{"sh", "-c", script}, b.mountRoot); err != nil {
		return fmt.Errorf("write %s: %w: %s", relPath, err, out)
	}
	return nil
}

// ListFiles lists entries directly under a directory, one per line.
func (b *FsBridge) ListFiles(ctx context.Context, relPath string) ([]string, error) {
	out, err := b.sb.Exec(ctx, []string{"sh", "-c", "ls -1a " + shQuote(b.ContainerPath(relPath))}, b.mountRoot)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w: %s", relPath, err, out)
	}
	var entries []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" || line == "." || line == ".." {
			continue
		}
		entries = append(entries, line)
	}
	return entries, nil
}

func shQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
