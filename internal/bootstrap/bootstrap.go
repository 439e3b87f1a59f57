// Package bootstrap assembles the system-prompt context files every agent
// run is seeded with: a handful of workspace markdown files (AGENTS.md,
// SOUL.md, TOOLS.md, IDENTITY.md, USER.md, HEARTBEAT.md, and a one-time
// BOOTSTRAP.md for brand-new workspaces), truncated to a character budget.
package bootstrap

import (
	"embed"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Filenames for the workspace context files this package seeds and loads.
const (
	AgentsFile    = "AGENTS.md"
	SoulFile      = "SOUL.md"
	ToolsFile     = "TOOLS.md"
	IdentityFile  = "IDENTITY.md"
	UserFile      = "USER.md"
	HeartbeatFile = "HEARTBEAT.md"
	BootstrapFile = "BOOTSTRAP.md"
)

//go:embed templates/*.md
var templateFS embed.FS

var templateFiles = []string{AgentsFile, SoulFile, ToolsFile, IdentityFile, UserFile, HeartbeatFile}

// ContextFile is one system-prompt context file, already read and
// (possibly) truncated.
type ContextFile struct {
	Path    string
	Content string
}

const (
	DefaultMaxCharsPerFile = 20000
	DefaultTotalMaxChars   = 24000
)

// TruncateConfig bounds how much of each context file (and the set as a
// whole) is included in a run's system prompt.
type TruncateConfig struct {
	MaxCharsPerFile int
	TotalMaxChars   int
}

// EnsureWorkspaceFiles seeds template files into a workspace directory,
// never overwriting an existing file. BOOTSTRAP.md is only seeded for
// brand-new workspaces (no AGENTS.md yet). Returns the files created.
func EnsureWorkspaceFiles(workspaceDir string) ([]string, error) {
	if err := os.MkdirAll(workspaceDir, 0755); err != nil {
		return nil, err
	}

	var created []string
	_, agentsErr := os.Stat(filepath.Join(workspaceDir, AgentsFile))
	isBrandNew := os.IsNotExist(agentsErr)

	for _, name := range templateFiles {
		ok, err := seedTemplate(workspaceDir, name)
		if err != nil {
			slog.Warn("bootstrap: failed to seed template", "file", name, "error", err)
			continue
		}
		if ok {
			created = append(created, name)
		}
	}

	if isBrandNew {
		ok, err := seedTemplate(workspaceDir, BootstrapFile)
		if err != nil {
			slog.Warn("bootstrap: failed to seed BOOTSTRAP.md", "error", err)
		} else if ok {
			created = append(created, BootstrapFile)
		}
	}
	return created, nil
}

func seedTemplate(workspaceDir, name string) (bool, error) {
	dstPath := filepath.Join(workspaceDir, name)
	f, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	content, err := templateFS.ReadFile(filepath.Join("templates", name))
	if err != nil {
		os.Remove(dstPath)
		return false, err
	}
	if _, err := f.Write(content); err != nil {
		return false, err
	}
	return true, nil
}

// LoadWorkspaceFiles reads whichever of the known context files exist on
// disk, skipping any that are missing.
func LoadWorkspaceFiles(workspaceDir string) []ContextFile {
	var files []ContextFile
	for _, name := range append(append([]string{}, templateFiles...), BootstrapFile) {
		content, err := os.ReadFile(filepath.Join(workspaceDir, name))
		if err != nil {
			continue
		}
		files = append(files, ContextFile{Path: name, Content: string(content)})
	}
	return files
}

// BuildContextFiles truncates each file to MaxCharsPerFile, then truncates
// the overall set so the sum stays within TotalMaxChars (dropping files
// from the end once the budget is exhausted).
func BuildContextFiles(raw []ContextFile, cfg TruncateConfig) []ContextFile {
	if cfg.MaxCharsPerFile <= 0 {
		cfg.MaxCharsPerFile = DefaultMaxCharsPerFile
	}
	if cfg.TotalMaxChars <= 0 {
		cfg.TotalMaxChars = DefaultTotalMaxChars
	}

	var out []ContextFile
	total := 0
	for _, f := range raw {
		content := f.Content
		if len(content) > cfg.MaxCharsPerFile {
			content = content[:cfg.MaxCharsPerFile] + "\n\n[truncated]"
		}
		if total+len(content) > cfg.TotalMaxChars {
			remaining := cfg.TotalMaxChars - total
			if remaining <= 0 {
				break
			}
			content = content[:remaining] + "\n\n[truncated]"
			out = append(out, ContextFile{Path: f.Path, Content: content})
			break
		}
		out = append(out, ContextFile{Path: f.Path, Content: content})
		total += len(content)
	}
	return out
}

// IsSubagentSession reports whether a session key belongs to a spawned
// subagent run (these never see BOOTSTRAP.md's first-run onboarding text).
func IsSubagentSession(sessionKey string) bool {
	return strings.Contains(sessionKey, ":subagent:")
}

// IsCronSession reports whether a session key belongs to a scheduler-fired
// run.
func IsCronSession(sessionKey string) bool {
	return strings.Contains(sessionKey, ":cron:")
}
