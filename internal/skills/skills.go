// Package skills loads personal skills — SKILL.md files under a skills
// directory, each describing a reusable capability the agent can read on
// demand via skill_search/skill_read instead of carrying every skill's
// full text in the system prompt.
package skills

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Skill is one loaded SKILL.md: a name, one-line description (for the
// inline/search summary), and the full body (read on demand).
type Skill struct {
	Name        string
	Description string
	Path        string
	Body        string
}

var nameRe = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ValidateName enforces spec.md's skill-name rule: lowercase ASCII +
// hyphen, 1-64 chars, no double-hyphens, no leading/trailing hyphen.
func ValidateName(name string) error {
	if len(name) == 0 || len(name) > 64 {
		return fmt.Errorf("skill name must be 1-64 characters")
	}
	if strings.Contains(name, "--") {
		return fmt.Errorf("skill name must not contain double hyphens")
	}
	if !nameRe.MatchString(name) {
		return fmt.Errorf("skill name must be lowercase ASCII letters, digits, and single hyphens")
	}
	return nil
}

// Loader watches one or more skill directories (workspace-local, a global
// directory, and an optional extra directory) and reloads on demand.
type Loader struct {
	workspaceDir string
	globalDir    string
	extraDir     string

	mu     sync.RWMutex
	skills map[string]Skill
}

func NewLoader(workspaceDir, globalDir, extraDir string) *Loader {
	l := &Loader{workspaceDir: workspaceDir, globalDir: globalDir, extraDir: extraDir, skills: map[string]Skill{}}
	l.Reload()
	return l
}

// personalDir is the directory skill CRUD tools write into: a "skills"
// subdirectory of the workspace.
func (l *Loader) personalDir() string {
	return filepath.Join(l.workspaceDir, "skills")
}

// Reload rescans every configured directory, replacing the in-memory set.
// Later directories (global, then extra) do not override a workspace skill
// with the same name.
func (l *Loader) Reload() {
	found := map[string]Skill{}
	for _, dir := range []string{l.personalDir(), l.globalDir, l.extraDir} {
		if dir == "" {
			continue
		}
		for name, sk := range scanDir(dir) {
			if _, exists := found[name]; !exists {
				found[name] = sk
			}
		}
	}
	l.mu.Lock()
	l.skills = found
	l.mu.Unlock()
}

func scanDir(dir string) map[string]Skill {
	out := map[string]Skill{}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return out
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if ValidateName(name) != nil {
			continue
		}
		path := filepath.Join(dir, name, "SKILL.md")
		body, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		desc := firstDescriptionLine(string(body))
		out[name] = Skill{Name: name, Description: desc, Path: path, Body: string(body)}
	}
	return out
}

// firstDescriptionLine pulls a one-line description from a SKILL.md's
// frontmatter ("description: ...") or, failing that, its first non-header
// paragraph line.
func firstDescriptionLine(body string) string {
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "description:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "description:"))
		}
	}
	sc = bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "---") {
			continue
		}
		return line
	}
	return ""
}

// FilterSkills returns the loaded skills matching allowList (nil = all,
// empty slice = none), sorted by name for stable prompt ordering.
func (l *Loader) FilterSkills(allowList []string) []Skill {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var names []string
	if allowList == nil {
		for name := range l.skills {
			names = append(names, name)
		}
	} else {
		allow := make(map[string]bool, len(allowList))
		for _, n := range allowList {
			allow[n] = true
		}
		for name := range l.skills {
			if allow[name] {
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)

	out := make([]Skill, 0, len(names))
	for _, name := range names {
		out = append(out, l.skills[name])
	}
	return out
}

// ListSkills returns every loaded skill, unfiltered.
func (l *Loader) ListSkills() []Skill {
	return l.FilterSkills(nil)
}

// Get returns one skill's full body by name.
func (l *Loader) Get(name string) (Skill, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	sk, ok := l.skills[name]
	return sk, ok
}

// BuildSummary renders an <available_skills> XML block for inlining
// directly into the system prompt.
func (l *Loader) BuildSummary(allowList []string) string {
	filtered := l.FilterSkills(allowList)
	if len(filtered) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("<available_skills>\n")
	for _, s := range filtered {
		fmt.Fprintf(&b, "  <skill name=%q>%s</skill>\n", s.Name, s.Description)
	}
	b.WriteString("</available_skills>")
	return b.String()
}
