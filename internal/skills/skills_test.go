package skills

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateName(t *testing.T) {
	cases := []struct {
		name string
		ok   bool
	}{
		{"web-search", true},
		{"a", true},
		{"has--double-hyphen", false},
		{"Uppercase", false},
		{"", false},
		{"trailing-", false}, // regex requires alnum after every hyphen
		{"under_score", false},
	}
	for _, c := range cases {
		err := ValidateName(c.name)
		if (err == nil) != c.ok {
			t.Errorf("ValidateName(%q) err=%v, want ok=%v", c.name, err, c.ok)
		}
	}
}

func writeSkill(t *testing.T, dir, name, skillMD string) {
	t.Helper()
	skillDir := filepath.Join(dir, name)
	if err := os.MkdirAll(skillDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte(skillMD), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoaderPrecedenceWorkspaceWinsOverGlobal(t *testing.T) {
	workspace := t.TempDir()
	global := t.TempDir()

	writeSkill(t, filepath.Join(workspace, "skills"), "web-search", "description: workspace version\nbody")
	writeSkill(t, global, "web-search", "description: global version\nbody")

	l := NewLoader(workspace, global, "")
	sk, ok := l.Get("web-search")
	if !ok {
		t.Fatal("expected web-search to be loaded")
	}
	if sk.Description != "workspace version" {
		t.Fatalf("expected workspace skill to take precedence, got %q", sk.Description)
	}
}

func TestFilterSkillsAllowList(t *testing.T) {
	workspace := t.TempDir()
	writeSkill(t, filepath.Join(workspace, "skills"), "alpha", "description: a\nbody")
	writeSkill(t, filepath.Join(workspace, "skills"), "beta", "description: b\nbody")

	l := NewLoader(workspace, "", "")
	all := l.ListSkills()
	if len(all) != 2 {
		t.Fatalf("expected 2 skills, got %d", len(all))
	}

	filtered := l.FilterSkills([]string{"beta"})
	if len(filtered) != 1 || filtered[0].Name != "beta" {
		t.Fatalf("expected only beta, got %v", filtered)
	}
}

func TestBuildSummaryEmptyWhenNoSkills(t *testing.T) {
	l := NewLoader(t.TempDir(), "", "")
	if s := l.BuildSummary(nil); s != "" {
		t.Fatalf("expected empty summary for no skills, got %q", s)
	}
}

func TestReloadPicksUpNewSkill(t *testing.T) {
	workspace := t.TempDir()
	l := NewLoader(workspace, "", "")
	if len(l.ListSkills()) != 0 {
		t.Fatal("expected no skills initially")
	}

	writeSkill(t, filepath.Join(workspace, "skills"), "gamma", "description: g\nbody")
	l.Reload()

	if _, ok := l.Get("gamma"); !ok {
		t.Fatal("expected gamma to appear after Reload")
	}
}
