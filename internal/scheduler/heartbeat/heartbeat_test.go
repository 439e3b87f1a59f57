package heartbeat

import (
	"testing"
	"time"
)

func TestStripTokenExact(t *testing.T) {
	cases := []struct {
		text       string
		shouldSkip bool
	}{
		{"HEARTBEAT_OK", true},
		{"**HEARTBEAT_OK**", true},
		{"<b>HEARTBEAT_OK</b>", true},
		{"  HEARTBEAT_OK  ", true},
		{"Something needs attention", false},
	}
	for _, c := range cases {
		r := StripToken(c.text, StripExact, DefaultAckMaxChars)
		if r.ShouldSkip != c.shouldSkip {
			t.Errorf("StripToken(%q) ShouldSkip = %v, want %v", c.text, r.ShouldSkip, c.shouldSkip)
		}
	}
}

func TestStripTokenTrimMode(t *testing.T) {
	r := StripToken("Status update: HEARTBEAT_OK", StripTrim, DefaultAckMaxChars)
	if !r.DidStrip {
		t.Fatalf("expected strip to occur")
	}
	if r.ShouldSkip {
		t.Fatalf("text remains after stripping the token, should not skip")
	}
	if r.Text == "" {
		t.Fatalf("expected remaining text to be non-empty")
	}

	r2 := StripToken("**HEARTBEAT_OK**", StripTrim, DefaultAckMaxChars)
	if !r2.ShouldSkip {
		t.Fatalf("expected should-skip when nothing remains after stripping")
	}
}

func TestIsContentEmpty(t *testing.T) {
	cases := []struct {
		content string
		empty   bool
	}{
		{"", true},
		{"# Heartbeat instructions\n\n", true},
		{"-\n*\n", true},
		{"# Title\nCheck the deploy queue", false},
	}
	for _, c := range cases {
		if got := IsContentEmpty(c.content); got != c.empty {
			t.Errorf("IsContentEmpty(%q) = %v, want %v", c.content, got, c.empty)
		}
	}
}

func TestIsWithinActiveHoursNormalWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 14, 30, 0, 0, time.UTC)
	if !IsWithinActiveHours("09:00", "17:00", "UTC", now) {
		t.Fatalf("expected 14:30 to be within 09:00-17:00")
	}
	if IsWithinActiveHours("09:00", "17:00", "UTC", now.Add(10*time.Hour)) {
		t.Fatalf("expected 00:30 to be outside 09:00-17:00")
	}
}

func TestIsWithinActiveHoursOvernightWindow(t *testing.T) {
	late := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)
	early := time.Date(2026, 1, 1, 2, 0, 0, 0, time.UTC)
	midday := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	if !IsWithinActiveHours("22:00", "06:00", "UTC", late) {
		t.Fatalf("expected 23:00 within overnight 22:00-06:00")
	}
	if !IsWithinActiveHours("22:00", "06:00", "UTC", early) {
		t.Fatalf("expected 02:00 within overnight 22:00-06:00")
	}
	if IsWithinActiveHours("22:00", "06:00", "UTC", midday) {
		t.Fatalf("expected 12:00 outside overnight 22:00-06:00")
	}
}

func TestIsWithinActiveHoursEndOfDay(t *testing.T) {
	now := time.Date(2026, 1, 1, 23, 59, 0, 0, time.UTC)
	if !IsWithinActiveHours("00:00", "24:00", "UTC", now) {
		t.Fatalf("expected full-day window to always be active")
	}
}

func TestIsWithinActiveHoursInvalidConfigFailsOpen(t *testing.T) {
	now := time.Now()
	if !IsWithinActiveHours("not-a-time", "06:00", "UTC", now) {
		t.Fatalf("expected invalid config to fail open (always active)")
	}
}

func TestResolvePromptPrecedence(t *testing.T) {
	if p, src := ResolvePrompt("custom prompt", "# md\nbody"); p != "custom prompt" || src != SourceConfig {
		t.Fatalf("expected config prompt to win, got %q/%s", p, src)
	}
	if p, src := ResolvePrompt("", "Check the deploy queue"); p != "Check the deploy queue" || src != SourceHeartbeatMd {
		t.Fatalf("expected heartbeat.md to win over default, got %q/%s", p, src)
	}
	if p, src := ResolvePrompt("", "# empty\n-\n"); p != DefaultPrompt || src != SourceDefault {
		t.Fatalf("expected default prompt when heartbeat.md is empty, got %q/%s", p, src)
	}
}

func TestParseIntervalMs(t *testing.T) {
	cases := map[string]int64{
		"30m": 30 * 60 * 1000,
		"2h":  2 * 3600 * 1000,
		"45s": 45 * 1000,
		"500": 500,
	}
	for in, want := range cases {
		got, ok := ParseIntervalMs(in)
		if !ok || got != want {
			t.Errorf("ParseIntervalMs(%q) = %d,%v want %d", in, got, ok, want)
		}
	}
	if _, ok := ParseIntervalMs(""); ok {
		t.Fatalf("expected empty string to fail")
	}
}
