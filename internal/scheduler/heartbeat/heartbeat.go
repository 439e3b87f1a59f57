// Package heartbeat implements the periodic self-check job: a prompt asking
// the agent whether anything needs attention, with a literal sentinel token
// the agent replies with when there is nothing to report, so empty ticks
// never reach the operator.
package heartbeat

import (
	"strconv"
	"strings"
	"time"
)

const (
	OkToken            = "HEARTBEAT_OK"
	DefaultIntervalMs  = 30 * 60 * 1000
	DefaultAckMaxChars = 300
)

const DefaultPrompt = `This is a periodic heartbeat check. Review your recent activity, ` +
	`pending tasks, and any conditions worth surfacing. If there is nothing that needs ` +
	`the operator's attention right now, reply with exactly "` + OkToken + `" and nothing else. ` +
	`Otherwise, reply with a brief summary of what needs attention.`

// StripMode selects how aggressively strip looks for the sentinel token.
type StripMode int

const (
	// StripExact requires the whole (trimmed, unwrapped) text to equal the
	// token.
	StripExact StripMode = iota
	// StripTrim replaces every occurrence of the token (plain, **bold**, or
	// <b>bold</b>) anywhere in the text and checks whether anything is left.
	StripTrim
)

// StripResult is the outcome of stripping the sentinel token from a reply.
type StripResult struct {
	ShouldSkip bool
	Text       string
	DidStrip   bool
}

// PromptSource records where a resolved prompt came from, for diagnostics.
type PromptSource string

const (
	SourceConfig      PromptSource = "config"
	SourceHeartbeatMd PromptSource = "heartbeat_md"
	SourceDefault     PromptSource = "default"
)

// StripToken removes the OkToken (and its bold variants) from text per mode,
// reporting whether the tick should be treated as "nothing to report".
func StripToken(text string, mode StripMode, maxAckChars int) StripResult {
	trimmed := strings.TrimSpace(text)
	unwrapped := unwrapBold(trimmed)

	if mode == StripExact {
		if unwrapped == OkToken && len(trimmed) <= maxAckChars {
			return StripResult{ShouldSkip: true, Text: "", DidStrip: true}
		}
		return StripResult{ShouldSkip: false, Text: trimmed, DidStrip: false}
	}

	variants := []string{OkToken, "**" + OkToken + "**", "<b>" + OkToken + "</b>"}
	result := trimmed
	didStrip := false
	for _, v := range variants {
		if strings.Contains(result, v) {
			result = strings.ReplaceAll(result, v, "")
			didStrip = true
		}
	}
	result = strings.TrimSpace(result)
	return StripResult{ShouldSkip: didStrip && result == "", Text: result, DidStrip: didStrip}
}

func unwrapBold(s string) string {
	if strings.HasPrefix(s, "**") && strings.HasSuffix(s, "**") && len(s) >= 4 {
		return s[2 : len(s)-2]
	}
	if strings.HasPrefix(s, "<b>") && strings.HasSuffix(s, "</b>") && len(s) >= 7 {
		return s[3 : len(s)-4]
	}
	return s
}

// IsContentEmpty reports whether a HEARTBEAT.md's content counts as "no
// custom instructions": every line is blank, a header, or a bare bullet
// marker.
func IsContentEmpty(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		t := strings.TrimSpace(line)
		switch {
		case t == "":
		case strings.HasPrefix(t, "#"):
		case t == "-" || t == "*" || t == "- " || t == "* ":
		default:
			return false
		}
	}
	return true
}

// IsWithinActiveHours reports whether now (interpreted in timezone) falls
// within [start, end) expressed as "HH:MM" (with "24:00" meaning end of
// day). An overnight window (end <= start) wraps past midnight. Invalid
// configuration is treated as always-active, matching the fail-open
// original behavior.
func IsWithinActiveHours(start, end, timezone string, now time.Time) bool {
	startMin, ok1 := parseHHMM(start)
	endMin, ok2 := parseHHMM(end)
	if !ok1 || !ok2 {
		return true
	}

	loc := time.Local
	if timezone != "" && timezone != "local" {
		if l, err := time.LoadLocation(timezone); err == nil {
			loc = l
		}
	}
	local := now.In(loc)
	nowMin := local.Hour()*60 + local.Minute()

	if startMin <= endMin {
		return nowMin >= startMin && nowMin < endMin
	}
	return nowMin >= startMin || nowMin < endMin
}

func parseHHMM(s string) (int, bool) {
	if s == "24:00" {
		return 1440, true
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, false
	}
	if h < 0 || h > 24 || m < 0 || m >= 60 {
		return 0, false
	}
	return h*60 + m, true
}

// ResolvePrompt implements the precedence: explicit config prompt, then a
// non-empty HEARTBEAT.md, then the built-in default.
func ResolvePrompt(custom string, heartbeatMd string) (string, PromptSource) {
	if t := strings.TrimSpace(custom); t != "" {
		return t, SourceConfig
	}
	if t := strings.TrimSpace(heartbeatMd); t != "" && !IsContentEmpty(t) {
		return t, SourceHeartbeatMd
	}
	return DefaultPrompt, SourceDefault
}

// ParseIntervalMs parses durations like "30m", "2h", "45s", or a bare
// millisecond count.
func ParseIntervalMs(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	mult := int64(1)
	numPart := s
	switch {
	case strings.HasSuffix(s, "h"):
		mult = 3600000
		numPart = strings.TrimSuffix(s, "h")
	case strings.HasSuffix(s, "m"):
		mult = 60000
		numPart = strings.TrimSuffix(s, "m")
	case strings.HasSuffix(s, "s"):
		mult = 1000
		numPart = strings.TrimSuffix(s, "s")
	}
	n, err := strconv.ParseInt(numPart, 10, 64)
	if err != nil {
		return 0, false
	}
	return n * mult, true
}
