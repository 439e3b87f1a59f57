package xmpp

import (
	"testing"

	"github.com/moltis/moltis/internal/bus"
	"github.com/moltis/moltis/internal/config"
)

func testChannel(t *testing.T, cfg config.XMPPConfig) *Channel {
	t.Helper()
	cfg.JID = "bot@example.org"
	cfg.Password = "secret"
	ch, err := New(cfg, bus.New(10), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ch
}

func TestNewRequiresJIDAndPassword(t *testing.T) {
	if _, err := New(config.XMPPConfig{}, bus.New(10), nil); err == nil {
		t.Fatal("expected error for missing jid/password")
	}
	if _, err := New(config.XMPPConfig{JID: "bot@example.org"}, bus.New(10), nil); err == nil {
		t.Fatal("expected error for missing password")
	}
}

func TestIsRoomJID(t *testing.T) {
	ch := testChannel(t, config.XMPPConfig{Rooms: []string{"room@conference.example.org"}})
	if !ch.isRoomJID("Room@Conference.Example.Org") {
		t.Fatal("expected case-insensitive room match")
	}
	if ch.isRoomJID("other@conference.example.org") {
		t.Fatal("expected non-room JID to not match")
	}
}

func TestCheckDMPolicyOpen(t *testing.T) {
	ch := testChannel(t, config.XMPPConfig{DMPolicy: "open"})
	if !ch.checkDMPolicy("someone@example.org", "someone@example.org") {
		t.Fatal("expected open policy to accept any sender")
	}
}

func TestCheckDMPolicyDisabled(t *testing.T) {
	ch := testChannel(t, config.XMPPConfig{DMPolicy: "disabled"})
	if ch.checkDMPolicy("someone@example.org", "someone@example.org") {
		t.Fatal("expected disabled policy to reject all senders")
	}
}

func TestCheckDMPolicyAllowlist(t *testing.T) {
	ch := testChannel(t, config.XMPPConfig{
		DMPolicy:  "allowlist",
		AllowFrom: []string{"friend@example.org"},
	})
	if !ch.checkDMPolicy("friend@example.org", "friend@example.org") {
		t.Fatal("expected allowlisted sender to be accepted")
	}
	if ch.checkDMPolicy("stranger@example.org", "stranger@example.org") {
		t.Fatal("expected non-allowlisted sender to be rejected")
	}
}
