package xmpp

import "testing"

func TestParseJIDFull(t *testing.T) {
	j, err := ParseJID("bot@example.org/home")
	if err != nil {
		t.Fatalf("ParseJID: %v", err)
	}
	if j.Local != "bot" || j.Domain != "example.org" || j.Resource != "home" {
		t.Fatalf("unexpected parse: %+v", j)
	}
	if j.Bare() != "bot@example.org" {
		t.Fatalf("unexpected bare JID: %s", j.Bare())
	}
	if j.String() != "bot@example.org/home" {
		t.Fatalf("unexpected full JID: %s", j.String())
	}
}

func TestParseJIDDomainOnly(t *testing.T) {
	j, err := ParseJID("conference.example.org")
	if err != nil {
		t.Fatalf("ParseJID: %v", err)
	}
	if j.Local != "" || j.Domain != "conference.example.org" {
		t.Fatalf("unexpected parse: %+v", j)
	}
}

func TestParseJIDMissingDomain(t *testing.T) {
	if _, err := ParseJID("@"); err == nil {
		t.Fatal("expected error for JID with no domain")
	}
}

func TestXMLEscapeHandlesSpecialChars(t *testing.T) {
	got := xmlEscape(`<a & "b">`)
	if got == `<a & "b">` {
		t.Fatal("expected special characters to be escaped")
	}
}
