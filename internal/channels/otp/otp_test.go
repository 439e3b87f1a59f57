package otp

import (
	"testing"
	"time"
)

// Mirrors the literal scenario: peer "carol" is issued a 6-digit code and
// replies with it to self-approve onto the allowlist.
func TestIssueAndVerifySucceeds(t *testing.T) {
	m := NewManager(0, 0, 0)
	code, err := m.Issue("carol")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", code)
	}

	ok, err := m.Verify("carol", code)
	if err != nil || !ok {
		t.Fatalf("Verify(correct code) = %v, %v; want true, nil", ok, err)
	}

	// Challenge is consumed; a stale reply no longer verifies.
	if ok, _ := m.Verify("carol", code); ok {
		t.Fatalf("expected challenge to be consumed after success")
	}
}

func TestIssueUniquenessWindow(t *testing.T) {
	m := NewManager(0, 0, 0)
	if _, err := m.Issue("carol"); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := m.Issue("carol"); err == nil {
		t.Fatalf("expected second Issue to fail while a challenge is pending")
	}
}

func TestVerifyWrongCodeLocksOutAfterMaxAttempts(t *testing.T) {
	m := NewManager(DefaultTTL, 3, DefaultLockout)
	code, _ := m.Issue("dave")

	for i := 0; i < 2; i++ {
		ok, err := m.Verify("dave", "000000")
		if ok || err != nil {
			t.Fatalf("attempt %d: got ok=%v err=%v, want ok=false err=nil", i, ok, err)
		}
	}
	// Third wrong attempt trips the lockout.
	ok, err := m.Verify("dave", "000000")
	if ok || err != nil {
		t.Fatalf("final wrong attempt: got ok=%v err=%v", ok, err)
	}

	// Even the correct code is rejected once locked out.
	if ok, err := m.Verify("dave", code); ok || err == nil {
		t.Fatalf("expected lockout to reject even the correct code, got ok=%v err=%v", ok, err)
	}
}

func TestVerifyExpiredChallenge(t *testing.T) {
	m := NewManager(10*time.Millisecond, 3, DefaultLockout)
	code, _ := m.Issue("erin")
	time.Sleep(20 * time.Millisecond)

	if ok, err := m.Verify("erin", code); ok || err == nil {
		t.Fatalf("expected expired challenge to fail, got ok=%v err=%v", ok, err)
	}
}
