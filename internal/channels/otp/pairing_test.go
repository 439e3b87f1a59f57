package otp

import "testing"

func TestPairingRequestVerifyApprove(t *testing.T) {
	p := NewPairing(NewManager(0, 0, 0))

	if p.IsPaired("carol", "telegram") {
		t.Fatal("expected carol to start unpaired")
	}

	code, err := p.RequestPairing("carol", "telegram", "chat1", "default")
	if err != nil {
		t.Fatalf("RequestPairing: %v", err)
	}

	ok, err := p.VerifyAndApprove("carol", "telegram", code)
	if err != nil || !ok {
		t.Fatalf("VerifyAndApprove = %v, %v; want true, nil", ok, err)
	}
	if !p.IsPaired("carol", "telegram") {
		t.Fatal("expected carol to be paired after verification")
	}
}

func TestPairingIsolatedByChannel(t *testing.T) {
	p := NewPairing(NewManager(0, 0, 0))
	code, _ := p.RequestPairing("carol", "telegram", "chat1", "default")
	p.VerifyAndApprove("carol", "telegram", code)

	if p.IsPaired("carol", "discord") {
		t.Fatal("expected pairing to be scoped per channel")
	}
}

func TestPairingApproveDirectly(t *testing.T) {
	p := NewPairing(NewManager(0, 0, 0))
	p.Approve("dave", "whatsapp")
	if !p.IsPaired("dave", "whatsapp") {
		t.Fatal("expected direct approval to mark peer as paired")
	}
}

func TestPairingListTracksPendingRequests(t *testing.T) {
	p := NewPairing(NewManager(0, 0, 0))
	if len(p.List()) != 0 {
		t.Fatal("expected no pending requests initially")
	}

	if _, err := p.RequestPairing("carol", "telegram", "chat1", "default"); err != nil {
		t.Fatalf("RequestPairing: %v", err)
	}

	pending := p.List()
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending request, got %d", len(pending))
	}
	if pending[0].PeerID != "carol" || pending[0].Channel != "telegram" {
		t.Fatalf("unexpected pending request: %+v", pending[0])
	}
}

func TestPairingApproveClearsPending(t *testing.T) {
	p := NewPairing(NewManager(0, 0, 0))
	p.RequestPairing("carol", "telegram", "chat1", "default")
	p.Approve("carol", "telegram")

	if len(p.List()) != 0 {
		t.Fatal("expected pending request cleared after approval")
	}
}

func TestPairingRevoke(t *testing.T) {
	p := NewPairing(NewManager(0, 0, 0))
	p.Approve("dave", "whatsapp")
	p.Revoke("dave", "whatsapp")
	if p.IsPaired("dave", "whatsapp") {
		t.Fatal("expected revoke to clear pairing")
	}
}
