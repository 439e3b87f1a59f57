package otp

import (
	"sort"
	"sync"
	"time"
)

// PendingRequest describes one outstanding pairing request, for the
// gateway's device.pair.list RPC.
type PendingRequest struct {
	PeerID      string    `json:"peerId"`
	Channel     string    `json:"channel"`
	ChatID      string    `json:"chatId"`
	AgentKey    string    `json:"agentKey"`
	RequestedAt time.Time `json:"requestedAt"`
}

// Pairing adapts a Manager into the channels.PairingGate shape: it issues
// challenges per (channel, peer) and tracks which peers have been
// approved, so a channel only needs IsPaired/RequestPairing without
// knowing anything about codes or lockouts.
type Pairing struct {
	mgr *Manager

	mu       sync.Mutex
	approved map[string]bool // "channel:peerID" -> true
	pending  map[string]PendingRequest
}

func NewPairing(mgr *Manager) *Pairing {
	return &Pairing{
		mgr:      mgr,
		approved: make(map[string]bool),
		pending:  make(map[string]PendingRequest),
	}
}

func pairingKey(peerID, channel string) string { return channel + ":" + peerID }

// IsPaired reports whether peerID has already been approved on channel.
func (p *Pairing) IsPaired(peerID, channel string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.approved[pairingKey(peerID, channel)]
}

// RequestPairing issues a fresh code for an unpaired peer. chatID and
// agentKey are accepted to match the call sites that pass them through
// for logging; pairing itself is keyed only on (channel, peerID).
func (p *Pairing) RequestPairing(peerID, channel, chatID, agentKey string) (string, error) {
	code, err := p.mgr.Issue(pairingKey(peerID, channel))
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	p.pending[pairingKey(peerID, channel)] = PendingRequest{
		PeerID: peerID, Channel: channel, ChatID: chatID, AgentKey: agentKey,
		RequestedAt: time.Now(),
	}
	p.mu.Unlock()
	return code, nil
}

// List returns every outstanding (not yet approved) pairing request, oldest
// first.
func (p *Pairing) List() []PendingRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PendingRequest, 0, len(p.pending))
	for _, req := range p.pending {
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	return out
}

// Approve marks peerID as paired on channel without requiring a code
// (used when an operator approves a pending request directly, e.g. via
// the gateway's auth surface) and clears any outstanding challenge.
func (p *Pairing) Approve(peerID, channel string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.approved[pairingKey(peerID, channel)] = true
	delete(p.pending, pairingKey(peerID, channel))
}

// Revoke removes a peer's approval, e.g. in response to device.pair.revoke.
func (p *Pairing) Revoke(peerID, channel string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.approved, pairingKey(peerID, channel))
}

// VerifyAndApprove checks reply against peerID's pending code on channel
// and, on success, marks them paired.
func (p *Pairing) VerifyAndApprove(peerID, channel, reply string) (bool, error) {
	ok, err := p.mgr.Verify(pairingKey(peerID, channel), reply)
	if err != nil || !ok {
		return ok, err
	}
	p.Approve(peerID, channel)
	return true, nil
}
