// Package otp implements self-approval one-time codes for DM allowlist
// channels: an unknown peer is issued a 6-digit code instead of being
// rejected outright, and replying with the correct code adds them to the
// channel's allowlist.
package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"
)

const (
	DefaultTTL        = 300 * time.Second
	DefaultMaxAttempts = 3
	DefaultLockout    = 15 * time.Minute

	codeMin = 100000
	codeMax = 1000000
)

type challenge struct {
	code      string
	attempts  int
	expiresAt time.Time
	lockedAt  time.Time
}

// Manager tracks one pending (or locked-out) challenge per peer.
type Manager struct {
	ttl         time.Duration
	maxAttempts int
	lockout     time.Duration

	mu         sync.Mutex
	challenges map[string]*challenge
}

func NewManager(ttl time.Duration, maxAttempts int, lockout time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if lockout <= 0 {
		lockout = DefaultLockout
	}
	return &Manager{ttl: ttl, maxAttempts: maxAttempts, lockout: lockout, challenges: make(map[string]*challenge)}
}

// Issue generates a new code for a peer. Returns an error if the peer
// already has a pending, unexpired challenge or is within its lockout
// window — only one challenge may be outstanding per peer at a time.
func (m *Manager) Issue(peerID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if c, ok := m.challenges[peerID]; ok {
		if !c.lockedAt.IsZero() && now.Sub(c.lockedAt) < m.lockout {
			return "", fmt.Errorf("peer %s is locked out", peerID)
		}
		if now.Before(c.expiresAt) {
			return "", fmt.Errorf("peer %s already has a pending challenge", peerID)
		}
	}

	code, err := generateCode()
	if err != nil {
		return "", err
	}
	m.challenges[peerID] = &challenge{code: code, expiresAt: now.Add(m.ttl)}
	return code, nil
}

// Verify checks a peer's reply against their pending code. On success the
// challenge is cleared (the caller is responsible for adding the peer to
// the allowlist). On the Nth wrong attempt the peer is locked out for the
// configured cooldown.
func (m *Manager) Verify(peerID, reply string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	c, ok := m.challenges[peerID]
	if !ok {
		return false, fmt.Errorf("no pending challenge for peer %s", peerID)
	}
	if !c.lockedAt.IsZero() && now.Sub(c.lockedAt) < m.lockout {
		return false, fmt.Errorf("peer %s is locked out", peerID)
	}
	if now.After(c.expiresAt) {
		delete(m.challenges, peerID)
		return false, fmt.Errorf("challenge expired for peer %s", peerID)
	}

	if reply == c.code {
		delete(m.challenges, peerID)
		return true, nil
	}

	c.attempts++
	if c.attempts >= m.maxAttempts {
		c.lockedAt = now
	}
	return false, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", codeMin+n.Int64()), nil
}
