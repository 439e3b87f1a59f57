package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/moltis/moltis/internal/auth"
	"github.com/moltis/moltis/internal/bus"
	"github.com/moltis/moltis/internal/config"
	"github.com/moltis/moltis/internal/merr"
	"github.com/moltis/moltis/internal/permissions"
	"github.com/moltis/moltis/pkg/protocol"
)

// fakeEventPublisher is a minimal bus.EventPublisher for tests that never
// actually need to deliver an event.
type fakeEventPublisher struct{}

func (fakeEventPublisher) Subscribe(id string, handler bus.EventHandler) {}
func (fakeEventPublisher) Unsubscribe(id string)                         {}
func (fakeEventPublisher) Broadcast(event bus.Event)                     {}

func newTestServer(withAuth bool) *Server {
	cfg := &config.Config{}
	s := NewServer(cfg, fakeEventPublisher{}, nil, nil)
	if withAuth {
		s.SetCredentialStore(auth.NewStore(""))
	}
	return s
}

func TestRateLimiterDisabledByDefault(t *testing.T) {
	rl := NewRateLimiter(0, 5)
	if rl.Enabled() {
		t.Fatal("rpm<=0 should disable the limiter")
	}
	for i := 0; i < 100; i++ {
		if !rl.Allow("any") {
			t.Fatal("disabled limiter must always allow")
		}
	}
}

func TestRateLimiterEnforcesBurst(t *testing.T) {
	rl := NewRateLimiter(60, 2)
	if !rl.Enabled() {
		t.Fatal("rpm>0 should enable the limiter")
	}
	if !rl.Allow("k") || !rl.Allow("k") {
		t.Fatal("expected the first two calls within burst to be allowed")
	}
	if rl.Allow("k") {
		t.Fatal("expected the third immediate call to exceed the burst")
	}
	// A distinct key gets its own bucket.
	if !rl.Allow("other") {
		t.Fatal("expected a fresh key to have its own budget")
	}
}

func TestMethodRouterUnknownMethod(t *testing.T) {
	s := newTestServer(false)
	resp := s.router.Dispatch(context.Background(), &Client{role: permissions.RoleOperator}, protocol.RequestFrame{Kind: protocol.KindRequest, ID: "1", Method: "no.such.method"})
	if resp.Error == nil || resp.Error.Code != "not_found" {
		t.Fatalf("expected not_found error, got %+v", resp.Error)
	}
}

func TestMethodRouterDispatchesRegisteredHandler(t *testing.T) {
	s := newTestServer(false)
	s.router.Register("echo.test", permissions.TableRead, func(ctx context.Context, c *Client, params interface{}) (interface{}, error) {
		return params, nil
	})
	c := &Client{role: permissions.RoleOperator, scopes: map[permissions.Scope]bool{permissions.ScopeRead: true}}
	resp := s.router.Dispatch(context.Background(), c, protocol.RequestFrame{Kind: protocol.KindRequest, ID: "2", Method: "echo.test", Params: "hi"})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if resp.Result != "hi" {
		t.Fatalf("expected echoed result, got %v", resp.Result)
	}
}

func TestMethodRouterTranslatesHandlerErrorCode(t *testing.T) {
	s := newTestServer(false)
	s.router.Register("fail.test", permissions.TableRead, func(ctx context.Context, c *Client, params interface{}) (interface{}, error) {
		return nil, merr.New(merr.KindConflict, "already exists")
	})
	c := &Client{role: permissions.RoleOperator, scopes: map[permissions.Scope]bool{permissions.ScopeRead: true}}
	resp := s.router.Dispatch(context.Background(), c, protocol.RequestFrame{Kind: protocol.KindRequest, ID: "3", Method: "fail.test"})
	if resp.Error == nil || resp.Error.Code != "conflict" {
		t.Fatalf("expected conflict error code, got %+v", resp.Error)
	}
}

func TestMethodRouterEnforcesPolicyEngine(t *testing.T) {
	s := newTestServer(false)
	pe := permissions.NewPolicyEngine()
	s.SetPolicyEngine(pe)
	s.router.Register("admin.only", permissions.TableWrite, func(ctx context.Context, c *Client, params interface{}) (interface{}, error) {
		return "ok", nil
	})

	noWrite := &Client{role: permissions.RoleOperator, scopes: map[permissions.Scope]bool{permissions.ScopeRead: true}}
	resp := s.router.Dispatch(context.Background(), noWrite, protocol.RequestFrame{Kind: protocol.KindRequest, ID: "4", Method: "admin.only"})
	if resp.Error == nil || resp.Error.Code != "unauthenticated" {
		t.Fatalf("expected unauthenticated error for missing write scope, got %+v", resp.Error)
	}

	withWrite := &Client{role: permissions.RoleOperator, scopes: map[permissions.Scope]bool{permissions.ScopeWrite: true}}
	resp = s.router.Dispatch(context.Background(), withWrite, protocol.RequestFrame{Kind: protocol.KindRequest, ID: "5", Method: "admin.only"})
	if resp.Error != nil {
		t.Fatalf("expected write scope to authorize, got %+v", resp.Error)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(false)
	mux := s.BuildMux()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected health body: %s", rec.Body.String())
	}
}

func TestAuthStatusWithoutCredentialsIsAlwaysAuthenticated(t *testing.T) {
	s := newTestServer(false)
	mux := s.BuildMux()

	req := httptest.NewRequest(http.MethodGet, "/api/auth/status", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var status auth.Status
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.Authenticated {
		t.Fatal("expected authenticated=true when no credential store is wired")
	}
}

func TestAuthSetupLoginFlowThroughMux(t *testing.T) {
	s := newTestServer(true)
	mux := s.BuildMux()
	store := s.credentials
	code := store.Reset() // fresh store already has a pending code; Reset gives us a known one

	setupBody, _ := json.Marshal(map[string]string{"password": "correcthorse1", "setup_code": code})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/setup", strings.NewReader(string(setupBody)))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected setup to succeed, got %d: %s", rec.Code, rec.Body.String())
	}

	loginBody, _ := json.Marshal(map[string]string{"password": "correcthorse1"})
	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(string(loginBody)))
	req.RemoteAddr = "203.0.113.9:4321"
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected login to succeed, got %d: %s", rec.Code, rec.Body.String())
	}

	var sessionCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			sessionCookie = c
		}
	}
	if sessionCookie == nil {
		t.Fatal("expected login to set a session cookie")
	}

	// Now a protected route (anything not in the public allowlist) should
	// require that cookie once a password is set and the caller isn't loopback.
	req = httptest.NewRequest(http.MethodGet, "/api/auth/api-keys", nil)
	req.RemoteAddr = "203.0.113.9:4321"
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected api-keys to require auth, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/auth/api-keys", nil)
	req.RemoteAddr = "203.0.113.9:4321"
	req.AddCookie(sessionCookie)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected api-keys with session cookie to succeed, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCheckOriginAllowsEmptyAllowlist(t *testing.T) {
	s := newTestServer(false)
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "https://anything.example")
	if !s.checkOrigin(req) {
		t.Fatal("expected empty allowlist to allow any origin")
	}
}

func TestCheckOriginRejectsUnlisted(t *testing.T) {
	s := newTestServer(false)
	s.cfg.Gateway.AllowedOrigins = []string{"https://allowed.example"}
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "https://evil.example")
	if s.checkOrigin(req) {
		t.Fatal("expected origin not in allowlist to be rejected")
	}
	req.Header.Set("Origin", "https://allowed.example")
	if !s.checkOrigin(req) {
		t.Fatal("expected allowlisted origin to pass")
	}
}
