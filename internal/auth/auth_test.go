package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNoPasswordPassesThrough(t *testing.T) {
	s := NewStore("")
	if s.HasPassword() {
		t.Fatal("fresh store should have no password")
	}
	mw := Middleware(s, false)
	called := false
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/bootstrap", nil)
	req.RemoteAddr = "203.0.113.5:12345" // non-loopback
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !called {
		t.Fatal("expected request to pass through when setup is not complete")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestUnauthenticatedReturns401OnceSetUp(t *testing.T) {
	s := NewStore("")
	if err := s.SetInitialPassword("testpass123"); err != nil {
		t.Fatalf("SetInitialPassword: %v", err)
	}

	mw := Middleware(s, false)
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/bootstrap", nil)
	req.RemoteAddr = "203.0.113.5:12345"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSessionCookieAuthSucceeds(t *testing.T) {
	s := NewStore("")
	s.SetInitialPassword("testpass123")
	token := s.CreateSession()

	mw := Middleware(s, false)
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/bootstrap", nil)
	req.RemoteAddr = "203.0.113.5:12345"
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestInvalidSessionCookieReturns401(t *testing.T) {
	s := NewStore("")
	s.SetInitialPassword("testpass123")

	mw := Middleware(s, false)
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/bootstrap", nil)
	req.RemoteAddr = "203.0.113.5:12345"
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "invalid_token"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAPIKeyAuthSucceeds(t *testing.T) {
	s := NewStore("")
	s.SetInitialPassword("testpass123")
	_, raw, err := s.CreateAPIKey("test", nil)
	if err != nil {
		t.Fatalf("CreateAPIKey: %v", err)
	}

	mw := Middleware(s, false)
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/bootstrap", nil)
	req.RemoteAddr = "203.0.113.5:12345"
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRevokedAPIKeyReturns401(t *testing.T) {
	s := NewStore("")
	s.SetInitialPassword("testpass123")
	id, raw, _ := s.CreateAPIKey("test", nil)
	if err := s.RevokeAPIKey(id); err != nil {
		t.Fatalf("RevokeAPIKey: %v", err)
	}

	mw := Middleware(s, false)
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/bootstrap", nil)
	req.RemoteAddr = "203.0.113.5:12345"
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for revoked key, got %d", rec.Code)
	}
}

func TestSetupRequiresCorrectCode(t *testing.T) {
	s := NewStore("")
	code := s.setupCode // fresh store always has one pending
	wrongCode := "000000"
	if code == wrongCode {
		wrongCode = "111111"
	}

	if err := s.Setup("testpass123", ""); err == nil {
		t.Fatal("expected Setup without a code to fail when one is required")
	}
	if err := s.Setup("testpass123", wrongCode); err == nil {
		t.Fatal("expected Setup with the wrong code to fail")
	}
	if err := s.Setup("testpass123", code); err != nil {
		t.Fatalf("expected Setup with the correct code to succeed, got %v", err)
	}
	if s.SetupCodeRequired() {
		t.Fatal("setup code should be cleared after a successful setup")
	}
}

func TestResetGeneratesNewSetupCodeAndDisablesAuth(t *testing.T) {
	s := NewStore("")
	s.Setup("testpass123", s.setupCode)
	if s.AuthDisabled() {
		t.Fatal("auth should not be disabled right after setup")
	}

	newCode := s.Reset()
	if !s.AuthDisabled() {
		t.Fatal("expected Reset to disable auth until Setup runs again")
	}
	if newCode == "" || !s.SetupCodeRequired() {
		t.Fatal("expected Reset to generate a fresh pending setup code")
	}

	if err := s.Setup("newpass123", "wrong"); err == nil {
		t.Fatal("expected setup with the stale/wrong code to fail after reset")
	}
	if err := s.Setup("newpass123", newCode); err != nil {
		t.Fatalf("expected setup with the new code to succeed: %v", err)
	}
}

func TestLoopbackBypassDisabledOnLocalhostOnly(t *testing.T) {
	s := NewStore("")
	s.SetInitialPassword("testpass123")

	mw := Middleware(s, true) // LocalhostOnly: bypass must not apply
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/bootstrap", nil)
	req.RemoteAddr = "127.0.0.1:54321"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected loopback bypass to be suppressed under LocalhostOnly, got %d", rec.Code)
	}
}
