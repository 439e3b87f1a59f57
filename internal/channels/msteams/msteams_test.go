package msteams

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/moltis/moltis/internal/bus"
	"github.com/moltis/moltis/internal/config"
)

func TestNewRequiresAppCredentials(t *testing.T) {
	if _, err := New(config.MSTeamsConfig{}, bus.New(10), nil); err == nil {
		t.Fatal("expected error for missing app_id/app_password")
	}
}

func testChannel(t *testing.T, cfg config.MSTeamsConfig) *Channel {
	t.Helper()
	cfg.AppID = "app-id"
	cfg.AppPassword = "app-secret"
	ch, err := New(cfg, bus.New(10), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ch
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifySignatureAcceptsMatching(t *testing.T) {
	body := []byte(`{"type":"message"}`)
	sig := sign("shh", body)
	if !verifySignature("shh", body, sig) {
		t.Fatal("expected matching signature to verify")
	}
}

func TestVerifySignatureRejectsTamperedBody(t *testing.T) {
	body := []byte(`{"type":"message"}`)
	sig := sign("shh", body)
	if verifySignature("shh", []byte(`{"type":"other"}`), sig) {
		t.Fatal("expected tampered body to fail verification")
	}
}

func TestVerifySignatureRejectsEmpty(t *testing.T) {
	if verifySignature("shh", []byte("x"), "") {
		t.Fatal("expected empty signature to be rejected")
	}
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	ch := testChannel(t, config.MSTeamsConfig{WebhookSecret: "shh"})

	body := `{"type":"message","text":"hi","from":{"id":"u1"},"conversation":{"id":"c1"},"serviceUrl":"https://smba.trafficmanager.net/apis"}`
	req := httptest.NewRequest("POST", "/msteams/events", strings.NewReader(body))
	req.Header.Set(signatureHeader, "bogus")
	rec := httptest.NewRecorder()

	ch.handleWebhook(rec, req)

	if rec.Code != 401 {
		t.Fatalf("expected 401 for bad signature, got %d", rec.Code)
	}
}

func TestHandleWebhookAcceptsValidSignatureOpenPolicy(t *testing.T) {
	ch := testChannel(t, config.MSTeamsConfig{WebhookSecret: "shh", DMPolicy: "open"})

	body := []byte(`{"type":"message","text":"hi","from":{"id":"u1"},"conversation":{"id":"c1","conversationType":"personal"},"serviceUrl":"https://smba.trafficmanager.net/apis"}`)
	req := httptest.NewRequest("POST", "/msteams/events", strings.NewReader(string(body)))
	req.Header.Set(signatureHeader, sign("shh", body))
	rec := httptest.NewRecorder()

	ch.handleWebhook(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	ch.mu.Lock()
	url, ok := ch.serviceURLs["c1"]
	ch.mu.Unlock()
	if !ok || url != "https://smba.trafficmanager.net/apis" {
		t.Fatalf("expected serviceUrl to be recorded, got %q ok=%v", url, ok)
	}
}

func TestCheckDMPolicyDisabled(t *testing.T) {
	ch := testChannel(t, config.MSTeamsConfig{DMPolicy: "disabled"})
	if ch.checkDMPolicy("u1", "c1") {
		t.Fatal("expected disabled policy to reject")
	}
}
