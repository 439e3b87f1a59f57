// Package msteams implements a Microsoft Teams channel backed by the Bot
// Framework's Direct Line / Connector webhook model: an HTTP endpoint
// receives Activity JSON payloads signed with an HMAC secret, and outbound
// replies are POSTed back to the per-conversation service URl using an
// OAuth2 client-credentials bearer token.
package msteams

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/moltis/moltis/internal/bus"
	"github.com/moltis/moltis/internal/channels"
	"github.com/moltis/moltis/internal/config"
)

const (
	botFrameworkTokenURL = "https://login.microsoftonline.com/botframework.com/oauth2/v2.0/token"
	botFrameworkScope    = "https://api.botframework.com/.default"
	signatureHeader      = "X-Moltis-Signature"
	pairingDebounceTime  = 60 * time.Second
)

// activity is the subset of the Bot Framework Activity schema this channel needs.
type activity struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Text string `json:"text"`
	From struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"from"`
	Conversation struct {
		ID               string `json:"id"`
		ConversationType string `json:"conversationType"` // "personal" or "groupChat"/"channel"
	} `json:"conversation"`
	ServiceURL string `json:"serviceUrl"`
	ReplyToID  string `json:"replyToId,omitempty"`
}

// Channel bridges Microsoft Teams via an inbound webhook + outbound Connector API.
type Channel struct {
	*channels.BaseChannel
	config          config.MSTeamsConfig
	server          *http.Server
	oauth           *clientcredentials.Config
	httpClient      *http.Client
	pairingService  channels.PairingGate
	pairingDebounce sync.Map // senderID -> time.Time

	mu            sync.Mutex
	serviceURLs   map[string]string // conversationID -> serviceUrl, learned from inbound activities
}

// New creates a new MS Teams channel from config.
func New(cfg config.MSTeamsConfig, msgBus *bus.MessageBus, pairingSvc channels.PairingGate) (*Channel, error) {
	if cfg.AppID == "" || cfg.AppPassword == "" {
		return nil, fmt.Errorf("msteams app_id and app_password are required")
	}

	base := channels.NewBaseChannel("msteams", msgBus, cfg.AllowFrom)

	return &Channel{
		BaseChannel: base,
		config:      cfg,
		oauth: &clientcredentials.Config{
			ClientID:     cfg.AppID,
			ClientSecret: cfg.AppPassword,
			TokenURL:     botFrameworkTokenURL,
			Scopes:       []string{botFrameworkScope},
		},
		httpClient:     &http.Client{Timeout: 15 * time.Second},
		pairingService: pairingSvc,
		serviceURLs:    make(map[string]string),
	}, nil
}

// Start launches the webhook HTTP server.
func (c *Channel) Start(ctx context.Context) error {
	port := c.config.WebhookPort
	if port == 0 {
		port = 3001
	}
	path := c.config.WebhookPath
	if path == "" {
		path = "/msteams/events"
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, c.handleWebhook)

	c.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		slog.Info("msteams webhook listening", "port", port, "path", path)
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("msteams webhook server error", "error", err)
		}
	}()

	c.SetRunning(true)
	return nil
}

// Stop shuts down the webhook HTTP server.
func (c *Channel) Stop(ctx context.Context) error {
	slog.Info("stopping msteams channel")
	c.SetRunning(false)
	if c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}

// Send posts a reply Activity to the conversation's Connector service URL.
func (c *Channel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	c.mu.Lock()
	serviceURL, ok := c.serviceURLs[msg.ChatID]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("msteams: no known service URL for conversation %s", msg.ChatID)
	}

	token, err := c.oauth.Token(ctx)
	if err != nil {
		return fmt.Errorf("msteams: fetch bot framework token: %w", err)
	}

	reply := activity{
		Type: "message",
		Text: msg.Content,
	}
	reply.Conversation.ID = msg.ChatID

	body, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("msteams: marshal reply activity: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v3/conversations/%s/activities", trimSlash(serviceURL), msg.ChatID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("msteams: send activity: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("msteams: connector API returned %d", resp.StatusCode)
	}
	return nil
}

// handleWebhook verifies the HMAC signature on an inbound Activity and
// forwards accepted messages onto the bus.
func (c *Channel) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := readLimited(w, r)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if c.config.WebhookSecret != "" {
		if !verifySignature(c.config.WebhookSecret, body, r.Header.Get(signatureHeader)) {
			slog.Warn("msteams webhook signature verification failed")
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}

	var act activity
	if err := json.Unmarshal(body, &act); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)

	if act.Type != "message" || act.Text == "" || act.From.ID == "" {
		return
	}

	c.mu.Lock()
	c.serviceURLs[act.Conversation.ID] = act.ServiceURL
	c.mu.Unlock()

	senderID := act.From.ID
	chatID := act.Conversation.ID

	peerKind := "direct"
	if act.Conversation.ConversationType != "" && act.Conversation.ConversationType != "personal" {
		peerKind = "group"
	}

	if peerKind == "direct" {
		if !c.checkDMPolicy(senderID, chatID) {
			return
		}
	} else {
		if !c.CheckPolicy("group", "", c.config.GroupPolicy, senderID) {
			slog.Debug("msteams group message rejected by policy", "sender_id", senderID)
			return
		}
	}

	if !c.IsAllowed(senderID) {
		slog.Debug("msteams message rejected by allowlist", "sender_id", senderID)
		return
	}

	slog.Debug("msteams message received",
		"sender_id", senderID,
		"chat_id", chatID,
		"preview", channels.Truncate(act.Text, 50),
	)

	c.HandleMessage(senderID, chatID, act.Text, nil, map[string]string{
		"message_id":   act.ID,
		"display_name": act.From.Name,
	}, peerKind)
}

func (c *Channel) checkDMPolicy(senderID, chatID string) bool {
	dmPolicy := c.config.DMPolicy
	if dmPolicy == "" {
		dmPolicy = "pairing"
	}

	switch dmPolicy {
	case "disabled":
		return false
	case "open":
		return true
	case "allowlist":
		return c.IsAllowed(senderID)
	default: // "pairing"
		paired := false
		if c.pairingService != nil {
			paired = c.pairingService.IsPaired(senderID, c.Name())
		}
		inAllowList := c.HasAllowList() && c.IsAllowed(senderID)
		if paired || inAllowList {
			return true
		}
		c.sendPairingReply(senderID, chatID)
		return false
	}
}

func (c *Channel) sendPairingReply(senderID, chatID string) {
	if c.pairingService == nil {
		return
	}
	if lastSent, ok := c.pairingDebounce.Load(senderID); ok {
		if time.Since(lastSent.(time.Time)) < pairingDebounceTime {
			return
		}
	}

	code, err := c.pairingService.RequestPairing(senderID, c.Name(), chatID, "default")
	if err != nil {
		slog.Debug("msteams pairing request failed", "sender_id", senderID, "error", err)
		return
	}

	replyText := fmt.Sprintf(
		"Moltis: access not configured.\n\nYour Teams user ID: %s\n\nPairing code: %s\n\nAsk the bot owner to approve with:\n  moltis pairing approve %s",
		senderID, code, code,
	)

	if err := c.Send(context.Background(), bus.OutboundMessage{ChatID: chatID, Content: replyText}); err != nil {
		slog.Warn("failed to send msteams pairing reply", "error", err)
		return
	}
	c.pairingDebounce.Store(senderID, time.Now())
	slog.Info("msteams pairing reply sent", "sender_id", senderID, "code", code)
}

// verifySignature checks an HMAC-SHA256 signature of body against the
// base64-encoded value in the signature header.
func verifySignature(secret string, body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func readLimited(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	const maxBody = 1 << 20 // 1MB
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(r.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func trimSlash(s string) string {
	if len(s) > 0 && s[len(s)-1] == '/' {
		return s[:len(s)-1]
	}
	return s
}
