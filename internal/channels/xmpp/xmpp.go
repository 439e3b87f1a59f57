package xmpp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/moltis/moltis/internal/bus"
	"github.com/moltis/moltis/internal/channels"
	"github.com/moltis/moltis/internal/config"
)

const pairingDebounceTime = 60 * time.Second

// Channel connects to an XMPP server using a hand-rolled minimal stanza
// client (see stanza.go) and bridges one-to-one chats and MUC rooms.
type Channel struct {
	*channels.BaseChannel
	config          config.XMPPConfig
	mu              sync.Mutex
	client          *Client
	ctx             context.Context
	cancel          context.CancelFunc
	pairingService  channels.PairingGate
	pairingDebounce sync.Map // senderID -> time.Time
}

// New creates a new XMPP channel from config.
func New(cfg config.XMPPConfig, msgBus *bus.MessageBus, pairingSvc channels.PairingGate) (*Channel, error) {
	if cfg.JID == "" || cfg.Password == "" {
		return nil, fmt.Errorf("xmpp jid and password are required")
	}
	if _, err := ParseJID(cfg.JID); err != nil {
		return nil, err
	}

	base := channels.NewBaseChannel("xmpp", msgBus, cfg.AllowFrom)

	return &Channel{
		BaseChannel:    base,
		config:         cfg,
		pairingService: pairingSvc,
	}, nil
}

// Start connects to the server and begins the receive loop, with automatic
// reconnection on connection loss.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("starting xmpp channel", "jid", c.config.JID)

	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := c.connect(); err != nil {
		slog.Warn("initial xmpp connection failed, will retry", "error", err)
	}

	go c.receiveLoop()

	c.SetRunning(true)
	return nil
}

// Stop closes the XMPP stream.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping xmpp channel")

	if c.cancel != nil {
		c.cancel()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		_ = c.client.Close()
		c.client = nil
	}
	c.SetRunning(false)
	return nil
}

// Send delivers an outbound message to a JID or MUC room.
func (c *Channel) Send(_ context.Context, msg bus.OutboundMessage) error {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()

	if client == nil {
		return fmt.Errorf("xmpp client not connected")
	}
	if msg.ChatID == "" {
		return fmt.Errorf("empty chat ID for xmpp send")
	}

	if c.isRoomJID(msg.ChatID) {
		return client.SendGroupMessage(msg.ChatID, msg.Content)
	}
	return client.SendMessage(msg.ChatID, msg.Content)
}

func (c *Channel) isRoomJID(jid string) bool {
	for _, room := range c.config.Rooms {
		if strings.EqualFold(room, jid) {
			return true
		}
	}
	return false
}

func (c *Channel) connect() error {
	client, err := Dial(Options{
		JID:           c.config.JID,
		Password:      c.config.Password,
		Host:          c.config.Host,
		SkipTLSVerify: c.config.SkipTLSVerify,
	})
	if err != nil {
		return fmt.Errorf("xmpp dial: %w", err)
	}

	c.mu.Lock()
	c.client = client
	c.mu.Unlock()

	nickname := c.config.Nickname
	if nickname == "" {
		nickname = "moltis"
	}
	for _, room := range c.config.Rooms {
		if err := client.JoinRoom(room, nickname); err != nil {
			slog.Warn("xmpp failed to join room", "room", room, "error", err)
		}
	}

	slog.Info("xmpp connected", "jid", c.config.JID)
	return nil
}

func (c *Channel) receiveLoop() {
	backoff := time.Second

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.mu.Lock()
		client := c.client
		c.mu.Unlock()

		if client == nil {
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(backoff):
			}
			if err := c.connect(); err != nil {
				slog.Warn("xmpp reconnect failed", "error", err)
				backoff = min(backoff*2, 30*time.Second)
				continue
			}
			backoff = time.Second
			continue
		}

		stanza, err := client.Next()
		if err != nil {
			slog.Warn("xmpp read error, will reconnect", "error", err)
			c.mu.Lock()
			if c.client != nil {
				c.client.Close()
				c.client = nil
			}
			c.mu.Unlock()
			continue
		}

		if stanza.XMLName.Local == "message" && stanza.Body != "" {
			c.handleMessage(stanza)
		}
	}
}

func (c *Channel) handleMessage(stanza *Stanza) {
	senderID := stanza.From
	if senderID == "" {
		return
	}

	peerKind := "direct"
	chatID := senderID
	if stanza.Type == "groupchat" {
		peerKind = "group"
		if bareJID, _, found := strings.Cut(senderID, "/"); found {
			chatID = bareJID
		}
	}

	if peerKind == "direct" {
		if !c.checkDMPolicy(senderID, chatID) {
			return
		}
	} else {
		if !c.CheckPolicy("group", "", c.config.GroupPolicy, senderID) {
			slog.Debug("xmpp group message rejected by policy", "sender_id", senderID)
			return
		}
	}

	if !c.IsAllowed(senderID) {
		slog.Debug("xmpp message rejected by allowlist", "sender_id", senderID)
		return
	}

	slog.Debug("xmpp message received",
		"sender_id", senderID,
		"chat_id", chatID,
		"preview", channels.Truncate(stanza.Body, 50),
	)

	c.HandleMessage(senderID, chatID, stanza.Body, nil, map[string]string{
		"message_id": stanza.ID,
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
		slog.Debug("xmpp pairing request failed", "sender_id", senderID, "error", err)
		return
	}

	replyText := fmt.Sprintf(
		"Moltis: access not configured.\n\nYour XMPP JID: %s\n\nPairing code: %s\n\nAsk the bot owner to approve with:\n  moltis pairing approve %s",
		senderID, code, code,
	)

	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client == nil {
		return
	}

	if err := client.SendMessage(chatID, replyText); err != nil {
		slog.Warn("failed to send xmpp pairing reply", "error", err)
	} else {
		c.pairingDebounce.Store(senderID, time.Now())
		slog.Info("xmpp pairing reply sent", "sender_id", senderID, "code", code)
	}
}
