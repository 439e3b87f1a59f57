package xmpp

import (
	"encoding/json"
	"fmt"

	"github.com/moltis/moltis/internal/bus"
	"github.com/moltis/moltis/internal/channels"
	"github.com/moltis/moltis/internal/config"
)

// xmppCreds maps the credentials JSON from the channel_instances table.
type xmppCreds struct {
	JID      string `json:"jid"`
	Password string `json:"password"`
}

// xmppInstanceConfig maps the non-secret config JSONB from the channel_instances table.
type xmppInstanceConfig struct {
	Host        string   `json:"host,omitempty"`
	DMPolicy    string   `json:"dm_policy,omitempty"`
	GroupPolicy string   `json:"group_policy,omitempty"`
	AllowFrom   []string `json:"allow_from,omitempty"`
	Rooms       []string `json:"rooms,omitempty"`
	Nickname    string   `json:"nickname,omitempty"`
}

// Factory creates an XMPP channel from DB instance data.
func Factory(name string, creds json.RawMessage, cfg json.RawMessage,
	msgBus *bus.MessageBus, pairingSvc channels.PairingGate) (channels.Channel, error) {

	var c xmppCreds
	if len(creds) > 0 {
		if err := json.Unmarshal(creds, &c); err != nil {
			return nil, fmt.Errorf("decode xmpp credentials: %w", err)
		}
	}
	if c.JID == "" || c.Password == "" {
		return nil, fmt.Errorf("xmpp jid and password are required")
	}

	var ic xmppInstanceConfig
	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &ic); err != nil {
			return nil, fmt.Errorf("decode xmpp config: %w", err)
		}
	}

	xCfg := config.XMPPConfig{
		Enabled:     true,
		JID:         c.JID,
		Password:    c.Password,
		Host:        ic.Host,
		AllowFrom:   ic.AllowFrom,
		DMPolicy:    ic.DMPolicy,
		GroupPolicy: ic.GroupPolicy,
		Rooms:       ic.Rooms,
		Nickname:    ic.Nickname,
	}

	if xCfg.GroupPolicy == "" {
		xCfg.GroupPolicy = "pairing"
	}

	ch, err := New(xCfg, msgBus, pairingSvc)
	if err != nil {
		return nil, err
	}

	ch.SetName(name)
	return ch, nil
}
