package msteams

import (
	"encoding/json"
	"fmt"

	"github.com/moltis/moltis/internal/bus"
	"github.com/moltis/moltis/internal/channels"
	"github.com/moltis/moltis/internal/config"
)

// msteamsCreds maps the credentials JSON from the channel_instances table.
type msteamsCreds struct {
	AppID         string `json:"app_id"`
	AppPassword   string `json:"app_password"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// msteamsInstanceConfig maps the non-secret config JSONB from the channel_instances table.
type msteamsInstanceConfig struct {
	WebhookPort int      `json:"webhook_port,omitempty"`
	WebhookPath string   `json:"webhook_path,omitempty"`
	DMPolicy    string   `json:"dm_policy,omitempty"`
	GroupPolicy string   `json:"group_policy,omitempty"`
	AllowFrom   []string `json:"allow_from,omitempty"`
}

// Factory creates an MS Teams channel from DB instance data.
func Factory(name string, creds json.RawMessage, cfg json.RawMessage,
	msgBus *bus.MessageBus, pairingSvc channels.PairingGate) (channels.Channel, error) {

	var c msteamsCreds
	if len(creds) > 0 {
		if err := json.Unmarshal(creds, &c); err != nil {
			return nil, fmt.Errorf("decode msteams credentials: %w", err)
		}
	}
	if c.AppID == "" || c.AppPassword == "" {
		return nil, fmt.Errorf("msteams app_id and app_password are required")
	}

	var ic msteamsInstanceConfig
	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &ic); err != nil {
			return nil, fmt.Errorf("decode msteams config: %w", err)
		}
	}

	tCfg := config.MSTeamsConfig{
		Enabled:       true,
		AppID:         c.AppID,
		AppPassword:   c.AppPassword,
		WebhookSecret: c.WebhookSecret,
		WebhookPort:   ic.WebhookPort,
		WebhookPath:   ic.WebhookPath,
		AllowFrom:     ic.AllowFrom,
		DMPolicy:      ic.DMPolicy,
		GroupPolicy:   ic.GroupPolicy,
	}

	if tCfg.GroupPolicy == "" {
		tCfg.GroupPolicy = "pairing"
	}

	ch, err := New(tCfg, msgBus, pairingSvc)
	if err != nil {
		return nil, err
	}

	ch.SetName(name)
	return ch, nil
}
