package methods

import (
	"context"

	"github.com/moltis/moltis/internal/gateway"
	"github.com/moltis/moltis/internal/merr"
	"github.com/moltis/moltis/internal/permissions"
	"github.com/moltis/moltis/pkg/protocol"
)

type pairingRequestParams struct {
	PeerID   string `json:"peerId"`
	Channel  string `json:"channel"`
	ChatID   string `json:"chatId"`
	AgentKey string `json:"agentKey"`
}

type pairingPeerParams struct {
	PeerID  string `json:"peerId"`
	Channel string `json:"channel"`
}

func registerPairing(router *gateway.MethodRouter, deps Deps) {
	router.Register(protocol.MethodPairingRequest, permissions.TablePairing, func(_ context.Context, _ *gateway.Client, params interface{}) (interface{}, error) {
		var p pairingRequestParams
		if err := decodeParams(params, &p); err != nil {
			return nil, merr.Wrap(merr.KindInvalidInput, "malformed device.pair.request params", err)
		}
		code, err := deps.Pairing.RequestPairing(p.PeerID, p.Channel, p.ChatID, p.AgentKey)
		if err != nil {
			return nil, merr.Wrap(merr.KindConflict, "pairing request failed", err)
		}
		return map[string]string{"code": code}, nil
	})

	router.Register(protocol.MethodPairingApprove, permissions.TablePairing, func(_ context.Context, _ *gateway.Client, params interface{}) (interface{}, error) {
		var p pairingPeerParams
		if err := decodeParams(params, &p); err != nil {
			return nil, merr.Wrap(merr.KindInvalidInput, "malformed device.pair.approve params", err)
		}
		deps.Pairing.Approve(p.PeerID, p.Channel)
		return map[string]bool{"ok": true}, nil
	})

	router.Register(protocol.MethodPairingList, permissions.TablePairing, func(_ context.Context, _ *gateway.Client, _ interface{}) (interface{}, error) {
		return deps.Pairing.List(), nil
	})

	router.Register(protocol.MethodPairingRevoke, permissions.TablePairing, func(_ context.Context, _ *gateway.Client, params interface{}) (interface{}, error) {
		var p pairingPeerParams
		if err := decodeParams(params, &p); err != nil {
			return nil, merr.Wrap(merr.KindInvalidInput, "malformed device.pair.revoke params", err)
		}
		deps.Pairing.Revoke(p.PeerID, p.Channel)
		return map[string]bool{"ok": true}, nil
	})
}
