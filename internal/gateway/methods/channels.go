package methods

import (
	"context"

	"github.com/moltis/moltis/internal/gateway"
	"github.com/moltis/moltis/internal/merr"
	"github.com/moltis/moltis/internal/permissions"
	"github.com/moltis/moltis/pkg/protocol"
)

type channelToggleParams struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

func registerChannels(router *gateway.MethodRouter, deps Deps) {
	router.Register(protocol.MethodChannelsList, permissions.TableRead, func(_ context.Context, _ *gateway.Client, _ interface{}) (interface{}, error) {
		return deps.Channels.GetEnabledChannels(), nil
	})

	router.Register(protocol.MethodChannelsStatus, permissions.TableRead, func(_ context.Context, _ *gateway.Client, _ interface{}) (interface{}, error) {
		return deps.Channels.GetStatus(), nil
	})

	router.Register(protocol.MethodChannelsToggle, permissions.TableWrite, func(ctx context.Context, _ *gateway.Client, params interface{}) (interface{}, error) {
		var p channelToggleParams
		if err := decodeParams(params, &p); err != nil {
			return nil, merr.Wrap(merr.KindInvalidInput, "malformed channels.toggle params", err)
		}
		ch, ok := deps.Channels.GetChannel(p.Name)
		if !ok {
			return nil, merr.New(merr.KindNotFound, "no such channel: "+p.Name)
		}
		var err error
		if p.Enabled {
			err = ch.Start(ctx)
		} else {
			err = ch.Stop(ctx)
		}
		if err != nil {
			return nil, merr.Wrap(merr.KindInternal, "channel toggle failed", err)
		}
		return map[string]bool{"running": ch.IsRunning()}, nil
	})
}
