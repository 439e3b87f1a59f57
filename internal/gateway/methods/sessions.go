package methods

import (
	"context"

	"github.com/moltis/moltis/internal/gateway"
	"github.com/moltis/moltis/internal/merr"
	"github.com/moltis/moltis/internal/permissions"
	"github.com/moltis/moltis/internal/store"
	"github.com/moltis/moltis/pkg/protocol"
)

type sessionsListParams struct {
	AgentID string `json:"agentId"`
	Limit   int    `json:"limit"`
	Offset  int    `json:"offset"`
}

type sessionKeyParams struct {
	Key string `json:"key"`
}

func registerSessions(router *gateway.MethodRouter, deps Deps) {
	router.Register(protocol.MethodSessionsList, permissions.TableRead, func(_ context.Context, _ *gateway.Client, params interface{}) (interface{}, error) {
		var p sessionsListParams
		if err := decodeParams(params, &p); err != nil {
			return nil, merr.Wrap(merr.KindInvalidInput, "malformed sessions.list params", err)
		}
		if p.Limit <= 0 {
			p.Limit = 50
		}
		return deps.Sessions.ListPaged(store.SessionListOpts{AgentID: p.AgentID, Limit: p.Limit, Offset: p.Offset}), nil
	})

	router.Register(protocol.MethodSessionsReset, permissions.TableWrite, func(_ context.Context, _ *gateway.Client, params interface{}) (interface{}, error) {
		var p sessionKeyParams
		if err := decodeParams(params, &p); err != nil {
			return nil, merr.Wrap(merr.KindInvalidInput, "malformed sessions.reset params", err)
		}
		if p.Key == "" {
			return nil, merr.New(merr.KindInvalidInput, "key is required")
		}
		deps.Sessions.Reset(p.Key)
		return map[string]bool{"ok": true}, nil
	})

	router.Register(protocol.MethodSessionsDelete, permissions.TableWrite, func(_ context.Context, _ *gateway.Client, params interface{}) (interface{}, error) {
		var p sessionKeyParams
		if err := decodeParams(params, &p); err != nil {
			return nil, merr.Wrap(merr.KindInvalidInput, "malformed sessions.delete params", err)
		}
		if p.Key == "" {
			return nil, merr.New(merr.KindInvalidInput, "key is required")
		}
		if err := deps.Sessions.Delete(p.Key); err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil
	})
}
