package methods

import (
	"context"

	"github.com/moltis/moltis/internal/gateway"
	"github.com/moltis/moltis/internal/merr"
	"github.com/moltis/moltis/internal/permissions"
	"github.com/moltis/moltis/pkg/protocol"
)

type memorySearchParams struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type memoryGetParams struct {
	Path string `json:"path"`
}

func registerMemory(router *gateway.MethodRouter, deps Deps) {
	router.Register(protocol.MethodMemorySearch, permissions.TableRead, func(_ context.Context, _ *gateway.Client, params interface{}) (interface{}, error) {
		var p memorySearchParams
		if err := decodeParams(params, &p); err != nil {
			return nil, merr.Wrap(merr.KindInvalidInput, "malformed memory.search params", err)
		}
		if p.Query == "" {
			return nil, merr.New(merr.KindInvalidInput, "query is required")
		}
		// No precomputed embedding at the RPC layer — degrades to keyword search.
		return deps.Memory.Search(p.Query, nil, p.Limit)
	})

	router.Register(protocol.MethodMemoryGet, permissions.TableRead, func(_ context.Context, _ *gateway.Client, params interface{}) (interface{}, error) {
		var p memoryGetParams
		if err := decodeParams(params, &p); err != nil {
			return nil, merr.Wrap(merr.KindInvalidInput, "malformed memory.get params", err)
		}
		if p.Path == "" {
			return nil, merr.New(merr.KindInvalidInput, "path is required")
		}
		hits, err := deps.Memory.Search(p.Path, nil, 1)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			if h.Path == p.Path {
				return h, nil
			}
		}
		return nil, merr.New(merr.KindNotFound, "no chunk indexed under that path")
	})
}
