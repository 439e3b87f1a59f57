package methods

import (
	"context"

	"github.com/moltis/moltis/internal/gateway"
	"github.com/moltis/moltis/internal/permissions"
	"github.com/moltis/moltis/pkg/protocol"
)

type mcpToolSummary struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

func registerMCP(router *gateway.MethodRouter, deps Deps) {
	router.Register(protocol.MethodMCPServersList, permissions.TableRead, func(_ context.Context, _ *gateway.Client, _ interface{}) (interface{}, error) {
		return deps.MCPBridge.Servers(), nil
	})

	router.Register(protocol.MethodMCPToolsList, permissions.TableRead, func(ctx context.Context, _ *gateway.Client, _ interface{}) (interface{}, error) {
		toolList, err := deps.MCPBridge.Tools(ctx, func(server string) string { return server + "_" })
		if err != nil {
			return nil, err
		}
		out := make([]mcpToolSummary, 0, len(toolList))
		for _, t := range toolList {
			out = append(out, mcpToolSummary{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()})
		}
		return out, nil
	})
}
