package methods

import (
	"context"

	"github.com/moltis/moltis/internal/gateway"
	"github.com/moltis/moltis/internal/permissions"
	"github.com/moltis/moltis/pkg/protocol"
)

type statusResult struct {
	Agents    []string    `json:"agents"`
	Scheduler interface{} `json:"scheduler,omitempty"`
	Channels  interface{} `json:"channels,omitempty"`
}

func registerSystem(router *gateway.MethodRouter, deps Deps) {
	router.Register(protocol.MethodStatus, permissions.TableRead, func(_ context.Context, _ *gateway.Client, _ interface{}) (interface{}, error) {
		res := statusResult{}
		if deps.Agents != nil {
			res.Agents = deps.Agents.List()
		}
		if deps.Scheduler != nil {
			res.Scheduler = deps.Scheduler.Status()
		}
		if deps.Channels != nil {
			res.Channels = deps.Channels.GetStatus()
		}
		return res, nil
	})
}
