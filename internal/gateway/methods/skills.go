package methods

import (
	"context"

	"github.com/moltis/moltis/internal/gateway"
	"github.com/moltis/moltis/internal/merr"
	"github.com/moltis/moltis/internal/permissions"
	"github.com/moltis/moltis/pkg/protocol"
)

type skillNameParams struct {
	Name string `json:"name"`
}

func registerSkills(router *gateway.MethodRouter, deps Deps) {
	router.Register(protocol.MethodSkillsList, permissions.TableRead, func(_ context.Context, _ *gateway.Client, _ interface{}) (interface{}, error) {
		return deps.Skills.ListSkills(), nil
	})

	router.Register(protocol.MethodSkillsGet, permissions.TableRead, func(_ context.Context, _ *gateway.Client, params interface{}) (interface{}, error) {
		var p skillNameParams
		if err := decodeParams(params, &p); err != nil {
			return nil, merr.Wrap(merr.KindInvalidInput, "malformed skills.get params", err)
		}
		skill, ok := deps.Skills.Get(p.Name)
		if !ok {
			return nil, merr.New(merr.KindNotFound, "no such skill: "+p.Name)
		}
		return skill, nil
	})
}
