package methods

import (
	"context"

	"github.com/moltis/moltis/internal/gateway"
	"github.com/moltis/moltis/internal/merr"
	"github.com/moltis/moltis/internal/permissions"
	"github.com/moltis/moltis/pkg/protocol"
)

type approvalIDParams struct {
	ID string `json:"id"`
}

func registerApprovals(router *gateway.MethodRouter, deps Deps) {
	router.Register(protocol.MethodApprovalsList, permissions.TableApproval, func(_ context.Context, _ *gateway.Client, _ interface{}) (interface{}, error) {
		return deps.Approvals.List(), nil
	})

	router.Register(protocol.MethodApprovalsApprove, permissions.TableApproval, func(_ context.Context, _ *gateway.Client, params interface{}) (interface{}, error) {
		var p approvalIDParams
		if err := decodeParams(params, &p); err != nil {
			return nil, merr.Wrap(merr.KindInvalidInput, "malformed exec.approval.approve params", err)
		}
		if err := deps.Approvals.Resolve(p.ID, true); err != nil {
			return nil, merr.Wrap(merr.KindNotFound, "no such pending approval", err)
		}
		return map[string]bool{"ok": true}, nil
	})

	router.Register(protocol.MethodApprovalsDeny, permissions.TableApproval, func(_ context.Context, _ *gateway.Client, params interface{}) (interface{}, error) {
		var p approvalIDParams
		if err := decodeParams(params, &p); err != nil {
			return nil, merr.Wrap(merr.KindInvalidInput, "malformed exec.approval.deny params", err)
		}
		if err := deps.Approvals.Resolve(p.ID, false); err != nil {
			return nil, merr.Wrap(merr.KindNotFound, "no such pending approval", err)
		}
		return map[string]bool{"ok": true}, nil
	})
}
