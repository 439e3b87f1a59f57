package methods

import (
	"context"

	"github.com/moltis/moltis/internal/gateway"
	"github.com/moltis/moltis/internal/merr"
	"github.com/moltis/moltis/internal/permissions"
	"github.com/moltis/moltis/internal/scheduler"
	"github.com/moltis/moltis/pkg/protocol"
)

type jobIDParams struct {
	ID string `json:"id"`
}

type cronToggleParams struct {
	ID      string `json:"id"`
	Enabled bool   `json:"enabled"`
}

func registerCron(router *gateway.MethodRouter, deps Deps) {
	router.Register(protocol.MethodCronList, permissions.TableRead, func(_ context.Context, _ *gateway.Client, _ interface{}) (interface{}, error) {
		return deps.Scheduler.List(), nil
	})

	router.Register(protocol.MethodCronCreate, permissions.TableWrite, func(_ context.Context, _ *gateway.Client, params interface{}) (interface{}, error) {
		var job scheduler.Job
		if err := decodeParams(params, &job); err != nil {
			return nil, merr.Wrap(merr.KindInvalidInput, "malformed cron.create params", err)
		}
		return deps.Scheduler.Create(job)
	})

	router.Register(protocol.MethodCronUpdate, permissions.TableWrite, func(_ context.Context, _ *gateway.Client, params interface{}) (interface{}, error) {
		var job scheduler.Job
		if err := decodeParams(params, &job); err != nil {
			return nil, merr.Wrap(merr.KindInvalidInput, "malformed cron.update params", err)
		}
		if job.ID == "" {
			return nil, merr.New(merr.KindInvalidInput, "id is required")
		}
		return deps.Scheduler.Update(job.ID, job)
	})

	router.Register(protocol.MethodCronDelete, permissions.TableWrite, func(_ context.Context, _ *gateway.Client, params interface{}) (interface{}, error) {
		var p jobIDParams
		if err := decodeParams(params, &p); err != nil {
			return nil, merr.Wrap(merr.KindInvalidInput, "malformed cron.delete params", err)
		}
		if err := deps.Scheduler.Delete(p.ID); err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil
	})

	router.Register(protocol.MethodCronToggle, permissions.TableWrite, func(_ context.Context, _ *gateway.Client, params interface{}) (interface{}, error) {
		var p cronToggleParams
		if err := decodeParams(params, &p); err != nil {
			return nil, merr.Wrap(merr.KindInvalidInput, "malformed cron.toggle params", err)
		}
		if err := deps.Scheduler.Toggle(p.ID, p.Enabled); err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil
	})

	router.Register(protocol.MethodCronStatus, permissions.TableRead, func(_ context.Context, _ *gateway.Client, _ interface{}) (interface{}, error) {
		return deps.Scheduler.Status(), nil
	})

	router.Register(protocol.MethodCronRun, permissions.TableWrite, func(ctx context.Context, _ *gateway.Client, params interface{}) (interface{}, error) {
		var p jobIDParams
		if err := decodeParams(params, &p); err != nil {
			return nil, merr.Wrap(merr.KindInvalidInput, "malformed cron.run params", err)
		}
		return deps.Scheduler.RunNow(ctx, p.ID)
	})

	router.Register(protocol.MethodCronRuns, permissions.TableRead, func(_ context.Context, _ *gateway.Client, params interface{}) (interface{}, error) {
		var p jobIDParams
		if err := decodeParams(params, &p); err != nil {
			return nil, merr.Wrap(merr.KindInvalidInput, "malformed cron.runs params", err)
		}
		return deps.Scheduler.Runs(p.ID), nil
	})
}
