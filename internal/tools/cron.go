package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/moltis/moltis/internal/scheduler"
)

// CronTool lets the agent manage its own scheduled jobs: one-off
// reminders, recurring check-ins, and cron-expression jobs that fire a
// system event or a full agent turn back through the scheduler.
type CronTool struct {
	sched *scheduler.Scheduler
}

func NewCronTool(sched *scheduler.Scheduler) *CronTool {
	return &CronTool{sched: sched}
}

func (t *CronTool) Name() string { return "cron" }
func (t *CronTool) Description() string {
	return "Create, list, toggle, or delete scheduled jobs (reminders and recurring check-ins)"
}

func (t *CronTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"create", "list", "delete", "toggle"},
				"description": "Which cron operation to perform",
			},
			"name": map[string]interface{}{
				"type":        "string",
				"description": "Human-readable name for the job (create)",
			},
			"schedule_kind": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"at", "every", "cron"},
				"description": "Schedule shape (create): a single future time, a fixed interval, or a cron expression",
			},
			"at_ms": map[string]interface{}{
				"type":        "integer",
				"description": "Unix ms timestamp to fire at, for schedule_kind=at",
			},
			"every_ms": map[string]interface{}{
				"type":        "integer",
				"description": "Interval in milliseconds, for schedule_kind=every",
			},
			"cron_expr": map[string]interface{}{
				"type":        "string",
				"description": "Standard cron expression, for schedule_kind=cron",
			},
			"timezone": map[string]interface{}{
				"type":        "string",
				"description": "IANA timezone for schedule_kind=cron (default UTC)",
			},
			"message": map[string]interface{}{
				"type":        "string",
				"description": "Message to run as a full agent turn when the job fires",
			},
			"deliver": map[string]interface{}{
				"type":        "boolean",
				"description": "Whether to deliver the agent turn's reply back to a channel (create)",
			},
			"channel": map[string]interface{}{
				"type":        "string",
				"description": "Channel to deliver to, when deliver is true",
			},
			"to": map[string]interface{}{
				"type":        "string",
				"description": "Chat/recipient identifier to deliver to, when deliver is true",
			},
			"job_id": map[string]interface{}{
				"type":        "string",
				"description": "Job ID, for delete/toggle",
			},
			"enabled": map[string]interface{}{
				"type":        "boolean",
				"description": "New enabled state, for toggle",
			},
		},
		"required": []string{"action"},
	}
}

func (t *CronTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	if t.sched == nil {
		return ErrorResult("scheduler not available")
	}

	action, _ := args["action"].(string)
	switch strings.ToLower(action) {
	case "create":
		return t.create(args)
	case "list":
		return t.list()
	case "delete":
		return t.delete(args)
	case "toggle":
		return t.toggle(args)
	default:
		return ErrorResult(fmt.Sprintf("unknown action %q", action))
	}
}

func (t *CronTool) create(args map[string]interface{}) *Result {
	kind, _ := args["schedule_kind"].(string)
	var sched scheduler.Schedule
	switch scheduler.ScheduleKind(kind) {
	case scheduler.ScheduleAt:
		atMs, _ := args["at_ms"].(float64)
		if atMs <= 0 {
			return ErrorResult("at_ms is required for schedule_kind=at")
		}
		sched = scheduler.Schedule{Kind: scheduler.ScheduleAt, AtMs: int64(atMs)}
	case scheduler.ScheduleEvery:
		everyMs, _ := args["every_ms"].(float64)
		if everyMs <= 0 {
			return ErrorResult("every_ms is required for schedule_kind=every")
		}
		sched = scheduler.Schedule{Kind: scheduler.ScheduleEvery, EveryMs: int64(everyMs)}
	case scheduler.ScheduleCron:
		expr, _ := args["cron_expr"].(string)
		if expr == "" {
			return ErrorResult("cron_expr is required for schedule_kind=cron")
		}
		tz, _ := args["timezone"].(string)
		if tz == "" {
			tz = "UTC"
		}
		sched = scheduler.Schedule{Kind: scheduler.ScheduleCron, Expr: expr, Tz: tz}
	default:
		return ErrorResult(fmt.Sprintf("unknown schedule_kind %q", kind))
	}

	message, _ := args["message"].(string)
	if message == "" {
		return ErrorResult("message is required")
	}
	deliver, _ := args["deliver"].(bool)
	channel, _ := args["channel"].(string)
	to, _ := args["to"].(string)

	name, _ := args["name"].(string)
	if name == "" {
		name = message
		if len(name) > 40 {
			name = name[:40]
		}
	}

	job, err := t.sched.Create(scheduler.Job{
		Name:    name,
		Enabled: true,
		Schedule: sched,
		Payload: scheduler.Payload{
			Kind:    scheduler.PayloadAgentTurn,
			Message: message,
			Deliver: deliver,
			Channel: channel,
			To:      to,
		},
		SessionTarget: scheduler.SessionTarget{Kind: scheduler.SessionTargetIsolated},
	})
	if err != nil {
		return ErrorResult(fmt.Sprintf("failed to create job: %v", err))
	}
	return SilentResult(fmt.Sprintf("created job %s (%s)", job.ID, job.Name))
}

func (t *CronTool) list() *Result {
	jobs := t.sched.List()
	if len(jobs) == 0 {
		return SilentResult("no scheduled jobs")
	}
	type summary struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Enabled     bool   `json:"enabled"`
		NextRunAtMs *int64 `json:"nextRunAtMs,omitempty"`
	}
	out := make([]summary, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, summary{ID: j.ID, Name: j.Name, Enabled: j.Enabled, NextRunAtMs: j.State.NextRunAtMs})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return ErrorResult(fmt.Sprintf("failed to marshal jobs: %v", err))
	}
	return SilentResult(string(data))
}

func (t *CronTool) delete(args map[string]interface{}) *Result {
	jobID, _ := args["job_id"].(string)
	if jobID == "" {
		return ErrorResult("job_id is required")
	}
	if err := t.sched.Delete(jobID); err != nil {
		return ErrorResult(err.Error())
	}
	return SilentResult(fmt.Sprintf("deleted job %s", jobID))
}

func (t *CronTool) toggle(args map[string]interface{}) *Result {
	jobID, _ := args["job_id"].(string)
	if jobID == "" {
		return ErrorResult("job_id is required")
	}
	enabled, _ := args["enabled"].(bool)
	if err := t.sched.Toggle(jobID, enabled); err != nil {
		return ErrorResult(err.Error())
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	return SilentResult(fmt.Sprintf("job %s %s", jobID, state))
}
