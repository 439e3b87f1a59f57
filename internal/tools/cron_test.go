package tools

import (
	"context"
	"testing"
	"time"

	"github.com/moltis/moltis/internal/scheduler"
)

func newTestScheduler() *scheduler.Scheduler {
	return scheduler.New(func(ctx context.Context, job *scheduler.Job) (string, int64, int64, error) {
		return "", 0, 0, nil
	})
}

func TestCronToolCreateListDeleteToggle(t *testing.T) {
	sched := newTestScheduler()
	tool := NewCronTool(sched)

	created := tool.Execute(context.Background(), map[string]interface{}{
		"action":        "create",
		"name":          "daily check-in",
		"schedule_kind": "every",
		"every_ms":      float64(3600000),
		"message":       "say hello",
	})
	if created.IsError {
		t.Fatalf("expected create to succeed, got error: %s", created.ForLLM)
	}

	jobs := sched.List()
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	jobID := jobs[0].ID

	listed := tool.Execute(context.Background(), map[string]interface{}{"action": "list"})
	if listed.IsError {
		t.Fatalf("expected list to succeed, got error: %s", listed.ForLLM)
	}

	toggled := tool.Execute(context.Background(), map[string]interface{}{
		"action":  "toggle",
		"job_id":  jobID,
		"enabled": false,
	})
	if toggled.IsError {
		t.Fatalf("expected toggle to succeed, got error: %s", toggled.ForLLM)
	}
	job, ok := sched.Get(jobID)
	if !ok || job.Enabled {
		t.Fatal("expected job to be disabled after toggle")
	}

	deleted := tool.Execute(context.Background(), map[string]interface{}{
		"action": "delete",
		"job_id": jobID,
	})
	if deleted.IsError {
		t.Fatalf("expected delete to succeed, got error: %s", deleted.ForLLM)
	}
	if _, ok := sched.Get(jobID); ok {
		t.Fatal("expected job to be gone after delete")
	}
}

func TestCronToolCreateRequiresMessage(t *testing.T) {
	tool := NewCronTool(newTestScheduler())
	result := tool.Execute(context.Background(), map[string]interface{}{
		"action":        "create",
		"schedule_kind": "at",
		"at_ms":         float64(time.Now().Add(time.Hour).UnixMilli()),
	})
	if !result.IsError {
		t.Fatal("expected create without message to fail")
	}
}

func TestCronToolUnknownAction(t *testing.T) {
	tool := NewCronTool(newTestScheduler())
	result := tool.Execute(context.Background(), map[string]interface{}{"action": "bogus"})
	if !result.IsError {
		t.Fatal("expected unknown action to error")
	}
}

func TestCronToolNilScheduler(t *testing.T) {
	tool := NewCronTool(nil)
	result := tool.Execute(context.Background(), map[string]interface{}{"action": "list"})
	if !result.IsError {
		t.Fatal("expected nil scheduler to error")
	}
}
