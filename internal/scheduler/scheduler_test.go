package scheduler

import (
	"context"
	"testing"
	"time"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	return New(func(ctx context.Context, job *Job) (string, int64, int64, error) {
		return "ran", 1, 2, nil
	})
}

func TestSchedulerCreateComputesNextRun(t *testing.T) {
	sched := newTestScheduler(t)
	job, err := sched.Create(Job{
		Name:    "every hour",
		Enabled: true,
		Schedule: Schedule{Kind: ScheduleEvery, EveryMs: int64(time.Hour / time.Millisecond)},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if job.ID == "" {
		t.Fatal("expected a generated job ID")
	}
	if job.State.NextRunAtMs == nil {
		t.Fatal("expected NextRunAtMs to be set for an enabled job")
	}
}

func TestSchedulerUpdatePreservesIDAndCreatedAt(t *testing.T) {
	sched := newTestScheduler(t)
	created, err := sched.Create(Job{
		Name: "original", Enabled: true,
		Schedule: Schedule{Kind: ScheduleEvery, EveryMs: 60000},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := sched.Update(created.ID, Job{
		Name: "renamed", Enabled: true,
		Schedule: Schedule{Kind: ScheduleEvery, EveryMs: 120000},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.ID != created.ID {
		t.Fatalf("expected ID to be preserved, got %s vs %s", updated.ID, created.ID)
	}
	if updated.CreatedAtMs != created.CreatedAtMs {
		t.Fatal("expected CreatedAtMs to be preserved across update")
	}
	if updated.Name != "renamed" {
		t.Fatalf("expected updated name, got %q", updated.Name)
	}
}

func TestSchedulerUpdateUnknownID(t *testing.T) {
	sched := newTestScheduler(t)
	if _, err := sched.Update("nope", Job{}); err == nil {
		t.Fatal("expected error for unknown job ID")
	}
}

func TestSchedulerRunNowRecordsRun(t *testing.T) {
	sched := newTestScheduler(t)
	job, err := sched.Create(Job{
		Name: "manual", Enabled: false,
		Schedule: Schedule{Kind: ScheduleEvery, EveryMs: 3600000},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	record, err := sched.RunNow(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if record.Status != RunOk {
		t.Fatalf("expected RunOk, got %v", record.Status)
	}
	if record.Output != "ran" {
		t.Fatalf("expected run output to propagate, got %q", record.Output)
	}

	runs := sched.Runs(job.ID)
	if len(runs) != 1 {
		t.Fatalf("expected 1 recorded run, got %d", len(runs))
	}
}

func TestSchedulerRunNowUnknownID(t *testing.T) {
	sched := newTestScheduler(t)
	if _, err := sched.RunNow(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for unknown job ID")
	}
}

func TestSchedulerDeleteAndToggle(t *testing.T) {
	sched := newTestScheduler(t)
	job, err := sched.Create(Job{
		Name: "toggle-me", Enabled: true,
		Schedule: Schedule{Kind: ScheduleEvery, EveryMs: 60000},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := sched.Toggle(job.ID, false); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	got, ok := sched.Get(job.ID)
	if !ok || got.Enabled {
		t.Fatal("expected job disabled after Toggle(false)")
	}
	if got.State.NextRunAtMs != nil {
		t.Fatal("expected NextRunAtMs cleared when disabled")
	}

	if err := sched.Delete(job.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := sched.Get(job.ID); ok {
		t.Fatal("expected job gone after Delete")
	}
}
