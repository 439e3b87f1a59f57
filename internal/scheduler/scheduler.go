package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"

	"github.com/moltis/moltis/internal/merr"
)

// Lane names the run request's priority queue in the agent loop (e.g.
// "cron" vs "interactive") so cron-driven turns never starve chat turns.
type Lane string

const LaneCron Lane = "cron"

// RunFunc executes a job's payload and returns the content produced (for
// RunRecord.Output) plus token usage, or an error.
type RunFunc func(ctx context.Context, job *Job) (output string, inputTokens, outputTokens int64, err error)

// Scheduler owns the job map and the single run-loop goroutine.
type Scheduler struct {
	mu   sync.Mutex
	jobs map[string]*Job
	runs map[string][]RunRecord // job id -> recent run history, capped

	run RunFunc

	wakeCh chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
	running bool
}

const maxRunHistory = 50

func New(run RunFunc) *Scheduler {
	return &Scheduler{
		jobs:   make(map[string]*Job),
		runs:   make(map[string][]RunRecord),
		run:    run,
		wakeCh: make(chan struct{}, 1),
	}
}

// Start launches the run loop. It is safe to call Stop followed by Start
// again.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	s.mu.Unlock()

	go s.loop(loopCtx)
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.running = false
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) wake() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	for {
		wait := s.nextWait()
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.wakeCh:
			timer.Stop()
		case <-timer.C:
		}
		s.runDue(ctx)
	}
}

func (s *Scheduler) nextWait() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	var earliest *int64
	for _, job := range s.jobs {
		if !job.Enabled || job.State.NextRunAtMs == nil {
			continue
		}
		if earliest == nil || *job.State.NextRunAtMs < *earliest {
			earliest = job.State.NextRunAtMs
		}
	}
	if earliest == nil {
		return time.Minute
	}
	d := time.Duration(*earliest-nowMs()) * time.Millisecond
	if d < 0 {
		return 0
	}
	if d > time.Minute {
		return time.Minute
	}
	return d
}

func (s *Scheduler) runDue(ctx context.Context) {
	now := nowMs()

	s.mu.Lock()
	var due []*Job
	for _, job := range s.jobs {
		if job.Enabled && job.State.NextRunAtMs != nil && *job.State.NextRunAtMs <= now {
			due = append(due, job)
		}
	}
	s.mu.Unlock()

	for _, job := range due {
		s.fire(ctx, job)
	}
}

func (s *Scheduler) fire(ctx context.Context, job *Job) {
	start := nowMs()

	s.mu.Lock()
	job.State.RunningAtMs = &start
	s.mu.Unlock()

	output, inTok, outTok, err := s.run(ctx, job)
	finish := nowMs()

	status := RunOk
	var errMsg string
	if err != nil {
		status = RunError
		errMsg = err.Error()
		slog.Error("scheduled job failed", "job_id", job.ID, "name", job.Name, "error", err)
	}

	record := RunRecord{
		JobID: job.ID, StartedAtMs: start, FinishedAtMs: finish, Status: status,
		Error: errMsg, DurationMs: finish - start, Output: output,
		InputTokens: inTok, OutputTokens: outTok,
	}

	s.mu.Lock()
	job.State.RunningAtMs = nil
	job.State.LastRunAtMs = &finish
	job.State.LastStatus = &status
	if errMsg != "" {
		job.State.LastError = &errMsg
	}
	dur := finish - start
	job.State.LastDurationMs = &dur

	s.runs[job.ID] = append(s.runs[job.ID], record)
	if len(s.runs[job.ID]) > maxRunHistory {
		s.runs[job.ID] = s.runs[job.ID][len(s.runs[job.ID])-maxRunHistory:]
	}

	if job.DeleteAfterRun {
		delete(s.jobs, job.ID)
		delete(s.runs, job.ID)
	} else {
		next, ok := nextRunAfter(job.Schedule, finish)
		if ok {
			job.State.NextRunAtMs = &next
		} else {
			job.State.NextRunAtMs = nil
		}
		job.UpdatedAtMs = finish
	}
	s.mu.Unlock()
}

// Create validates and registers a new job, computing its first
// NextRunAtMs.
func (s *Scheduler) Create(job Job) (*Job, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	next, ok := nextRunAfter(job.Schedule, nowMs())
	if !ok {
		return nil, merr.New(merr.KindInvalidInput, "schedule never fires")
	}
	job.State = JobState{NextRunAtMs: &next}
	now := nowMs()
	job.CreatedAtMs, job.UpdatedAtMs = now, now
	if !job.Enabled {
		job.State.NextRunAtMs = nil
	}

	s.mu.Lock()
	s.jobs[job.ID] = &job
	s.mu.Unlock()
	s.wake()
	return &job, nil
}

// Update replaces an existing job's schedule/payload/target/sandbox in
// place, recomputing NextRunAtMs the same way Create does.
func (s *Scheduler) Update(id string, job Job) (*Job, error) {
	s.mu.Lock()
	existing, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		return nil, merr.New(merr.KindNotFound, fmt.Sprintf("job %s not found", id))
	}

	job.ID = id
	job.CreatedAtMs = existing.CreatedAtMs
	job.UpdatedAtMs = nowMs()
	job.State = JobState{}
	if job.Enabled {
		next, ok := nextRunAfter(job.Schedule, nowMs())
		if !ok {
			return nil, merr.New(merr.KindInvalidInput, "schedule never fires")
		}
		job.State.NextRunAtMs = &next
	}

	s.mu.Lock()
	s.jobs[id] = &job
	s.mu.Unlock()
	s.wake()
	return &job, nil
}

// RunNow fires a job immediately, outside its normal schedule, and returns
// the resulting run record.
func (s *Scheduler) RunNow(ctx context.Context, id string) (*RunRecord, error) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		return nil, merr.New(merr.KindNotFound, fmt.Sprintf("job %s not found", id))
	}

	s.fire(ctx, job)

	runs := s.Runs(id)
	if len(runs) == 0 {
		return nil, merr.New(merr.KindInternal, "job ran but produced no run record")
	}
	last := runs[len(runs)-1]
	return &last, nil
}

func (s *Scheduler) Get(id string) (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	return j, ok
}

func (s *Scheduler) List() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	return out
}

func (s *Scheduler) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return merr.New(merr.KindNotFound, fmt.Sprintf("job %s not found", id))
	}
	delete(s.jobs, id)
	delete(s.runs, id)
	return nil
}

// Toggle flips Enabled and recomputes NextRunAtMs from "now" rather than
// drifting from a stale schedule.
func (s *Scheduler) Toggle(id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return merr.New(merr.KindNotFound, fmt.Sprintf("job %s not found", id))
	}
	job.Enabled = enabled
	if enabled {
		next, ok := nextRunAfter(job.Schedule, nowMs())
		if ok {
			job.State.NextRunAtMs = &next
		}
	} else {
		job.State.NextRunAtMs = nil
	}
	job.UpdatedAtMs = nowMs()
	s.wake()
	return nil
}

func (s *Scheduler) Runs(id string) []RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RunRecord(nil), s.runs[id]...)
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{JobCount: len(s.jobs), Running: s.running}
	for _, j := range s.jobs {
		if j.Enabled {
			st.EnabledCount++
		}
		if j.State.NextRunAtMs != nil && (st.NextRunAtMs == nil || *j.State.NextRunAtMs < *st.NextRunAtMs) {
			st.NextRunAtMs = j.State.NextRunAtMs
		}
	}
	return st
}

// nextRunAfter computes a schedule's next fire time strictly after afterMs,
// recomputed fresh each time (never accumulated) to avoid drift.
func nextRunAfter(sched Schedule, afterMs int64) (int64, bool) {
	switch sched.Kind {
	case ScheduleAt:
		if sched.AtMs > afterMs {
			return sched.AtMs, true
		}
		return 0, false // one-shot, already past
	case ScheduleEvery:
		if sched.EveryMs <= 0 {
			return 0, false
		}
		anchor := int64(0)
		if sched.AnchorMs != nil {
			anchor = *sched.AnchorMs
		}
		elapsed := afterMs - anchor
		if elapsed < 0 {
			return anchor, true
		}
		n := elapsed/sched.EveryMs + 1
		return anchor + n*sched.EveryMs, true
	case ScheduleCron:
		loc := time.Local
		if sched.Tz != "" && sched.Tz != "local" {
			if l, err := time.LoadLocation(sched.Tz); err == nil {
				loc = l
			}
		}
		after := time.UnixMilli(afterMs).In(loc)
		next, err := gronx.NextTickAfter(sched.Expr, after, false)
		if err != nil {
			return 0, false
		}
		return next.UnixMilli(), true
	default:
		return 0, false
	}
}
