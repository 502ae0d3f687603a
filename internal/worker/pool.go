// Package worker implements the process-wide job registry (spec §4.16): a
// bounded pool of worker goroutines that run stage/terrain-generation work
// while the HTTP layer stays non-blocking, plus a CLI progress reporter.
package worker

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// JobState mirrors types.JobState without importing internal/types, so this
// package stays free of a dependency on the stage/pipeline data model —
// workers run arbitrary funcs, not specifically pipeline stages.
type JobState string

const (
	StateQueued    JobState = "queued"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// Job is one entry in the process-wide registry.
type Job struct {
	ID       string
	State    JobState
	Progress float64 // 0..100
	Stage    string
	Result   interface{}
	Err      string

	cancelRequested atomic.Bool
}

// ProgressFunc reports 0..100 progress and an optional current-stage label.
type ProgressFunc func(percent float64, stageLabel string)

// Work is the function a submitted job runs. It receives a progress
// reporter and a cancellation check; it must poll Cancelled() at its own
// internal checkpoints — the registry never aborts a goroutine outright.
type Work func(report ProgressFunc, cancelled func() bool) (result interface{}, err error)

// Registry is the process-wide job_id -> *Job mapping. A single mutex
// protects map lookups only; it is never held across I/O or while a worker
// runs (spec §5's "holders never perform I/O while the lock is held").
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*Job

	sem chan struct{} // bounds concurrent running jobs
}

// NewRegistry returns a Registry whose worker pool is sized by workers (or
// GOMAXPROCS if workers <= 0, the teacher's runtime.NumCPU() default from
// internal/cmd/serve.go).
func NewRegistry(workers int) *Registry {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Registry{
		jobs: make(map[string]*Job),
		sem:  make(chan struct{}, workers),
	}
}

// Submit creates a Queued job and dispatches it onto the worker pool,
// returning immediately with the job id. The HTTP layer never blocks here.
func (r *Registry) Submit(work Work) string {
	id := uuid.NewString()
	job := &Job{ID: id, State: StateQueued}

	r.mu.Lock()
	r.jobs[id] = job
	r.mu.Unlock()

	go r.run(job, work)
	return id
}

func (r *Registry) run(job *Job, work Work) {
	r.sem <- struct{}{}
	defer func() { <-r.sem }()

	r.mu.Lock()
	job.State = StateRunning
	r.mu.Unlock()

	report := func(percent float64, stageLabel string) {
		r.mu.Lock()
		job.Progress = percent
		if stageLabel != "" {
			job.Stage = stageLabel
		}
		r.mu.Unlock()
	}
	cancelled := func() bool { return job.cancelRequested.Load() }

	result, err := work(report, cancelled)

	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case cancelled():
		job.State = StateCancelled
	case err != nil:
		job.State = StateFailed
		job.Err = err.Error()
	default:
		job.State = StateCompleted
		job.Result = result
		job.Progress = 100
	}
}

// Get returns a snapshot copy of the job, or ok=false if unknown.
func (r *Registry) Get(id string) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return Job{ID: j.ID, State: j.State, Progress: j.Progress, Stage: j.Stage, Result: j.Result, Err: j.Err}, true
}

// Cancel sets the job's cooperative cancel flag. DELETE /jobs/{id} maps
// here: it does not stop the goroutine, it asks the work func to notice.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	j, ok := r.jobs[id]
	r.mu.Unlock()
	if !ok {
		return false
	}
	j.cancelRequested.Store(true)
	return true
}

