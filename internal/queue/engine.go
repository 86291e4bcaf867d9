package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/rzbill/queuectl/internal/config"
	"github.com/rzbill/queuectl/internal/job"
	"github.com/rzbill/queuectl/internal/store"
)

// ErrInvalidState is returned when an operation requires a specific current
// state, e.g. replaying a job that is not in the dead-letter queue.
var ErrInvalidState = errors.New("invalid job state")

// DefaultListLimit caps List and ListDLQ when the caller does not choose.
const DefaultListLimit = 20

// Engine drives the job lifecycle. It holds no job state of its own; every
// operation consults the store so that concurrent processes stay coherent.
type Engine struct {
	store *store.Store
	cfg   *config.Store
	env   config.Overrides

	now func() time.Time // stubbed in tests
}

// New builds an Engine bound to the given store and config. QUEUECTL_*
// environment overrides are captured once at construction.
func New(st *store.Store, cfg *config.Store) *Engine {
	return &Engine{
		store: st,
		cfg:   cfg,
		env:   config.FromEnv(),
		now:   time.Now,
	}
}

// EnqueueOptions are the optional parts of an enqueue.
type EnqueueOptions struct {
	// MaxRetries overrides the configured default retry budget.
	MaxRetries *int
	// RunAt holds the job until an absolute instant; the job starts out
	// scheduled instead of pending.
	RunAt *time.Time
}

// Enqueue creates a new job. The id is the caller's responsibility and must
// be unique; duplicates are not checked.
func (e *Engine) Enqueue(id, command string, opts EnqueueOptions) (job.Job, error) {
	maxRetries, _ := e.env.Apply(e.cfg)
	if opts.MaxRetries != nil {
		maxRetries = *opts.MaxRetries
	}

	j := job.New(id, command, maxRetries)
	if opts.RunAt != nil {
		runAt := opts.RunAt.UTC()
		j.State = job.StateScheduled
		j.NextRetryAt = &runAt
	}
	created, err := e.store.Create(j)
	if err != nil {
		return job.Job{}, fmt.Errorf("enqueue %s: %w", id, err)
	}
	return created, nil
}

// ClaimNext finds the next runnable job and atomically marks it processing.
// Returns nil when nothing is runnable. Losing a claim race on a candidate
// moves on to the next candidate rather than retrying the same one.
func (e *Engine) ClaimNext() (*job.Job, error) {
	now := e.now()
	candidates, err := e.store.List("", 0)
	if err != nil {
		return nil, err
	}
	for _, candidate := range candidates {
		if !candidate.RunnableAt(now) {
			continue
		}
		ok, err := e.store.CompareAndTransition(candidate.ID, candidate.State, job.StateProcessing, job.Patch{})
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		// Re-read: other fields may have been touched concurrently; the CAS
		// already fixed the winning state.
		claimed, err := e.store.Get(candidate.ID)
		if err != nil {
			return nil, err
		}
		return &claimed, nil
	}
	return nil, nil
}

// Complete marks the job completed. Not gated on the current state; see the
// package comment for why.
func (e *Engine) Complete(id string) (job.Job, error) {
	if _, err := e.store.Get(id); err != nil {
		return job.Job{}, err
	}
	st := job.StateCompleted
	return e.store.Update(id, job.Patch{State: &st})
}

// RecordOutput persists captured stdout/stderr for a job, separately from
// the completion transition.
func (e *Engine) RecordOutput(id, stdout, stderr string) (job.Job, error) {
	return e.store.Update(id, job.Patch{Stdout: &stdout, Stderr: &stderr})
}

// Fail records a failed attempt. The persisted attempt counter is re-read
// and incremented; when the new value exceeds max_retries the job is
// dead-lettered, otherwise it is rescheduled with exponential backoff
// (backoff_base^(attempts-1) seconds).
func (e *Engine) Fail(id, errMsg string, stdout, stderr *string) (job.Job, error) {
	current, err := e.store.Get(id)
	if err != nil {
		return job.Job{}, err
	}
	_, backoffBase := e.env.Apply(e.cfg)

	attempts := current.Attempts + 1
	patch := job.Patch{
		Attempts:     &attempts,
		ErrorMessage: &errMsg,
		Stdout:       stdout,
		Stderr:       stderr,
	}

	if attempts > current.MaxRetries {
		dead := job.StateDead
		patch.State = &dead
		return e.store.Update(id, patch)
	}

	next := e.now().Add(job.RetryDelay(backoffBase, attempts)).UTC()
	scheduled := job.StateScheduled
	patch.State = &scheduled
	patch.NextRetryAt = &next
	return e.store.Update(id, patch)
}

// MoveToDLQ dead-letters a job unconditionally with the given reason.
func (e *Engine) MoveToDLQ(id, reason string) (job.Job, error) {
	dead := job.StateDead
	return e.store.Update(id, job.Patch{State: &dead, ErrorMessage: &reason})
}

// RetryFromDLQ replays a dead job: attempts reset to zero, error and retry
// schedule cleared, state back to pending.
func (e *Engine) RetryFromDLQ(id string) (job.Job, error) {
	current, err := e.store.Get(id)
	if err != nil {
		return job.Job{}, err
	}
	if current.State != job.StateDead {
		return job.Job{}, fmt.Errorf("%w: job %s is %s, not %s", ErrInvalidState, id, current.State, job.StateDead)
	}
	zero := 0
	pending := job.StatePending
	return e.store.Update(id, job.Patch{
		State:             &pending,
		Attempts:          &zero,
		ClearErrorMessage: true,
		ClearNextRetryAt:  true,
	})
}

// Stats are per-state job counts. Scheduled and unknown states both land in
// Failed: the bucket set mirrors the status report, which predates the
// scheduled state and is also where records with unrecognized states land.
type Stats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Dead       int `json:"dead"`
	Total      int `json:"total"`
}

// GetStats tallies the full table.
func (e *Engine) GetStats() (Stats, error) {
	jobs, err := e.store.List("", 0)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Total: len(jobs)}
	for _, j := range jobs {
		switch j.State {
		case job.StatePending:
			st.Pending++
		case job.StateProcessing:
			st.Processing++
		case job.StateCompleted:
			st.Completed++
		case job.StateDead:
			st.Dead++
		default:
			st.Failed++
		}
	}
	return st, nil
}

// List returns jobs in storage order, optionally filtered by state.
func (e *Engine) List(state job.State, limit int) ([]job.Job, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return e.store.List(state, limit)
}

// ListDLQ returns dead jobs.
func (e *Engine) ListDLQ(limit int) ([]job.Job, error) {
	return e.List(job.StateDead, limit)
}
