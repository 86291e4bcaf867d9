package job

import "time"

// State is the lifecycle state of a job.
type State string

const (
	// StatePending means the job is immediately claimable.
	StatePending State = "pending"
	// StateScheduled means the job is claimable once next_retry_at has passed.
	StateScheduled State = "scheduled"
	// StateProcessing means a worker currently owns the job.
	StateProcessing State = "processing"
	// StateCompleted means the command exited successfully. Terminal.
	StateCompleted State = "completed"
	// StateFailed is never produced by the engine itself (failures either
	// reschedule or dead-letter); it is retained as a bucket for foreign or
	// corrupt records encountered in a shared table.
	StateFailed State = "failed"
	// StateDead means the retry budget is exhausted. Terminal unless the job
	// is explicitly replayed from the DLQ.
	StateDead State = "dead"
)

// Known reports whether s is one of the states this engine writes or reads.
func (s State) Known() bool {
	switch s {
	case StatePending, StateScheduled, StateProcessing, StateCompleted, StateFailed, StateDead:
		return true
	}
	return false
}

// Job is a single queued command. IDs are caller-supplied and assumed unique;
// the store does not generate or deduplicate them.
type Job struct {
	ID         string    `json:"id"`
	Command    string    `json:"command"`
	State      State     `json:"state"`
	Attempts   int       `json:"attempts"`
	MaxRetries int       `json:"max_retries"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Optional fields. Absent means "not set", not a zero sentinel.
	ErrorMessage *string    `json:"error_message,omitempty"`
	NextRetryAt  *time.Time `json:"next_retry_at,omitempty"`
	Stdout       *string    `json:"stdout,omitempty"`
	Stderr       *string    `json:"stderr,omitempty"`
}

// New returns a pending job with fresh timestamps.
func New(id, command string, maxRetries int) Job {
	now := time.Now().UTC()
	return Job{
		ID:         id,
		Command:    command,
		State:      StatePending,
		Attempts:   0,
		MaxRetries: maxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// RunnableAt reports whether the job is claimable at the given instant:
// pending or scheduled, with no next_retry_at still in the future.
func (j Job) RunnableAt(now time.Time) bool {
	if j.State != StatePending && j.State != StateScheduled {
		return false
	}
	if j.NextRetryAt != nil && j.NextRetryAt.After(now) {
		return false
	}
	return true
}

// Patch is a partial update merged into a stored job. Pointer fields set the
// value when non-nil; Clear* flags remove the corresponding optional field.
// Fields left nil (or flags left false) keep the stored value.
type Patch struct {
	State      *State
	Attempts   *int
	MaxRetries *int

	ErrorMessage      *string
	ClearErrorMessage bool
	NextRetryAt       *time.Time
	ClearNextRetryAt  bool
	Stdout            *string
	Stderr            *string
}

// Apply merges p into j and refreshes UpdatedAt.
func (p Patch) Apply(j Job, now time.Time) Job {
	if p.State != nil {
		j.State = *p.State
	}
	if p.Attempts != nil {
		j.Attempts = *p.Attempts
	}
	if p.MaxRetries != nil {
		j.MaxRetries = *p.MaxRetries
	}
	if p.ErrorMessage != nil {
		j.ErrorMessage = p.ErrorMessage
	} else if p.ClearErrorMessage {
		j.ErrorMessage = nil
	}
	if p.NextRetryAt != nil {
		j.NextRetryAt = p.NextRetryAt
	} else if p.ClearNextRetryAt {
		j.NextRetryAt = nil
	}
	if p.Stdout != nil {
		j.Stdout = p.Stdout
	}
	if p.Stderr != nil {
		j.Stderr = p.Stderr
	}
	j.UpdatedAt = now.UTC()
	return j
}

// RetryDelay returns the backoff delay for the k-th failure, where attempts
// is k after the increment: base^(attempts-1) seconds. The first failure is
// always 1s regardless of base. Integer exponentiation on purpose.
func RetryDelay(base, attempts int) time.Duration {
	if base < 1 {
		base = 1
	}
	delay := 1
	for i := 1; i < attempts; i++ {
		delay *= base
	}
	return time.Duration(delay) * time.Second
}
