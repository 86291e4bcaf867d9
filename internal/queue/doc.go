// Package queue implements the job lifecycle state machine on top of the
// document store: enqueue, claim, complete, fail-with-backoff, dead-letter,
// DLQ replay, and statistics.
//
// Claiming is the only mutual-exclusion mechanism in the system. ClaimNext
// scans the table in storage order and attempts a compare-and-transition to
// processing on the first runnable job; a claimant that loses the race moves
// on to the next candidate instead of retrying, which bounds claim latency
// and guarantees at most one concurrent claimant per job. FIFO order is a
// preference, not a starvation-free guarantee.
//
// Complete is deliberately not gated by a check against processing: any
// caller holding a job id can complete it. That permissiveness is a trust
// boundary of the single-host design, kept intentionally.
package queue
