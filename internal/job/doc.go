// Package job defines the Job record, its lifecycle states, and the partial
// update (Patch) applied by the store.
//
// # Lifecycle
//
//	(none) --enqueue--------------> pending
//	(none) --enqueue(run_at)------> scheduled
//	pending/scheduled --claim-----> processing
//	processing --complete---------> completed   (terminal)
//	processing --fail (retryable)-> scheduled   (next_retry_at = now + backoff)
//	processing --fail (exhausted)-> dead        (terminal unless replayed)
//	dead --dlq retry--------------> pending     (attempts reset, error cleared)
//
// Outside of dead, attempts <= max_retries always holds; the failure that
// would push attempts past max_retries is the one that dead-letters the job.
package job
