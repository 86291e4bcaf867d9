// Package store implements the shared, file-backed job table.
//
// The table is a single JSON document ({"jobs": [...]}) mutated by every
// queuectl process on the machine: the CLI, each worker process, and any
// supervisor. Safety under that concurrency comes from two layers:
//
//   - An exclusive flock on a sidecar lock file guards each single read and
//     each single write, so readers never observe a torn file. The lock is
//     never held across a full read-modify-write cycle.
//   - Read-modify-write races are resolved optimistically: a bounded retry
//     loop for plain mutations, and a compare-and-transition check for state
//     changes (CompareAndTransition), which is the only safe primitive for
//     concurrent claims.
//
// Every write builds the full new document, writes it to a temporary file,
// fsyncs, and atomically renames it over the table. A crash mid-write leaves
// the previously committed table intact; the stray temp file is abandoned.
package store
