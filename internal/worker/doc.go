// Package worker contains the worker process loop and the Supervisor that
// spawns, tracks, and stops worker processes.
//
// # Process model
//
// Each worker is an independent OS process (the queuectl binary re-executed
// as `worker run`), bound to the same data directory as every other process.
// A durable registry file records {pid, start_time} for every live worker,
// so a supervisor started later, in a different process, can still find
// and stop workers it did not spawn.
//
// # Shutdown
//
// Shutdown is cooperative first: the supervisor drops a per-pid stop marker
// that the worker polls once per loop iteration, and SIGTERM/SIGINT cancel
// the worker's context. Worst-case cooperative latency is one poll interval
// plus one command's execution time. After the stop timeout the supervisor
// escalates to SIGTERM and then SIGKILL. Stop never fails the overall call:
// workers that are already gone or unreachable are counted as stopped.
//
// There is no per-job execution timeout. A stuck command blocks its worker
// until the supervisor kills the process; that is a documented limitation of
// the design, not an oversight.
package worker
