// Package cli contains the Cobra commands for queuectl. Commands are a thin
// mapping onto the queue engine and worker supervisor; no queue logic lives
// here. Every command operates on a data directory (--data-dir flag or
// QUEUECTL_DATA_DIR) holding the job table, config file, and worker registry.
package cli
