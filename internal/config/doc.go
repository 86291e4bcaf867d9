// Package config provides the persisted queue configuration: a flat JSON
// key-value file in the data directory, rewritten atomically on every set.
//
// Recognized keys are max_retries (default 3) and backoff_base (default 2).
// Unknown keys found in the file are preserved on write but never defaulted.
// An unreadable or corrupt file falls back to the documented defaults; config
// trouble is recovered locally and never surfaced to callers.
//
// Example:
//
//	cfg, _ := config.Open(filepath.Join(dataDir, "config.json"))
//	retries := cfg.MaxRetries()
//	_ = cfg.Set(config.KeyBackoffBase, 3)
package config
