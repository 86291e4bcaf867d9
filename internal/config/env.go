package config

import (
	"os"
	"strconv"
)

// Overrides carries QUEUECTL_* environment overrides for the recognized
// keys. Nil fields mean "no override"; the file (or default) value applies.
type Overrides struct {
	MaxRetries  *int
	BackoffBase *int
}

// FromEnv reads QUEUECTL_MAX_RETRIES and QUEUECTL_BACKOFF_BASE. Malformed
// values are ignored; env overlays must never break a command.
func FromEnv() Overrides {
	var o Overrides
	if v := os.Getenv("QUEUECTL_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			o.MaxRetries = &n
		}
	}
	if v := os.Getenv("QUEUECTL_BACKOFF_BASE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			o.BackoffBase = &n
		}
	}
	return o
}

// Apply returns the effective values after overlaying o on the store.
func (o Overrides) Apply(s *Store) (maxRetries, backoffBase int) {
	maxRetries = s.MaxRetries()
	backoffBase = s.BackoffBase()
	if o.MaxRetries != nil {
		maxRetries = *o.MaxRetries
	}
	if o.BackoffBase != nil {
		backoffBase = *o.BackoffBase
	}
	return maxRetries, backoffBase
}
