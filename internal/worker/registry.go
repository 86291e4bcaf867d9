package worker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"
)

// RegistryEntry is one live worker process in the durable registry.
type RegistryEntry struct {
	PID       int       `json:"pid"`
	StartTime time.Time `json:"start_time"`
}

// Registry is the durable worker registry: a JSON array in the data dir,
// rewritten atomically under a file lock like the job table. It is the
// source of truth for Stop, so it also reaches workers spawned by an
// earlier, long-gone supervisor process.
type Registry struct {
	dataDir string
	path    string
	lock    *flock.Flock
}

// OpenRegistry returns a registry handle rooted at dataDir.
func OpenRegistry(dataDir string) (*Registry, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	path := filepath.Join(dataDir, "workers.json")
	return &Registry{
		dataDir: dataDir,
		path:    path,
		lock:    flock.New(path + ".lock"),
	}, nil
}

// Entries returns the registered workers. Read trouble yields an empty
// slice; a missing or corrupt registry just means no known workers.
func (r *Registry) Entries() []RegistryEntry {
	if err := r.lock.Lock(); err != nil {
		return nil
	}
	b, err := os.ReadFile(r.path)
	_ = r.lock.Unlock()
	if err != nil {
		return nil
	}
	var entries []RegistryEntry
	if json.Unmarshal(b, &entries) != nil {
		return nil
	}
	return entries
}

func (r *Registry) write(entries []RegistryEntry) error {
	if entries == nil {
		entries = []RegistryEntry{}
	}
	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := r.lock.Lock(); err != nil {
		return fmt.Errorf("lock registry: %w", err)
	}
	defer func() { _ = r.lock.Unlock() }()
	if err := atomic.WriteFile(r.path, bytes.NewReader(b)); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	return nil
}

// Add registers pid, replacing any stale entry with the same pid.
func (r *Registry) Add(pid int, start time.Time) error {
	entries := r.Entries()
	kept := entries[:0:0]
	for _, e := range entries {
		if e.PID != pid {
			kept = append(kept, e)
		}
	}
	kept = append(kept, RegistryEntry{PID: pid, StartTime: start.UTC()})
	return r.write(kept)
}

// Remove deregisters pid. Removing an unknown pid is a no-op.
func (r *Registry) Remove(pid int) error {
	entries := r.Entries()
	kept := entries[:0:0]
	for _, e := range entries {
		if e.PID != pid {
			kept = append(kept, e)
		}
	}
	return r.write(kept)
}

// Stop markers: cooperative shutdown signaling that works even when normal
// signal delivery does not (e.g. a worker started by someone else's shell).

func (r *Registry) stopFile(pid int) string {
	return filepath.Join(r.dataDir, fmt.Sprintf("worker_%d.stop", pid))
}

// RequestStop drops the stop marker for pid.
func (r *Registry) RequestStop(pid int) error {
	return os.WriteFile(r.stopFile(pid), []byte(time.Now().UTC().Format(time.RFC3339)), 0o644)
}

// StopRequested reports whether a stop marker exists for pid.
func (r *Registry) StopRequested(pid int) bool {
	_, err := os.Stat(r.stopFile(pid))
	return err == nil
}

// ClearStop removes the stop marker for pid, if any.
func (r *Registry) ClearStop(pid int) {
	_ = os.Remove(r.stopFile(pid))
}
