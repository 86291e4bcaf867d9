package worker

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/rzbill/queuectl/pkg/log"
)

const (
	stopPollInterval = 100 * time.Millisecond
	sigtermGrace     = 500 * time.Millisecond
)

// ActiveWorker describes one live worker known to this supervisor instance.
type ActiveWorker struct {
	PID    int           `json:"pid"`
	Uptime time.Duration `json:"uptime"`
}

// Supervisor owns the pool of worker processes. Spawned workers are tracked
// both in memory and in the durable registry; Stop reconciles against the
// registry so it also reaches workers spawned by earlier supervisors.
type Supervisor struct {
	dataDir  string
	registry *Registry
	logger   *log.Logger

	pool []RegistryEntry
}

// NewSupervisor builds a supervisor over dataDir.
func NewSupervisor(dataDir string, registry *Registry, logger *log.Logger) *Supervisor {
	return &Supervisor{
		dataDir:  dataDir,
		registry: registry,
		logger:   logger.With("component", "supervisor"),
	}
}

// Start spawns count worker processes, each re-executing this binary as
// `worker run` against the same data directory. Workers are detached into
// their own session so they outlive the starting command; their output goes
// to worker.log in the data dir.
func (s *Supervisor) Start(count int) error {
	if count < 1 {
		return fmt.Errorf("worker count must be >= 1, got %d", count)
	}
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	logPath := filepath.Join(s.dataDir, "worker.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open worker log: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	for i := 0; i < count; i++ {
		cmd := exec.Command(exe, "worker", "run", "--data-dir", s.dataDir)
		cmd.Stdout = logFile
		cmd.Stderr = logFile
		cmd.Env = append(os.Environ(), "QUEUECTL_LOG_FORMAT=json")
		cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("spawn worker %d: %w", i+1, err)
		}
		pid := cmd.Process.Pid
		start := time.Now()
		if err := s.registry.Add(pid, start); err != nil {
			s.logger.Warn("could not register spawned worker", "pid", pid, "error", err)
		}
		s.pool = append(s.pool, RegistryEntry{PID: pid, StartTime: start})
		// Detach: the worker deregisters itself on exit; we never wait on it.
		_ = cmd.Process.Release()
		s.logger.Info("worker spawned", "pid", pid)
	}
	return nil
}

// Stop shuts down every worker in the durable registry, not just the ones
// this instance spawned. Cooperative first (stop markers), then SIGTERM,
// then SIGKILL after the timeout. Individual failures are swallowed and the
// worker is counted as stopped; shutdown is best-effort and never fails.
func (s *Supervisor) Stop(timeout time.Duration) int {
	entries := s.registry.Entries()
	for _, e := range entries {
		if err := s.registry.RequestStop(e.PID); err != nil {
			s.logger.Warn("could not write stop marker", "pid", e.PID, "error", err)
		}
	}

	deadline := time.Now().Add(timeout)
	stopped := 0
	for _, e := range entries {
		for pidAlive(e.PID) && time.Now().Before(deadline) {
			time.Sleep(stopPollInterval)
		}
		if pidAlive(e.PID) {
			s.logger.Info("escalating to forceful kill", "pid", e.PID)
			kill(e.PID)
		}
		if err := s.registry.Remove(e.PID); err != nil {
			s.logger.Warn("could not deregister worker", "pid", e.PID, "error", err)
		}
		s.registry.ClearStop(e.PID)
		stopped++
	}

	s.pool = nil
	return stopped
}

// ListActive returns the live workers spawned by this instance, pruning
// dead ones from the pool. Workers known only to the durable registry are
// not reported here; they belong to other supervisor processes.
func (s *Supervisor) ListActive() []ActiveWorker {
	kept := s.pool[:0:0]
	var out []ActiveWorker
	for _, e := range s.pool {
		if !pidAlive(e.PID) {
			continue
		}
		kept = append(kept, e)
		out = append(out, ActiveWorker{PID: e.PID, Uptime: time.Since(e.StartTime).Truncate(time.Second)})
	}
	s.pool = kept
	return out
}

// RegistryEntries exposes the durable registry for status reporting.
func (s *Supervisor) RegistryEntries() []RegistryEntry {
	return s.registry.Entries()
}

// ListRegistered reports every live worker in the durable registry,
// regardless of which supervisor process spawned it. Entries whose pid is
// gone are deregistered on the way through.
func (s *Supervisor) ListRegistered() []ActiveWorker {
	var out []ActiveWorker
	for _, e := range s.registry.Entries() {
		if !pidAlive(e.PID) {
			if err := s.registry.Remove(e.PID); err != nil {
				s.logger.Warn("could not prune dead worker", "pid", e.PID, "error", err)
			}
			continue
		}
		out = append(out, ActiveWorker{PID: e.PID, Uptime: time.Since(e.StartTime).Truncate(time.Second)})
	}
	return out
}

func pidAlive(pid int) bool {
	alive, err := process.PidExists(int32(pid))
	return err == nil && alive
}

// kill escalates SIGTERM then SIGKILL. Errors (already exited, permission)
// are ignored; the caller treats the worker as stopped either way.
func kill(pid int) {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return
	}
	_ = proc.Signal(syscall.SIGTERM)
	time.Sleep(sigtermGrace)
	if pidAlive(pid) {
		_ = proc.Signal(syscall.SIGKILL)
	}
}
