package worker

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/queuectl/pkg/log"
)

func newTestSupervisor(t *testing.T) (*Supervisor, *Registry) {
	t.Helper()
	dir := t.TempDir()
	reg, err := OpenRegistry(dir)
	require.NoError(t, err)
	return NewSupervisor(dir, reg, log.NewNop()), reg
}

// spawnSleeper starts a long-running stand-in for a worker process and
// registers its pid, as a worker from a previous supervisor run would be.
func spawnSleeper(t *testing.T, reg *Registry) int {
	t.Helper()
	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid
	require.NoError(t, reg.Add(pid, time.Now()))
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
	})
	// Reap in the background so the killed child does not linger as a zombie
	// (zombies still count as alive to liveness checks).
	go func() { _, _ = cmd.Process.Wait() }()
	return pid
}

func TestStopKillsRegistryWorkers(t *testing.T) {
	sup, reg := newTestSupervisor(t)
	pid := spawnSleeper(t, reg)
	require.True(t, pidAlive(pid))

	stopped := sup.Stop(300 * time.Millisecond)
	assert.Equal(t, 1, stopped)

	// The sleeper ignores stop markers, so Stop escalated to a kill.
	deadline := time.Now().Add(2 * time.Second)
	for pidAlive(pid) && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	assert.False(t, pidAlive(pid))
	assert.Empty(t, reg.Entries(), "registry pruned after stop")
}

func TestStopCountsAlreadyDeadWorkers(t *testing.T) {
	sup, reg := newTestSupervisor(t)
	// A pid that is long gone; stop must swallow the failure and count it.
	require.NoError(t, reg.Add(1<<30, time.Now()))

	stopped := sup.Stop(100 * time.Millisecond)
	assert.Equal(t, 1, stopped)
	assert.Empty(t, reg.Entries())
}

func TestStopWithEmptyRegistry(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	assert.Equal(t, 0, sup.Stop(100*time.Millisecond))
}

func TestListActivePrunesDeadWorkers(t *testing.T) {
	sup, _ := newTestSupervisor(t)

	live := exec.Command("sleep", "30")
	require.NoError(t, live.Start())
	t.Cleanup(func() {
		_ = live.Process.Kill()
		_, _ = live.Process.Wait()
	})

	dead := exec.Command("true")
	require.NoError(t, dead.Start())
	deadPID := dead.Process.Pid
	_, _ = dead.Process.Wait()

	sup.pool = []RegistryEntry{
		{PID: live.Process.Pid, StartTime: time.Now().Add(-3 * time.Second)},
		{PID: deadPID, StartTime: time.Now()},
	}

	active := sup.ListActive()
	require.Len(t, active, 1)
	assert.Equal(t, live.Process.Pid, active[0].PID)
	assert.GreaterOrEqual(t, active[0].Uptime, 2*time.Second)
	assert.Len(t, sup.pool, 1, "dead worker pruned from pool")
}

func TestStartRejectsBadCount(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	require.Error(t, sup.Start(0))
}
