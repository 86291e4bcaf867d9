package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/queuectl/internal/config"
	"github.com/rzbill/queuectl/internal/job"
	"github.com/rzbill/queuectl/internal/queue"
	"github.com/rzbill/queuectl/internal/store"
	"github.com/rzbill/queuectl/pkg/log"
)

type testEnv struct {
	engine   *queue.Engine
	store    *store.Store
	registry *Registry
	worker   *Worker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "jobs.json"))
	require.NoError(t, err)
	cfg, err := config.Open(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
	reg, err := OpenRegistry(dir)
	require.NoError(t, err)
	engine := queue.New(st, cfg)
	w := New(engine, reg, log.NewNop(), Options{PollInterval: 20 * time.Millisecond})
	return &testEnv{engine: engine, store: st, registry: reg, worker: w}
}

// waitForState polls until the job reaches state or the deadline passes.
func waitForState(t *testing.T, st *store.Store, id string, want job.State, timeout time.Duration) job.Job {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		j, err := st.Get(id)
		if err == nil && j.State == want {
			return j
		}
		time.Sleep(10 * time.Millisecond)
	}
	j, _ := st.Get(id)
	t.Fatalf("job %s never reached %s (last: %s)", id, want, j.State)
	return job.Job{}
}

func TestRunExitsOnContextCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- env.worker.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not exit on cancel")
	}

	// Registry entry cleaned up on exit.
	assert.Empty(t, env.registry.Entries())
}

func TestRunExitsOnStopMarker(t *testing.T) {
	env := newTestEnv(t)
	done := make(chan error, 1)
	go func() { done <- env.worker.Run(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, env.registry.RequestStop(os.Getpid()))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not exit on stop marker")
	}
	assert.False(t, env.registry.StopRequested(os.Getpid()), "stop marker cleaned up")
}

func TestWorkerCompletesJobAndCapturesStdout(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.engine.Enqueue("ok", "echo hello", queue.EnqueueOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { defer close(done); _ = env.worker.Run(ctx) }()
	t.Cleanup(func() { cancel(); <-done })

	j := waitForState(t, env.store, "ok", job.StateCompleted, 5*time.Second)
	// Output is persisted separately after completion; give it a moment.
	deadline := time.Now().Add(2 * time.Second)
	for j.Stdout == nil && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
		j, _ = env.store.Get("ok")
	}
	require.NotNil(t, j.Stdout)
	assert.Equal(t, "hello\n", *j.Stdout)
}

func TestWorkerDeadLettersFailingJob(t *testing.T) {
	env := newTestEnv(t)
	zero := 0
	_, err := env.engine.Enqueue("bad", "echo oops >&2; exit 3", queue.EnqueueOptions{MaxRetries: &zero})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { defer close(done); _ = env.worker.Run(ctx) }()
	t.Cleanup(func() { cancel(); <-done })

	j := waitForState(t, env.store, "bad", job.StateDead, 5*time.Second)
	assert.Equal(t, 1, j.Attempts)
	require.NotNil(t, j.ErrorMessage)
	assert.Equal(t, "oops\n", *j.ErrorMessage, "stderr wins as the failure message")
	require.NotNil(t, j.Stderr)
	assert.Equal(t, "oops\n", *j.Stderr)
}

func TestFailureMessagePrecedence(t *testing.T) {
	_, _, err := runCommand("exit 7")
	require.Error(t, err)
	assert.Equal(t, "exit:7", failureMessage("", "", err))
	assert.Equal(t, "from stderr", failureMessage("from stdout", "from stderr", err))
	assert.Equal(t, "from stdout", failureMessage("from stdout", "", err))
}

func TestRunCommandCapturesBothStreams(t *testing.T) {
	stdout, stderr, err := runCommand("echo out; echo err >&2")
	require.NoError(t, err)
	assert.Equal(t, "out\n", stdout)
	assert.Equal(t, "err\n", stderr)
}
