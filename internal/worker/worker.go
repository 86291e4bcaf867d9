package worker

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/rzbill/queuectl/internal/job"
	"github.com/rzbill/queuectl/internal/queue"
	"github.com/rzbill/queuectl/pkg/log"
)

const (
	// DefaultPollInterval is the sleep between empty claim attempts.
	DefaultPollInterval = 1 * time.Second
	// errorSleep follows any unexpected loop error; the loop is built to
	// ride out transient storage contention indefinitely.
	errorSleep = 500 * time.Millisecond
)

// Options tune a worker loop.
type Options struct {
	PollInterval time.Duration
}

// Worker runs the poll-claim-execute-update loop inside one worker process.
type Worker struct {
	engine   *queue.Engine
	registry *Registry
	logger   *log.Logger
	poll     time.Duration
}

// New builds a worker bound to an engine and the shared registry.
func New(engine *queue.Engine, registry *Registry, logger *log.Logger, opts Options) *Worker {
	poll := opts.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Worker{
		engine:   engine,
		registry: registry,
		logger:   logger.With("component", "worker", "pid", os.Getpid()),
		poll:     poll,
	}
}

// Run executes the worker loop until ctx is cancelled or a stop marker for
// this pid appears. The registry entry for this process is maintained here,
// so a worker started directly (not via the supervisor) is still tracked.
func (w *Worker) Run(ctx context.Context) error {
	pid := os.Getpid()
	if err := w.registry.Add(pid, time.Now()); err != nil {
		w.logger.Warn("could not register worker", "error", err)
	}
	defer func() {
		if err := w.registry.Remove(pid); err != nil {
			w.logger.Warn("could not deregister worker", "error", err)
		}
		w.registry.ClearStop(pid)
	}()

	w.logger.Info("worker started", "poll_interval", w.poll.String())
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping on signal")
			return nil
		default:
		}
		if w.registry.StopRequested(pid) {
			w.logger.Info("worker stopping on stop request")
			return nil
		}

		claimed, err := w.engine.ClaimNext()
		if err != nil {
			// Transient storage trouble must not kill the worker.
			w.logger.Warn("claim failed", "error", err)
			if !sleepCtx(ctx, errorSleep) {
				return nil
			}
			continue
		}
		if claimed == nil {
			if !sleepCtx(ctx, w.poll) {
				return nil
			}
			continue
		}

		w.runJob(*claimed)
	}
}

// runJob executes one claimed job's command and reports the outcome. All
// reporting errors are logged and swallowed; the job will be visible as
// stuck in processing rather than the worker crashing.
func (w *Worker) runJob(j job.Job) {
	logger := w.logger.With("job_id", j.ID)
	logger.Info("executing job", "command", j.Command)

	stdout, stderr, runErr := runCommand(j.Command)

	if runErr == nil {
		if _, err := w.engine.Complete(j.ID); err != nil {
			logger.Warn("could not mark job completed", "error", err)
			time.Sleep(errorSleep)
			return
		}
		if stdout != "" || stderr != "" {
			if _, err := w.engine.RecordOutput(j.ID, stdout, stderr); err != nil {
				logger.Warn("could not record job output", "error", err)
			}
		}
		logger.Info("job completed")
		return
	}

	msg := failureMessage(stdout, stderr, runErr)
	failed, err := w.engine.Fail(j.ID, msg, &stdout, &stderr)
	if err != nil {
		logger.Warn("could not mark job failed", "error", err)
		time.Sleep(errorSleep)
		return
	}
	logger.Info("job failed", "state", string(failed.State), "attempts", failed.Attempts, "error", msg)
}

// runCommand executes command through the shell with captured output. No
// execution timeout: a stuck command holds the worker until it is killed.
func runCommand(command string) (stdout, stderr string, err error) {
	cmd := exec.Command("sh", "-c", command)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err = cmd.Run()
	return outBuf.String(), errBuf.String(), err
}

// failureMessage mirrors the precedence used for the persisted error text:
// stderr, then stdout, then the raw exec error (exit code or launch failure).
func failureMessage(stdout, stderr string, runErr error) string {
	if stderr != "" {
		return stderr
	}
	if stdout != "" {
		return stdout
	}
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		return fmt.Sprintf("exit:%d", exitErr.ExitCode())
	}
	return runErr.Error()
}

// sleepCtx sleeps for d, returning false if ctx was cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
