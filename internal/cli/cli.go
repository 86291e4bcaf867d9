package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rzbill/queuectl/internal/config"
	"github.com/rzbill/queuectl/internal/queue"
	"github.com/rzbill/queuectl/internal/store"
	"github.com/rzbill/queuectl/internal/worker"
	"github.com/rzbill/queuectl/pkg/log"
)

// App carries the per-invocation wiring shared by all commands.
type App struct {
	DataDir string
	Logger  *log.Logger
}

// Store opens the job table under the data dir.
func (a *App) Store() (*store.Store, error) {
	return store.Open(filepath.Join(a.DataDir, "jobs.json"))
}

// Config opens the config store under the data dir.
func (a *App) Config() (*config.Store, error) {
	return config.Open(filepath.Join(a.DataDir, "config.json"))
}

// Engine wires a queue engine over the data dir.
func (a *App) Engine() (*queue.Engine, error) {
	st, err := a.Store()
	if err != nil {
		return nil, err
	}
	cfg, err := a.Config()
	if err != nil {
		return nil, err
	}
	return queue.New(st, cfg), nil
}

// Registry opens the durable worker registry under the data dir.
func (a *App) Registry() (*worker.Registry, error) {
	return worker.OpenRegistry(a.DataDir)
}

// NewRoot constructs the root queuectl command and registers all command
// groups.
func NewRoot(logger *log.Logger) *cobra.Command {
	app := &App{Logger: logger}

	root := &cobra.Command{
		Use:           "queuectl",
		Short:         "A persistent, file-backed background job queue",
		Long:          "queuectl enqueues shell commands as jobs, runs them with a pool of worker processes, retries failures with exponential backoff, and dead-letters jobs that exhaust their retry budget.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("data-dir", config.DefaultDataDir(), "Directory for the job table, config, and worker registry")
	root.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		app.DataDir, _ = cmd.Flags().GetString("data-dir")
	}

	root.AddCommand(
		newEnqueueCommand(app),
		newListCommand(app),
		newStatusCommand(app),
		newDLQCommand(app),
		newConfigCommand(app),
		newWorkerCommand(app),
	)
	return root
}
