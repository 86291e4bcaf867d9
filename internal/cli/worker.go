package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rzbill/queuectl/internal/worker"
)

const defaultStopTimeout = 10 * time.Second

// newWorkerCommand constructs the `worker` command group.
func newWorkerCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Start, stop, and inspect worker processes",
	}
	cmd.AddCommand(
		newWorkerStartCommand(app),
		newWorkerStopCommand(app),
		newWorkerListCommand(app),
		newWorkerRunCommand(app),
	)
	return cmd
}

func newWorkerStartCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Spawn detached worker processes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			count, _ := cmd.Flags().GetInt("count")
			registry, err := app.Registry()
			if err != nil {
				return err
			}
			sup := worker.NewSupervisor(app.DataDir, registry, app.Logger)
			if err := sup.Start(count); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "started %d worker(s)\n", count)
			return nil
		},
	}
	cmd.Flags().Int("count", 1, "Number of worker processes to spawn")
	return cmd
}

func newWorkerStopCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop every registered worker",
		Long: `Stop every registered worker, including workers started by other
invocations. Workers get a chance to finish their current job; past the
timeout they are killed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			timeout, _ := cmd.Flags().GetDuration("timeout")
			registry, err := app.Registry()
			if err != nil {
				return err
			}
			sup := worker.NewSupervisor(app.DataDir, registry, app.Logger)
			stopped := sup.Stop(timeout)
			fmt.Fprintf(cmd.OutOrStdout(), "stopped %d worker(s)\n", stopped)
			return nil
		},
	}
	cmd.Flags().Duration("timeout", defaultStopTimeout, "How long to wait before killing workers")
	return cmd
}

func newWorkerListCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered live workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, err := app.Registry()
			if err != nil {
				return err
			}
			sup := worker.NewSupervisor(app.DataDir, registry, app.Logger)
			active := sup.ListRegistered()
			if len(active) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no active workers")
				return nil
			}
			for _, w := range active {
				fmt.Fprintf(cmd.OutOrStdout(), "pid %d (up %s)\n", w.PID, w.Uptime)
			}
			return nil
		},
	}
}

// newWorkerRunCommand is the entry point for spawned worker processes. It
// is hidden: operators start workers with `worker start`, which re-executes
// this binary as `worker run`.
func newWorkerRunCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:    "run",
		Short:  "Run a worker loop in the foreground",
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			poll, _ := cmd.Flags().GetDuration("poll-interval")
			engine, err := app.Engine()
			if err != nil {
				return err
			}
			registry, err := app.Registry()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			w := worker.New(engine, registry, app.Logger, worker.Options{PollInterval: poll})
			return w.Run(ctx)
		},
	}
	cmd.Flags().Duration("poll-interval", worker.DefaultPollInterval, "How often to poll for runnable jobs")
	return cmd
}
