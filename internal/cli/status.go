package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rzbill/queuectl/internal/worker"
)

// newStatusCommand constructs the `status` command.
func newStatusCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show per-state job counts and active workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := app.Engine()
			if err != nil {
				return err
			}
			stats, err := engine.GetStats()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pending:    %d\n", stats.Pending)
			fmt.Fprintf(out, "processing: %d\n", stats.Processing)
			fmt.Fprintf(out, "completed:  %d\n", stats.Completed)
			fmt.Fprintf(out, "failed:     %d\n", stats.Failed)
			fmt.Fprintf(out, "dead:       %d\n", stats.Dead)
			fmt.Fprintf(out, "total:      %d\n", stats.Total)

			registry, err := app.Registry()
			if err != nil {
				return err
			}
			sup := worker.NewSupervisor(app.DataDir, registry, app.Logger)
			active := sup.ListRegistered()
			fmt.Fprintf(out, "\nworkers: %d active\n", len(active))
			for _, w := range active {
				fmt.Fprintf(out, "  pid %d (up %s)\n", w.PID, w.Uptime.Truncate(time.Second))
			}
			return nil
		},
	}
}
