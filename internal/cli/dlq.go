package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rzbill/queuectl/internal/queue"
)

// newDLQCommand constructs the `dlq` command group.
func newDLQCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect and replay dead-lettered jobs",
	}
	cmd.AddCommand(newDLQListCommand(app), newDLQRetryCommand(app))
	return cmd
}

func newDLQListCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dead-lettered jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			engine, err := app.Engine()
			if err != nil {
				return err
			}
			jobs, err := engine.ListDLQ(limit)
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "dead letter queue is empty")
				return nil
			}
			for _, j := range jobs {
				reason := ""
				if j.ErrorMessage != nil {
					reason = *j.ErrorMessage
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tattempts %d/%d\t%s\n", j.ID, j.Attempts, j.MaxRetries, reason)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", queue.DefaultListLimit, "Maximum number of jobs to show")
	return cmd
}

func newDLQRetryCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Move a dead-lettered job back to pending with a fresh retry budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := app.Engine()
			if err != nil {
				return err
			}
			j, err := engine.RetryFromDLQ(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job %s requeued (state: %s)\n", j.ID, j.State)
			return nil
		},
	}
}
