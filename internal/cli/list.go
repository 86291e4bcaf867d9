package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rzbill/queuectl/internal/job"
	"github.com/rzbill/queuectl/internal/queue"
)

// newListCommand constructs the `list` command.
func newListCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		Long: `List jobs, newest last, optionally narrowed by state or a filter
expression. Filter expressions see the fields id, state, command, error,
attempts, max_retries, now_ms and updated_ms:

  queuectl list --filter 'state == "failed" && attempts >= 2'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stateRaw, _ := cmd.Flags().GetString("state")
			limit, _ := cmd.Flags().GetInt("limit")
			filterExpr, _ := cmd.Flags().GetString("filter")

			state := job.State(stateRaw)
			if stateRaw != "" && !state.Known() {
				return fmt.Errorf("unknown state %q", stateRaw)
			}

			filter, err := queue.NewFilter(filterExpr)
			if err != nil {
				return fmt.Errorf("invalid --filter: %w", err)
			}

			engine, err := app.Engine()
			if err != nil {
				return err
			}
			jobs, err := engine.List(state, limit)
			if err != nil {
				return err
			}
			jobs = filter.Apply(jobs)

			printJobTable(cmd, jobs)
			return nil
		},
	}
	cmd.Flags().String("state", "", "Only show jobs in this state")
	cmd.Flags().Int("limit", queue.DefaultListLimit, "Maximum number of jobs to show")
	cmd.Flags().String("filter", "", "CEL expression to narrow results")
	return cmd
}

func printJobTable(cmd *cobra.Command, jobs []job.Job) {
	if len(jobs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no jobs")
		return
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATE\tATTEMPTS\tCOMMAND\tUPDATED")
	for _, j := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\t%s\n",
			j.ID, j.State, j.Attempts, j.MaxRetries,
			truncate(j.Command, 48),
			j.UpdatedAt.Local().Format(time.DateTime))
	}
	w.Flush()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
