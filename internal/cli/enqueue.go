package cli

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rzbill/queuectl/internal/queue"
)

// newEnqueueCommand constructs the `enqueue` command.
func newEnqueueCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Add a job to the queue",
		Long: `Add a job to the queue.

The command runs through the shell, so pipelines and redirections work:

  queuectl enqueue --id backup-1 --command "pg_dump mydb | gzip > /tmp/mydb.gz"

Job ids must be unique; when --id is omitted a UUID is generated.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, _ := cmd.Flags().GetString("id")
			command, _ := cmd.Flags().GetString("command")
			runAtRaw, _ := cmd.Flags().GetString("run-at")

			if command == "" {
				return fmt.Errorf("--command is required")
			}
			if id == "" {
				id = uuid.NewString()
			}

			var opts queue.EnqueueOptions
			if cmd.Flags().Changed("max-retries") {
				n, _ := cmd.Flags().GetInt("max-retries")
				if n < 0 {
					return fmt.Errorf("--max-retries must be >= 0")
				}
				opts.MaxRetries = &n
			}
			if runAtRaw != "" {
				runAt, err := time.Parse(time.RFC3339, runAtRaw)
				if err != nil {
					return fmt.Errorf("invalid --run-at (want RFC3339, e.g. 2026-01-02T15:04:05Z): %w", err)
				}
				opts.RunAt = &runAt
			}

			engine, err := app.Engine()
			if err != nil {
				return err
			}
			j, err := engine.Enqueue(id, command, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued job %s (state: %s, max_retries: %d)\n", j.ID, j.State, j.MaxRetries)
			return nil
		},
	}
	cmd.Flags().String("id", "", "Unique job id (generated when omitted)")
	cmd.Flags().String("command", "", "Shell command to execute")
	cmd.Flags().Int("max-retries", 0, "Retry budget for this job (default from config)")
	cmd.Flags().String("run-at", "", "Hold the job until this RFC3339 instant")
	return cmd
}
