package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rzbill/queuectl/internal/config"
)

// newConfigCommand constructs the `config` command group.
func newConfigCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and write queue settings",
		Long: fmt.Sprintf(`Read and write queue settings.

Recognized keys: %s. Environment overrides (QUEUECTL_MAX_RETRIES,
QUEUECTL_BACKOFF_BASE) win over the file for a single invocation without
touching it.`, strings.Join(config.Keys(), ", ")),
	}
	cmd.AddCommand(newConfigGetCommand(app), newConfigSetCommand(app))
	return cmd
}

func newConfigGetCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "get [key]",
		Short: "Print one setting, or all settings when no key is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Config()
			if err != nil {
				return err
			}
			all := cfg.All()
			if len(args) == 1 {
				v, ok := all[args[0]]
				if !ok {
					return fmt.Errorf("unknown config key %q", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%v\n", v)
				return nil
			}
			for _, k := range config.SortedKeys(all) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", k, all[k])
			}
			return nil
		},
	}
}

func newConfigSetCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Persist a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, raw := args[0], args[1]
			n, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("value for %s must be an integer: %q", key, raw)
			}
			if n < 0 {
				return fmt.Errorf("value for %s must be >= 0", key)
			}
			cfg, err := app.Config()
			if err != nil {
				return err
			}
			if err := cfg.Set(key, n); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %d\n", key, n)
			return nil
		},
	}
}
