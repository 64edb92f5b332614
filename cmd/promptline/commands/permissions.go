package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/promptline-ai/promptline/internal/config"
	"github.com/promptline-ai/promptline/internal/permission"
)

var permissionsCmd = &cobra.Command{
	Use:   "permissions",
	Short: "Manage stored permission decisions",
}

var permissionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored permission decisions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openConfiguredStore()
		if err != nil {
			return err
		}
		defer store.Close()

		records := store.Records()
		if len(records) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no stored decisions")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TOOL\tSCOPE\tDECISION\tSINCE")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				r.Tool, r.Scope, r.Decision, r.CreatedAt.Format("2006-01-02"))
		}
		return w.Flush()
	},
}

var permissionsResetCmd = &cobra.Command{
	Use:   "reset [tool [scope]]",
	Short: "Remove stored decisions for a tool, a scope, or everything",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openConfiguredStore()
		if err != nil {
			return err
		}
		defer store.Close()

		var toolName, scope string
		if len(args) > 0 {
			toolName = args[0]
		}
		if len(args) > 1 {
			scope = args[1]
		}

		removed, err := store.Remove(toolName, scope)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d decision(s)\n", removed)
		return nil
	},
}

func init() {
	permissionsCmd.AddCommand(permissionsListCmd)
	permissionsCmd.AddCommand(permissionsResetCmd)
}

func openConfiguredStore() (*permission.Store, error) {
	dir, err := getWorkDir()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	if err := config.GetPaths().EnsurePaths(); err != nil {
		return nil, err
	}
	return permission.OpenStore(cfg.StorePath()), nil
}
