package commands

import (
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/promptline-ai/promptline/internal/config"
	"github.com/promptline-ai/promptline/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Review past runs",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := transcriptStore()
		ids, err := store.List(historyLimit)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tWHEN\tOUTCOME\tTASK")
		for _, id := range ids {
			t, err := store.Load(id)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				t.ID, t.StartedAt.Format("2006-01-02 15:04"), t.Outcome, ellipsize(t.Task, 60))
		}
		return w.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one run's transcript (latest when no id is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := transcriptStore()

		var t *history.Transcript
		var err error
		if len(args) == 1 {
			t, err = store.Load(args[0])
		} else {
			t, err = store.Latest()
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "task:    %s\n", t.Task)
		fmt.Fprintf(out, "outcome: %s\n", t.Outcome)
		if t.Summary != "" {
			fmt.Fprintf(out, "summary: %s\n", t.Summary)
		}
		fmt.Fprintln(out)

		for _, s := range t.Steps {
			switch s.Kind {
			case "thought":
				fmt.Fprintf(out, "* %s\n", s.Text)
			case "action":
				fmt.Fprintf(out, "> %s %s\n", s.Tool, s.Args)
			case "observation":
				if s.Success {
					fmt.Fprintf(out, "  %s\n", ellipsize(s.Output, 200))
				} else {
					fmt.Fprintf(out, "  error: %s\n", s.Error)
				}
			}
		}
		return nil
	},
}

func init() {
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum runs to list")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
}

func transcriptStore() *history.Store {
	return history.NewStore(filepath.Join(config.GetPaths().Data, "history"))
}

func ellipsize(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
