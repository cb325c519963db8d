package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	armyerrors "github.com/khenlevy/ai-army/pkg/errors"
	"github.com/khenlevy/ai-army/pkg/history"
)

var runsStage string
var runsLimit int

// runsCmd lists recent stage runs from the history database.
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent pipeline runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if appConfig == nil {
			return armyerrors.NewConfigError("config", "configuration not initialized")
		}

		hist, err := history.Open(appConfig.History.DatabasePath)
		if err != nil {
			return err
		}
		defer hist.Close()

		records, err := hist.Recent(cmd.Context(), runsStage, runsLimit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STARTED\tSTAGE\tAPPLIED\tSKIPPED\tFAILED\tSUMMARY\tERROR")
		for _, rec := range records {
			stage := rec.Stage
			if rec.Category != "" {
				stage += "/" + rec.Category
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
				rec.StartedAt.Local().Format(time.DateTime),
				stage, rec.Applied, rec.Skipped, rec.Failed,
				oneLine(rec.Summary, 48), rec.Err)
		}
		return w.Flush()
	},
}

// oneLine flattens a summary to a single truncated line for table output.
func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}

func init() {
	runsCmd.Flags().StringVar(&runsStage, "stage", "", "filter by stage (product, team_lead, dev, qa)")
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "maximum runs to list")

	rootCmd.AddCommand(runsCmd)
}
