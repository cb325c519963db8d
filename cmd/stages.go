package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	armyerrors "github.com/khenlevy/ai-army/pkg/errors"
	"github.com/khenlevy/ai-army/pkg/lifecycle"
)

var devType string

// productCmd runs the product stage once.
var productCmd = &cobra.Command{
	Use:   "product",
	Short: "Run the product stage once",
	Long: `Runs the product crew a single time: review the backlog, prioritize
items, enrich prioritized items toward breakdown, and propose new features
within the open-item budget.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd, lifecycle.StageProduct, "")
	},
}

// teamLeadCmd runs the team lead stage once.
var teamLeadCmd = &cobra.Command{
	Use:   "team-lead",
	Short: "Run the team lead stage once",
	Long: `Runs the team lead crew a single time: break features marked
ready-for-breakdown into categorized sub-items and mark the features
broken-down.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd, lifecycle.StageTeamLead, "")
	},
}

// devCmd runs one dev stage once.
var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "Run a developer stage once",
	Long: `Runs one developer crew a single time for the given work type:
claim an unclaimed sub-item, or move a claimed one to review.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !lifecycle.IsCategoryLabel(devType) {
			return armyerrors.NewConfigError("type",
				fmt.Sprintf("invalid work type %q (frontend, backend, or fullstack)", devType))
		}
		return runStage(cmd, lifecycle.StageDev, devType)
	},
}

// qaCmd runs the QA stage once.
var qaCmd = &cobra.Command{
	Use:   "qa",
	Short: "Run the QA stage once",
	Long: `Runs the QA crew a single time: review the open pull request queue,
merge what is ready, and mark the closed-out items done.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(cmd, lifecycle.StageQA, "")
	},
}

func init() {
	devCmd.Flags().StringVarP(&devType, "type", "t", "", "work type: frontend, backend, or fullstack (required)")
	_ = devCmd.MarkFlagRequired("type")

	rootCmd.AddCommand(productCmd)
	rootCmd.AddCommand(teamLeadCmd)
	rootCmd.AddCommand(devCmd)
	rootCmd.AddCommand(qaCmd)
}

// runStage wires the pipeline and executes a single stage run.
func runStage(cmd *cobra.Command, stage lifecycle.Stage, category string) error {
	ctx := cmd.Context()

	p, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	result, err := p.newRunner(stage, category).Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d applied, %d skipped, %d failed\n",
		result.RunID, result.Applied, result.Skipped, result.Failed)
	return nil
}
