package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/khenlevy/ai-army/pkg/scheduler"
)

// scheduleCmd runs the full pipeline on its hourly stagger until stopped.
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the full pipeline on its schedule",
	Long: `Starts the long-lived scheduler: product on the hour (and once at
startup), team lead at :10, the frontend/backend/fullstack developers at
:20/:30/:40, and QA at :50. A stage still running when its next slot
arrives skips that slot. Stop with Ctrl-C; running jobs finish first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p, err := buildPipeline(ctx)
		if err != nil {
			return err
		}
		defer p.Close()

		// Startup connectivity check. A dead token or unreachable API is
		// worth a loud warning, but jobs skip cleanly on their own, so the
		// scheduler starts regardless and recovers when access returns.
		if !p.tracker.IsAuthenticated(ctx) {
			slog.Warn("GitHub authentication check failed, jobs will skip until access returns",
				"repo", p.cfg.GitHub.Repo)
		} else {
			slog.Info("GitHub connectivity ok", "repo", p.cfg.GitHub.Repo)
		}

		s := scheduler.New()
		for _, offset := range scheduler.DefaultOffsets() {
			entry := offset
			r := p.newRunner(entry.Stage, entry.Category)
			entry.Job = scheduler.JobFunc(func(ctx context.Context) error {
				_, err := r.Run(ctx)
				return err
			})
			s.Add(entry)
		}

		err = s.Start(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}
