package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"hygienefix/internal/bootstrap/logging"
	"hygienefix/internal/errs"
	"hygienefix/internal/usecase/pipeline"
)

var pipelineRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one ingestion pass against the registry",
	RunE: withApp(func(cmd *cobra.Command, services appServices) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		maxRating, _ := cmd.Flags().GetInt("max-rating")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		if maxRating < 0 {
			maxRating = services.App.Config.Pipeline.DefaultMaxRating
		}

		stats, err := services.PipelineSvc.Run(ctx, pipeline.RunInput{
			RunType:   pipeline.RunTypeManual,
			MaxRating: maxRating,
			DryRun:    dryRun,
		})
		if err != nil {
			return errs.Wrap(err, "run pipeline")
		}

		out := cmd.OutOrStdout()
		if _, err := fmt.Fprintf(out, "fetched=%d new=%d changes=%d errors=%d\n",
			stats.TotalFetched, stats.NewEstablishments, stats.RatingChanges, stats.Errors); err != nil {
			return errs.Wrap(err, "write pipeline output")
		}
		for _, line := range stats.ErrorLog {
			if _, err := fmt.Fprintf(out, "error: %s\n", line); err != nil {
				return errs.Wrap(err, "write pipeline output")
			}
		}
		return nil
	}),
}

func init() {
	pipelineCmd.AddCommand(pipelineRunCmd)
	pipelineRunCmd.Flags().Int("max-rating", -1, "Highest rating tier to ingest (default from config)")
	pipelineRunCmd.Flags().Bool("dry-run", false, "Fetch and count only, no writes")
}
