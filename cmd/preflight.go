package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"hygienefix/internal/bootstrap/logging"
	"hygienefix/internal/errs"
)

var preflightCmd = &cobra.Command{
	Use:   "preflight",
	Short: "Check config, database and registry reachability before a run",
	RunE: withApp(func(cmd *cobra.Command, services appServices) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		out := cmd.OutOrStdout()

		// Config already passed validation during bootstrap, so reaching
		// this point means it loaded.
		fmt.Fprintln(out, "config: ok")

		sqlDB, err := services.App.DB.DB()
		if err != nil {
			return errs.Wrap(err, "get sql db")
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			fmt.Fprintf(out, "database: FAIL (%v)\n", err)
			return errs.Wrap(err, "ping database")
		}
		fmt.Fprintln(out, "database: ok")

		start := time.Now()
		page, err := services.Registry.FetchLowRatedPage(ctx, 1, services.App.Config.Pipeline.DefaultMaxRating)
		if err != nil {
			fmt.Fprintf(out, "registry: FAIL (%v)\n", err)
			return errs.Wrap(err, "probe registry")
		}
		fmt.Fprintf(out, "registry: ok (%d matching establishments, %s)\n", page.TotalCount, time.Since(start).Round(time.Millisecond))

		if services.App.Config.Server.CronSecret == "" {
			fmt.Fprintln(out, "cron secret: NOT SET (trigger endpoint will refuse runs)")
		} else {
			fmt.Fprintln(out, "cron secret: ok")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(preflightCmd)
}
