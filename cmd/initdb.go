package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"hygienefix/internal/bootstrap/logging"
	"hygienefix/internal/errs"
)

var initDbCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create or migrate the sqlite schema",
	RunE: withApp(func(cmd *cobra.Command, services appServices) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		if err := services.App.InitSchema(ctx); err != nil {
			return errs.Wrap(err, "init schema")
		}

		if _, err := fmt.Fprintln(cmd.OutOrStdout(), "schema ready"); err != nil {
			return errs.Wrap(err, "write init-db output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(initDbCmd)
}
