package cmd

import (
	"github.com/spf13/cobra"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Ingestion pipeline operations",
}

func init() {
	rootCmd.AddCommand(pipelineCmd)
}
