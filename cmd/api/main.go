package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "repair-desk",
		Short:         "Repair shop ticket service",
		Long:          `repair-desk serves the ticket, customer and inventory API and runs the maintenance jobs.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newNormalizeStatusesCommand(),
		newBackfillCodesCommand(),
		newImportCustomersCommand(),
		newCreateUserCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
