package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/nosht/nosht/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "nosht",
		Short:        "nosht - ticketing and donations for multiple companies",
		Long:         `nosht serves the booking API, runs background jobs and manages the database schema.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cli.ConfigPath, "config", "c", "", "Path to an env file (default: .env if present)")

	rootCmd.AddCommand(
		cli.NewServeCommand(),
		cli.NewWorkerCommand(),
		cli.NewMigrateCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
