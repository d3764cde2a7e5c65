package main

import (
	"os"

	"github.com/spf13/cobra"
	_ "time/tzdata"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "scheduling-service",
		Short:        "Appointment scheduling API",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(probeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
