package cmd

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:   "options-analytics",
	Short: "Black-Scholes option pricing against live market quotes",
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(migrateCmd)
}

func Execute() error {
	return rootCmd.Execute()
}
