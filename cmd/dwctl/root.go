package main

import (
	"github.com/spf13/cobra"
)

var (
	apiURL    string
	authToken string
)

var rootCmd = &cobra.Command{
	Use:   "dwctl",
	Short: "DriftWatch operator CLI",
	Long: `dwctl is the command-line interface for the DriftWatch monitor.

Seed synthetic prediction and feedback traffic, fetch the latest
analysis reports, and check service status from your terminal.`,
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "url", "http://localhost:8086", "monitor API base URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "bearer token for authenticated endpoints")

	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(statusCmd)
}
