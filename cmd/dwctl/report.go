package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report [kind]",
	Short: "Fetch the latest analysis report of a kind",
	Long:  "Fetch the most recent report. Kinds: data_drift, model_drift, metric_calculation.",
	Example: `  dwctl report data_drift
  dwctl report metric_calculation --url http://monitor:8086`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newAPIClient(apiURL, authToken)
		report, err := client.latestReport(args[0])
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show monitor service status",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newAPIClient(apiURL, authToken)
		status, err := client.status()
		if err != nil {
			return err
		}
		return printJSON(status)
	},
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
