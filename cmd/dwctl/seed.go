package main

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Generate synthetic prediction and feedback traffic",
	Long: `Seed the monitor with synthetic predictions and feedback so the
analysis pipeline has data to chew on. A configurable fraction of the
seeded predictions also receives ground-truth feedback.`,
	Example: `  dwctl seed --count 100
  dwctl seed --count 500 --feedback-ratio 0.8 --model-version fraud-v3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("count")
		ratio, _ := cmd.Flags().GetFloat64("feedback-ratio")
		modelVersion, _ := cmd.Flags().GetString("model-version")
		delay, _ := cmd.Flags().GetDuration("delay")

		if count <= 0 {
			return fmt.Errorf("--count must be positive")
		}
		if ratio < 0 || ratio > 1 {
			return fmt.Errorf("--feedback-ratio must be between 0 and 1")
		}

		client := newAPIClient(apiURL, authToken)
		seeded, withFeedback := 0, 0

		for i := 0; i < count; i++ {
			prediction := gofakeit.Float64Range(0, 1)
			id, err := client.ingestPrediction(map[string]interface{}{
				"model_version": modelVersion,
				"prediction":    prediction,
				"features": map[string]interface{}{
					"age":            gofakeit.Number(18, 90),
					"income":         gofakeit.Price(20000, 250000),
					"account_age_d":  gofakeit.Number(1, 3650),
					"country":        gofakeit.CountryAbr(),
					"txn_amount":     gofakeit.Price(1, 5000),
					"device_score":   gofakeit.Float64Range(0, 1),
					"session_length": gofakeit.Number(10, 7200),
				},
				"metadata": map[string]interface{}{
					"source": "dwctl-seed",
					"host":   gofakeit.DomainName(),
				},
			})
			if err != nil {
				return fmt.Errorf("seeding stopped after %d predictions: %w", seeded, err)
			}
			seeded++

			if gofakeit.Float64Range(0, 1) < ratio {
				// Actuals wander around the prediction so both drifted
				// and well-calibrated pairs show up downstream.
				actual := prediction + gofakeit.Float64Range(-0.6, 0.6)
				if err := client.ingestFeedback(map[string]interface{}{
					"prediction_id": id,
					"actual":        actual,
				}); err != nil {
					return fmt.Errorf("feedback for %s failed: %w", id, err)
				}
				withFeedback++
			}

			if delay > 0 {
				time.Sleep(delay)
			}
		}

		fmt.Printf("Seeded %d predictions (%d with feedback) against %s\n", seeded, withFeedback, apiURL)
		return nil
	},
}

func init() {
	seedCmd.Flags().Int("count", 100, "number of predictions to seed")
	seedCmd.Flags().Float64("feedback-ratio", 0.7, "fraction of predictions that get feedback")
	seedCmd.Flags().String("model-version", "seed-v1", "model version to stamp on seeded predictions")
	seedCmd.Flags().Duration("delay", 0, "pause between predictions")
}
