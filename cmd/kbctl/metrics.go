package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/marzetti/salon-assistant/internal/metrics"
	"github.com/marzetti/salon-assistant/internal/model"
)

func init() {
	var date string
	metricsCmd := &cobra.Command{
		Use:   "metrics",
		Short: "Print the daily counters as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			agg := metrics.New(e.backend.Store.Metrics())
			if date == "" {
				date = agg.Today()
			}
			row, err := agg.Day(cmd.Context(), date)
			if err != nil {
				return err
			}
			return printMetrics(cmd.OutOrStdout(), row)
		},
	}
	metricsCmd.Flags().StringVarP(&date, "date", "d", "", "Day as YYYY-MM-DD (defaults to today, UTC)")
	rootCmd.AddCommand(metricsCmd)
}

// printMetrics writes row as indented JSON, or {} for a day without traffic.
func printMetrics(w io.Writer, row *model.DailyMetrics) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if row == nil {
		return enc.Encode(struct{}{})
	}
	return enc.Encode(row)
}
