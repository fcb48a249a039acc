package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/costwise/costwise/internal/orchestrator"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent task runs from the log",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := apiClient(cmd).Runs(cmd.Context(), limit)
		if err != nil {
			return translateErr(err)
		}
		if len(runs) == 0 {
			fmt.Println("No runs logged yet.")
			return nil
		}
		for _, run := range runs {
			line := fmt.Sprintf("[%s] %s | level=%d | $%.5f",
				run.Timestamp, run.Model, run.TaskLevel, run.TotalCost)
			if run.Status == "error" {
				line += " | error:" + run.ErrorCode
			}
			fmt.Println(line)
		}
		return nil
	},
}

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Show spend against the configured caps",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := apiClient(cmd).Budget(cmd.Context())
		if err != nil {
			return translateErr(err)
		}

		fmt.Printf("Per-call default: %s\n", orchestrator.FormatCost(b.PerCallDefault))
		if b.DailyCap > 0 {
			fmt.Printf("Daily cap:        %s\n", orchestrator.FormatCost(b.DailyCap))
			fmt.Printf("Spent today:      %s (zone: %s)\n", orchestrator.FormatCost(b.SpentToday), b.Zone)
		} else {
			fmt.Printf("Daily cap:        none\n")
			fmt.Printf("Spent today:      %s\n", orchestrator.FormatCost(b.SpentToday))
		}
		fmt.Printf("Cumulative cost:  %s\n", orchestrator.FormatCost(b.CumulativeCost))
		return nil
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 10, "Number of recent runs to show")
}
