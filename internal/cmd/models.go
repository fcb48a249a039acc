package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the model catalog with key availability",
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := apiClient(cmd).Models(cmd.Context())
		if err != nil {
			return translateErr(err)
		}

		fmt.Printf("Routing mode: %s\n\n", list.RoutingMode)
		fmt.Printf("%-36s %-10s %4s %5s  %-22s %s\n",
			"MODEL", "PROVIDER", "TIER", "RANK", "COST/1K (IN/OUT)", "KEY")
		for _, m := range list.Models {
			key := "-"
			if m.Available {
				key = "yes"
			}
			fmt.Printf("%-36s %-10s %4d %5d  $%.5f / $%.5f   %s\n",
				m.ID, m.Provider, m.Tier, m.CostTier, m.PromptPer1K, m.CompletionPer1K, key)
		}
		return nil
	},
}
