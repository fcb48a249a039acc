package cmd

import (
	"github.com/spf13/cobra"

	"github.com/costwise/costwise/internal/wizard"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard, writes .env",
	RunE: func(cmd *cobra.Command, args []string) error {
		return wizard.Run(rootCmd.Version)
	},
}
