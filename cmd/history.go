package cmd

import (
	"github.com/spf13/cobra"

	"graphbench/internal/cli"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := dbPath()
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		interactive, _ := cmd.Flags().GetBool("interactive")
		return cli.History(db, limit, interactive, cmd.OutOrStdout())
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "l", 20, "number of runs to show (0 for all)")
	historyCmd.Flags().BoolP("interactive", "i", false, "scrollable table")
}
