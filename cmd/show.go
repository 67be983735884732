package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dqguardrail/guardrail/internal/report"
)

var showCmd = &cobra.Command{
	Use:   "show RESULT.json",
	Short: "Print a scan result saved with scan --json",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := report.ReadJSON(args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), report.FormatText(res))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
