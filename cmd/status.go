package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dqguardrail/guardrail/internal/router"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check that the scan backend is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(nil)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.API.Timeout)
		defer cancel()

		fmt.Printf("Backend: %s\n", a.cfg.API.BaseURL)
		if a.router.Probe(ctx, a.client) != router.Online {
			fmt.Println("Status:  offline")
			fmt.Fprintln(os.Stderr, "Scans can still be submitted once the backend is up.")
			return fmt.Errorf("backend unreachable at %s", a.cfg.API.BaseURL)
		}
		fmt.Println("Status:  online")
		fmt.Printf("Model:   %s\n", a.router.Snapshot().Model)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
