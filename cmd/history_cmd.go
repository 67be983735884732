package cmd

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dqguardrail/guardrail/internal/history"
	"github.com/dqguardrail/guardrail/internal/remote"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent scans run from the command line",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := history.Load("")
		if err != nil {
			return err
		}
		if len(h.Entries) == 0 {
			fmt.Println("No scans recorded yet.")
			return nil
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Scan ID", "Source", "Type", "Score", "Issues", "When", "Notebook"})
		for i, e := range h.Entries {
			if historyLimit > 0 && i >= historyLimit {
				break
			}
			notebook := e.NotebookPath
			if e.UploadedTo != "" {
				notebook = e.UploadedTo
			}
			t.AppendRow(table.Row{
				e.ScanID, e.Source, e.Type,
				fmt.Sprintf("%.1f (%s)", e.Score, e.Band), e.Issues,
				e.CompletedAt.Format("2006-01-02 15:04"), notebook,
			})
		}
		t.Render()
		return nil
	},
}

// recordScan appends a completed scan to the history file. update, when
// non-nil, fills in what was done with the result. Failures are logged only.
func (a *app) recordScan(req remote.ScanRequest, res *remote.ScanResult, update func(*history.Entry)) {
	h, err := history.Load("")
	if err != nil {
		a.logger.Warn("loading scan history", "error", err)
		return
	}
	e := h.Record(req, res)
	if update != nil {
		update(e)
	}
	if err := h.Save(""); err != nil {
		a.logger.Warn("saving scan history", "error", err)
	}
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of scans to show (0 for all)")
	rootCmd.AddCommand(historyCmd)
}
