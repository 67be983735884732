package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dqguardrail/guardrail/internal/history"
	"github.com/dqguardrail/guardrail/internal/remote"
	"github.com/dqguardrail/guardrail/internal/report"
)

var (
	scanType      string
	scanReport    bool
	scanReportOut string
	scanHTMLOut   string
	scanJSONOut   string
	scanSection   string
)

var scanCmd = &cobra.Command{
	Use:   "scan PATH",
	Short: "Run a data-quality scan and print the result",
	Long: `Run a data-quality scan on a file path or a catalog table.

Use "sample" for the built-in sample dataset, a file path such as
dbfs:/data/orders.csv, or a table name like main.sales.orders with
--type table.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := remote.ParseSourceType(scanType)
		if err != nil {
			return err
		}
		a, err := setup(os.Stderr)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		res, err := a.scans.Submit(ctx, args[0], st)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		fmt.Print(report.FormatText(res))
		req, _ := a.scans.LastRequest()
		defer func() {
			a.recordScan(req, res, func(e *history.Entry) {
				if scanReportOut != "" {
					e.ReportPath = scanReportOut
				}
			})
		}()

		if scanJSONOut != "" {
			if err := report.WriteJSON(res, scanJSONOut); err != nil {
				return err
			}
			fmt.Printf("\nResult written to %s\n", scanJSONOut)
		}

		if !scanReport && scanReportOut == "" && scanHTMLOut == "" && scanSection == "" {
			return nil
		}
		text, err := a.scans.Report(ctx)
		if err != nil {
			return fmt.Errorf("fetching report: %w", err)
		}
		if scanReport {
			fmt.Println()
			fmt.Println(text)
		}
		if scanSection != "" {
			body, ok := report.Section(text, scanSection)
			if !ok {
				return fmt.Errorf("report has no section %q", scanSection)
			}
			fmt.Printf("\n%s\n\n%s\n", scanSection, body)
		}
		if scanReportOut != "" {
			if err := report.WriteText(scanReportOut, text); err != nil {
				return err
			}
			fmt.Printf("Report written to %s\n", scanReportOut)
		}
		if scanHTMLOut != "" {
			if err := report.WriteHTML(scanHTMLOut, text); err != nil {
				return err
			}
			fmt.Printf("HTML report written to %s\n", scanHTMLOut)
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanType, "type", string(remote.SourceFile), "source type (file, table)")
	scanCmd.Flags().BoolVar(&scanReport, "report", false, "print the full markdown report")
	scanCmd.Flags().StringVar(&scanReportOut, "report-out", "", "write the markdown report to a file")
	scanCmd.Flags().StringVar(&scanHTMLOut, "html", "", "write the report as sanitized HTML to a file")
	scanCmd.Flags().StringVar(&scanJSONOut, "json", "", "write the scan result as JSON to a file")
	scanCmd.Flags().StringVar(&scanSection, "section", "", "print one section of the report, e.g. \"Recommendations\"")
	rootCmd.AddCommand(scanCmd)
}
