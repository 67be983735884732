package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dqguardrail/guardrail/internal/history"
	"github.com/dqguardrail/guardrail/internal/patch"
	"github.com/dqguardrail/guardrail/internal/remote"
)

var (
	fixitType          string
	fixitUpload        bool
	fixitWorkspacePath string
	fixitOutDir        string
)

var fixitCmd = &cobra.Command{
	Use:   "fixit PATH",
	Short: "Scan a source and generate a Fix-It notebook",
	Long: `Scan a source, generate a Fix-It notebook for the result, save it
locally and optionally upload it to the workspace.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := remote.ParseSourceType(fixitType)
		if err != nil {
			return err
		}
		a, err := setup(os.Stderr)
		if err != nil {
			return err
		}
		if fixitWorkspacePath != "" {
			a.patch = patch.New(a.client, a.scans,
				patch.WithWorkspacePath(fixitWorkspacePath),
				patch.WithLogger(a.logger),
			)
		}
		outDir := fixitOutDir
		if outDir == "" {
			outDir = a.cfg.FixIt.OutputDir
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		res, err := a.scans.Submit(ctx, args[0], st)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		fmt.Printf("Scan %s: score %.1f, %d issues\n", res.ScanID, res.Results.DQScore, len(res.Results.Issues))

		art, err := a.patch.Generate(ctx, res.ScanID)
		if err != nil {
			return err
		}
		path, err := a.patch.Save(res.ScanID, outDir)
		if err != nil {
			return err
		}
		fmt.Printf("Notebook %s saved to %s\n", art.Filename, path)

		req, _ := a.scans.LastRequest()
		if !fixitUpload {
			a.recordScan(req, res, func(e *history.Entry) { e.NotebookPath = path })
			return nil
		}
		up, err := a.patch.Upload(ctx, res.ScanID)
		if err != nil {
			a.recordScan(req, res, func(e *history.Entry) { e.NotebookPath = path })
			return err
		}
		a.recordScan(req, res, func(e *history.Entry) {
			e.NotebookPath = path
			e.UploadedTo = up.WorkspacePath
		})
		fmt.Printf("Uploaded to %s\n", up.WorkspacePath)
		if up.WorkspaceURL != "" {
			fmt.Printf("Open: %s\n", up.WorkspaceURL)
		}
		return nil
	},
}

func init() {
	fixitCmd.Flags().StringVar(&fixitType, "type", string(remote.SourceFile), "source type (file, table)")
	fixitCmd.Flags().BoolVar(&fixitUpload, "upload", false, "upload the notebook to the workspace")
	fixitCmd.Flags().StringVar(&fixitWorkspacePath, "workspace-path", "", "workspace destination (overrides fixit.workspace_path)")
	fixitCmd.Flags().StringVar(&fixitOutDir, "out", "", "directory to save the notebook (overrides fixit.output_dir)")
	rootCmd.AddCommand(fixitCmd)
}
