package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dqguardrail/guardrail/internal/config"
	"github.com/dqguardrail/guardrail/internal/demo"
	"github.com/dqguardrail/guardrail/internal/logging"
)

var (
	demoPort        int
	demoModel       string
	demoToken       string
	demoUploadError string
	demoReportDir   string
	demoHost        string
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a local demo scan backend",
	Long: `Run a self-contained scan backend that profiles synthetic data, serves
a demo Unity Catalog and accepts Fix-It uploads. Point the client at it with
--api-url http://localhost:PORT.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		level := logLevel
		if level == "" {
			level = "info"
		}
		logger, err := logging.Setup(level, "", os.Stderr)
		if err != nil {
			return fmt.Errorf("setting up logging: %w", err)
		}

		opts := []demo.Option{
			demo.WithModel(demoModel),
			demo.WithUploadError(demoUploadError),
			demo.WithWorkspaceHost(demoHost),
		}
		if demoToken != "" {
			token, err := config.ResolveValue(demoToken)
			if err != nil {
				return fmt.Errorf("resolving token: %w", err)
			}
			opts = append(opts, demo.WithToken(token))
		}
		if demoReportDir != "" {
			opts = append(opts, demo.WithReportDir(config.ExpandHome(demoReportDir)))
		}
		srv := demo.New(logger, demoPort, opts...)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		fmt.Fprintf(os.Stderr, "Demo scan backend: http://localhost:%d\n", demoPort)

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		case <-ctx.Done():
			logger.Info("shutting down demo backend")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
		}
		return nil
	},
}

func init() {
	demoCmd.Flags().IntVar(&demoPort, "port", 8000, "port to listen on")
	demoCmd.Flags().StringVar(&demoModel, "model", demo.DefaultModel, "model name reported by /api/status")
	demoCmd.Flags().StringVar(&demoToken, "token", "", "require this bearer token (supports ${ENV:...} references)")
	demoCmd.Flags().StringVar(&demoUploadError, "upload-error", "", "answer every upload with this error")
	demoCmd.Flags().StringVar(&demoHost, "workspace-host", "https://demo.cloud.databricks.com", "host used to build workspace URLs")
	demoCmd.Flags().StringVar(&demoReportDir, "report-dir", "", "also write each markdown report to this directory")
	rootCmd.AddCommand(demoCmd)
}
