package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dqguardrail/guardrail/internal/catalog"
	"github.com/dqguardrail/guardrail/internal/config"
	"github.com/dqguardrail/guardrail/internal/logging"
	"github.com/dqguardrail/guardrail/internal/patch"
	"github.com/dqguardrail/guardrail/internal/remote"
	"github.com/dqguardrail/guardrail/internal/router"
	"github.com/dqguardrail/guardrail/internal/scan"
	"github.com/dqguardrail/guardrail/internal/tui"
)

var (
	cfgFile  string
	logLevel string
	apiURL   string
	version  = "dev"
	commit   = "none"
	date     = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "guardrail",
	Short: "Guardrail: data-quality scans for files and catalog tables",
	Long: `Guardrail submits data-quality scans to a scan backend, shows the
score and issues, browses Unity Catalog tables, and produces Fix-It
notebooks that can be uploaded to a workspace.

Running without a subcommand launches the terminal UI.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(nil)
		if err != nil {
			return err
		}
		return tui.Run(tui.Deps{
			Scans:       a.scans,
			Catalog:     a.catalog,
			Patch:       a.patch,
			Router:      a.router,
			Prober:      a.client,
			DefaultPath: a.cfg.Scan.DefaultPath,
			DefaultType: remote.SourceType(a.cfg.Scan.DefaultType),
			OutputDir:   a.cfg.FixIt.OutputDir,
			Timeout:     a.cfg.API.Timeout,
		})
	},
}

// app is the wired set of components every command works against.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	client  *remote.Client
	scans   *scan.Orchestrator
	catalog *catalog.Cache
	patch   *patch.Workflow
	router  *router.Router
}

// setup loads the config, applies flag overrides and wires the components.
// Logs are mirrored to console when it is non-nil.
func setup(console io.Writer) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if apiURL != "" {
		cfg.API.BaseURL = strings.TrimRight(apiURL, "/")
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger, err := logging.Setup(cfg.Logging.Level, cfg.Logging.Directory, console)
	if err != nil {
		return nil, fmt.Errorf("setting up logging: %w", err)
	}

	client := remote.New(cfg.API.BaseURL,
		remote.WithTimeout(cfg.API.Timeout),
		remote.WithToken(cfg.API.Token),
		remote.WithLogger(logger),
	)
	scans := scan.New(client, scan.WithTimeout(cfg.API.Timeout), scan.WithLogger(logger))

	return &app{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		scans:   scans,
		catalog: catalog.New(client, logger, catalog.WithFetchTimeout(cfg.API.Timeout)),
		patch: patch.New(client, scans,
			patch.WithWorkspacePath(cfg.FixIt.WorkspacePath),
			patch.WithLogger(logger),
		),
		router: router.New(scans, logger),
	}, nil
}

func Execute() {
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.guardrail/guardrail.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "scan backend base URL (overrides api.base_url)")
}
