package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dqguardrail/guardrail/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View, validate and initialize the Guardrail configuration file.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current config (secrets masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		fmt.Println("Current configuration:")
		fmt.Println()
		fmt.Printf("  API:\n")
		fmt.Printf("    Base URL:       %s\n", cfg.API.BaseURL)
		fmt.Printf("    Timeout:        %s\n", cfg.API.Timeout)
		fmt.Printf("    Token:          %s\n", maskSecret(cfg.API.Token))
		fmt.Println()
		fmt.Printf("  Scan:\n")
		fmt.Printf("    Default path:   %s\n", cfg.Scan.DefaultPath)
		fmt.Printf("    Default type:   %s\n", cfg.Scan.DefaultType)
		fmt.Println()
		fmt.Printf("  Fix-It:\n")
		fmt.Printf("    Workspace path: %s\n", orDefault(cfg.FixIt.WorkspacePath, "(backend default)"))
		fmt.Printf("    Output dir:     %s\n", cfg.FixIt.OutputDir)
		fmt.Println()
		fmt.Printf("  Logging:\n")
		fmt.Printf("    Level:          %s\n", cfg.Logging.Level)
		fmt.Printf("    Directory:      %s\n", cfg.Logging.Directory)

		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := config.Load(cfgFile); err != nil {
			return fmt.Errorf("config invalid: %w", err)
		}
		fmt.Println("Configuration is valid.")
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.ExpandHome(config.DefaultPath)
		}
		cfg := config.Default()
		if apiURL != "" {
			cfg.API.BaseURL = strings.TrimRight(apiURL, "/")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := cfg.Save(path); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		fmt.Printf("Config written to %s\n", path)
		return nil
	},
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
