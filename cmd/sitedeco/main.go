// Package main is the entry point for the sitedeco CLI.
//
// sitedeco can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	sitedeco serve -c sitedeco.yaml       # Serve the build status widget
//	sitedeco check -c sitedeco.yaml       # Poll the build status once
//	sitedeco postprocess -c sitedeco.yaml # Post-process the built site
//	sitedeco validate -c sitedeco.yaml    # Validate configuration
//	sitedeco version                      # Show version info
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	"github.com/tfiers/sitedeco/config"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help; actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "sitedeco",
	Short: "Build status and post-processing for static notebook sites",
	Long: `sitedeco decorates a static site built by a GitHub Actions workflow.

It polls the workflow runs of a repository and serves the build status to a
small widget embedded in the site, and it post-processes the built HTML:
halving the width of high density figures, adding head tags and keeping the
canonical URL of renamed pages.

Quick start:
  1. Create a config file (sitedeco.yaml)
  2. Run: sitedeco serve -c sitedeco.yaml
  3. Add <span id="build-status"></span> and the widget script to your site

Example config:
  port: 8080
  repository: tfiers/phd
  allowed_origins: [https://tfiers.github.io]
  site:
    dir: _build/html

Settings can be overridden with SITEDECO_* environment variables, also read
from a .env file in the working directory.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// a missing .env file is fine
		_ = godotenv.Load()
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already prints the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this sitedeco binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "sitedeco %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// newLogger creates a JSON logger for CLI use.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// addConfigFlag registers the required --config flag on cmd.
func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = cmd.MarkFlagRequired("config")
}

// loadConfig loads the file named by --config and applies environment
// overrides.
func loadConfig(ctx context.Context, cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(ctx, cfg, envconfig.OsLookuper()); err != nil {
		return nil, err
	}
	return cfg, nil
}
