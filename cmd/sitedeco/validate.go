package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a sitedeco configuration file without starting the server.

This command parses the YAML, expands and applies environment variables, and
validates all fields. It's useful for CI pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  sitedeco validate -c sitedeco.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	addConfigFlag(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Context(), cmd)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Port:          %d\n", cfg.Port)

	if cfg.Repository != nil {
		fmt.Fprintf(out, "  Repository:    %s\n", cfg.Repository.FullName())
	} else {
		fmt.Fprintf(out, "  Repository:    none (serve and check disabled)\n")
	}

	if cfg.Site != nil {
		retina := "on"
		if !cfg.Site.Retina.IsEnabled() {
			retina = "off"
		}
		fmt.Fprintf(out, "  Site:          %s (retina %s, %d head tags, %d renamed pages)\n",
			cfg.Site.Dir, retina, len(cfg.Site.HeadTags), len(cfg.Site.RenamedPages))
	} else {
		fmt.Fprintf(out, "  Site:          none (postprocess disabled)\n")
	}

	return nil
}
