package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tfiers/sitedeco/config"
)

// postprocessCmd edits the built site in place.
var postprocessCmd = &cobra.Command{
	Use:   "postprocess",
	Short: "Post-process the built site",
	Long: `Edit the HTML pages of the built site in place:

  - halve the width of high density figures in notebook cell outputs
  - add the configured head tags to pages that lack them
  - point the canonical link of renamed pages at their old URL

Pages are only rewritten when an edit changes them, so running the command
twice leaves the site as the first run did. With --watch the site is
processed again whenever a page or image changes, until interrupted.

Example:
  sitedeco postprocess -c sitedeco.yaml
  sitedeco postprocess -c sitedeco.yaml --watch`,
	RunE: runPostprocess,
}

func init() {
	rootCmd.AddCommand(postprocessCmd)

	addConfigFlag(postprocessCmd)
	postprocessCmd.Flags().BoolP("watch", "w", false, "reprocess the site when it changes")
	postprocessCmd.Flags().BoolP("verbose", "v", false, "log every changed page")
}

func runPostprocess(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	logger := newLogger(verbose)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx, cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Site == nil {
		return errors.New("config has no site to process")
	}

	sp, err := config.BuildSiteProcessor(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build site processor: %w", err)
	}

	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		return sp.Watch(ctx)
	}

	report, err := sp.Process(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Processed %d pages: %d changed, %d failed\n",
		report.Pages, report.Changed, report.Failed)
	fmt.Fprintf(cmd.OutOrStdout(), "  Figures resized: %d of %d (%d of unknown size)\n",
		report.Figures.Resized, report.Figures.Figures, report.Figures.Skipped)
	fmt.Fprintf(cmd.OutOrStdout(), "  Head tags added: %d\n", report.HeadTags)
	fmt.Fprintf(cmd.OutOrStdout(), "  Canonical links: %d\n", report.Canonicals)

	if report.Failed > 0 {
		return fmt.Errorf("%d pages failed", report.Failed)
	}
	return nil
}
