package main

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/tfiers/sitedeco"
	"github.com/tfiers/sitedeco/config"
)

// checkCmd polls the build status once and prints it.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Poll the build status once",
	Long: `Poll the configured repository once and print the build status as the
widget would show it on a freshly loaded page.

Exit codes:
  0 - The poll succeeded
  1 - The poll failed (network error, non-2xx response, malformed JSON)

Example:
  sitedeco check -c sitedeco.yaml`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	addConfigFlag(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Context(), cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Repository == nil {
		return fmt.Errorf("config has no repository to poll")
	}

	p, err := config.BuildStatusPoller(cfg, newLogger(false))
	if err != nil {
		return fmt.Errorf("failed to build status poller: %w", err)
	}

	tick, err := p.Poll(cmd.Context())
	if err != nil {
		return fmt.Errorf("poll failed: %w", err)
	}

	renderCheck(cmd.OutOrStdout(), cfg.Repository.FullName(), tick)
	return nil
}

// renderCheck writes a short styled report of tick to w. Colours are only
// emitted when w is a terminal.
func renderCheck(w io.Writer, repo string, tick sitedeco.Tick) {
	r := lipgloss.NewRenderer(w)

	label := r.NewStyle().Bold(true).Width(10)
	muted := r.NewStyle().Faint(true)
	status := r.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	if tick.Run.IsBuilding {
		status = status.Foreground(lipgloss.Color("3"))
	}

	rows := []string{
		lipgloss.JoinHorizontal(lipgloss.Top, label.Render("repo"), repo),
		lipgloss.JoinHorizontal(lipgloss.Top, label.Render("status"), status.Render(tick.Display.Text)),
		lipgloss.JoinHorizontal(lipgloss.Top, label.Render("run"), tick.Run.Status),
	}
	if tick.Display.Link != "" {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, label.Render("live log"), tick.Display.Link))
	}
	rows = append(rows, muted.Render(fmt.Sprintf("%s (%s)",
		tick.Display.Title, tick.Latency.Round(time.Millisecond))))

	fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left, rows...))
}
