package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/habitforge/habitforge/internal/daemon"
	"github.com/habitforge/habitforge/internal/domain"
	"github.com/habitforge/habitforge/internal/logger"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	badgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
)

// openDaemon loads config, initializes logging and opens the store.
func openDaemon() (*daemon.Daemon, error) {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := logger.Init(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	}); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return daemon.NewWithConfig(cfg, daemon.Home())
}

// printUnlocks announces badges unlocked by the last command.
func printUnlocks(w io.Writer, unlocked []domain.BadgeUnlocked) {
	for _, b := range unlocked {
		fmt.Fprintf(w, "%s %s (+%d XP)\n", badgeStyle.Render("★ Badge unlocked:"), b.Title, b.BonusXP)
	}
}

// progressBar renders a fixed-width text bar.
func progressBar(pct float64, width int) string {
	filled := int(pct / 100 * float64(width))
	filled = min(max(filled, 0), width)
	bar := make([]rune, width)
	for i := range bar {
		if i < filled {
			bar[i] = '█'
		} else {
			bar[i] = '░'
		}
	}
	return string(bar)
}

// formatDate prints a completion instant, or "never".
func formatDate(t time.Time) string {
	if t.IsZero() {
		return mutedStyle.Render("never")
	}
	return t.Local().Format("2006-01-02 15:04")
}
