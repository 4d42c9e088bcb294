// Package cli implements the habitforge command-line interface using Cobra.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "habitforge",
	Short: "habitforge: track habits, keep streaks, earn badges",
	Long: `habitforge is a local-first habit tracker.
Record completions, keep daily/weekly/monthly streaks alive, and unlock
badges and levels as you go. Data lives in ~/.habitforge (HABITFORGE_HOME).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version
	appVersion = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), err)
		os.Exit(1)
	}
}

var appVersion = "dev"
