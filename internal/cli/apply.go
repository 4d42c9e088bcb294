package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/habitforge/habitforge/internal/app"
)

func init() {
	rootCmd.AddCommand(applyCmd)
}

var applyCmd = &cobra.Command{
	Use:   "apply <Habitfile>",
	Short: "Create the habits declared in a Habitfile",
	Long: `Create every habit declared in a Habitfile. Habits whose name is already
tracked are skipped, so applying the same file twice is safe.

  HABIT "Morning run"
  CATEGORY Fitness
  FREQUENCY daily
  GOAL 1`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

func runApply(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	habits, err := app.ParseHabitfile(f)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	res, err := app.ApplyHabitfile(context.Background(), d.Tracker, habits)
	for _, h := range res.Created {
		fmt.Printf("Created %s (%s, goal %d)\n", headerStyle.Render(h.Name), h.Frequency, h.Goal)
	}
	for _, name := range res.Skipped {
		fmt.Println(mutedStyle.Render("Skipped " + name + " (already tracked)"))
	}
	return err
}
