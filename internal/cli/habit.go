package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/habitforge/habitforge/internal/domain"
)

func init() {
	habitAddCmd.Flags().StringVarP(&habitCategory, "category", "c", "", "Category (e.g. Health, Learning)")
	habitAddCmd.Flags().StringVarP(&habitFrequency, "frequency", "f", "daily", "daily, weekly, monthly or custom")
	habitAddCmd.Flags().IntVarP(&habitGoal, "goal", "g", 1, "Completions needed per period")

	habitCmd.AddCommand(habitAddCmd, habitListCmd, habitPauseCmd, habitResumeCmd, habitRecomputeCmd)
	rootCmd.AddCommand(habitCmd)
}

var (
	habitCategory  string
	habitFrequency string
	habitGoal      int
)

var habitCmd = &cobra.Command{
	Use:   "habit",
	Short: "Manage habits",
}

var habitAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a habit",
	Args:  cobra.ExactArgs(1),
	RunE:  runHabitAdd,
}

var habitListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List habits and their streaks",
	RunE:    runHabitList,
}

var habitPauseCmd = &cobra.Command{
	Use:   "pause <habit-id>",
	Short: "Pause a habit; completions are ignored and the streak is frozen",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setEnabled(args[0], false) },
}

var habitResumeCmd = &cobra.Command{
	Use:   "resume <habit-id>",
	Short: "Resume a paused habit",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setEnabled(args[0], true) },
}

var habitRecomputeCmd = &cobra.Command{
	Use:   "recompute <habit-id>",
	Short: "Rebuild a habit's streak from its completion history",
	Args:  cobra.ExactArgs(1),
	RunE:  runHabitRecompute,
}

func runHabitAdd(cmd *cobra.Command, args []string) error {
	freq, err := domain.ParseFrequency(habitFrequency)
	if err != nil {
		return err
	}

	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	h, err := d.Tracker.CreateHabit(context.Background(), domain.NewHabit{
		Name:      args[0],
		Category:  habitCategory,
		Frequency: freq,
		Goal:      habitGoal,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Created %s (%s, goal %d)\n", headerStyle.Render(h.Name), h.Frequency, h.Goal)
	fmt.Println(mutedStyle.Render("id: " + h.ID))
	printUnlocks(os.Stdout, d.Tracker.Last().NewlyUnlocked)
	return nil
}

func runHabitList(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	habits, err := d.Tracker.ListHabits(context.Background())
	if err != nil {
		return err
	}
	if len(habits) == 0 {
		fmt.Println("No habits yet. Run 'habitforge habit add <name>' to get started.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tFREQUENCY\tPROGRESS\tSTREAK\tLAST DONE\tSTATUS")
	for _, h := range habits {
		status := "active"
		if !h.IsEnabled {
			status = "paused"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%d\t%s\t%s\n",
			h.ID[:8],
			h.Name,
			h.Category,
			h.Frequency,
			h.GoalProgress, h.Goal,
			h.Streak,
			formatDate(h.LastCompletedDate),
			status,
		)
	}
	return w.Flush()
}

func setEnabled(id string, enabled bool) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	h, err := d.Tracker.SetEnabled(context.Background(), id, enabled)
	if err != nil {
		return err
	}
	state := "paused"
	if enabled {
		state = "resumed"
	}
	fmt.Printf("%s %s\n", h.Name, state)
	return nil
}

func runHabitRecompute(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	h, err := d.Tracker.Recompute(context.Background(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s: streak %d, progress %d/%d\n", h.Name, h.Streak, h.GoalProgress, h.Goal)
	return nil
}
