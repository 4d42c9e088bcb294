package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/habitforge/habitforge/internal/domain"
)

func init() {
	doneCmd.Flags().StringVarP(&doneNote, "note", "n", "", "Journal note")
	doneCmd.Flags().IntVarP(&doneMood, "mood", "m", 0, "Mood 1-5")
	doneCmd.Flags().StringVar(&doneLocation, "location", "", "Where it happened")
	doneCmd.Flags().StringVar(&doneAt, "at", "", "Completion time (RFC3339), default now")
	rootCmd.AddCommand(doneCmd, historyCmd)
}

var (
	doneNote     string
	doneMood     int
	doneLocation string
	doneAt       string
)

var doneCmd = &cobra.Command{
	Use:   "done <habit-id>",
	Short: "Record a completion",
	Args:  cobra.ExactArgs(1),
	RunE:  runDone,
}

var historyCmd = &cobra.Command{
	Use:   "history <habit-id>",
	Short: "Show a habit's completions",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func runDone(cmd *cobra.Command, args []string) error {
	var at time.Time
	if doneAt != "" {
		t, err := time.Parse(time.RFC3339, doneAt)
		if err != nil {
			return fmt.Errorf("--at must be RFC3339: %w", err)
		}
		at = t
	}

	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	out, err := d.Tracker.Complete(context.Background(), args[0], at, domain.CompletionInput{
		Note:     doneNote,
		Mood:     doneMood,
		Location: doneLocation,
	})
	if err != nil {
		return err
	}
	if !out.Recorded {
		fmt.Printf("%s is paused; completion ignored\n", out.Habit.Name)
		return nil
	}

	h := out.Habit
	fmt.Printf("✓ %s  streak %s", h.Name, headerStyle.Render(fmt.Sprint(h.Streak)))
	if !out.GoalMet {
		fmt.Printf("  (%d/%d this period)", h.GoalProgress, h.Goal)
	}
	fmt.Println()
	for _, m := range out.NewMilestones {
		fmt.Printf("%s %d-period streak on %s\n", badgeStyle.Render("🔥 Milestone:"), m, h.Name)
	}
	printUnlocks(os.Stdout, out.NewlyUnlocked)
	if out.LeveledUp {
		lvl := d.Tracker.Last().Level
		fmt.Printf("%s you reached level %d\n", badgeStyle.Render("⬆ Level up:"), lvl.Level)
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	completions, err := d.Tracker.Completions(context.Background(), args[0])
	if err != nil {
		return err
	}
	if len(completions) == 0 {
		fmt.Println("No completions yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tMOOD\tNOTE\tLOCATION")
	for _, c := range completions {
		mood := "-"
		if c.Mood > 0 {
			mood = fmt.Sprint(c.Mood)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", formatDate(c.CompletionDate), mood, c.Note, c.Location)
	}
	return w.Flush()
}
