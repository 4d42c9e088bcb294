package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	badgesCmd.Flags().BoolVarP(&badgesAll, "all", "a", false, "Show locked badges too")
	notificationsCmd.Flags().BoolVar(&notificationsKeep, "keep", false, "Do not mark notifications as shown")
	rootCmd.AddCommand(badgesCmd, levelCmd, sweepCmd, notificationsCmd)
}

var (
	badgesAll         bool
	notificationsKeep bool
)

var badgesCmd = &cobra.Command{
	Use:   "badges",
	Short: "Show unlocked badges",
	RunE:  runBadges,
}

var levelCmd = &cobra.Command{
	Use:   "level",
	Short: "Show XP and level progress",
	RunE:  runLevel,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Reset habits whose period elapsed without meeting the goal",
	RunE:  runSweep,
}

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"inbox"},
	Short:   "Show pending badge and level-up notifications",
	RunE:    runNotifications,
}

func runBadges(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	badges, err := d.Tracker.Badges(context.Background())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BADGE\tTYPE\tDESCRIPTION\tUNLOCKED")
	unlocked := 0
	for _, b := range badges {
		if b.IsUnlocked {
			unlocked++
		} else if !badgesAll {
			continue
		}
		title := mutedStyle.Render(b.Title)
		when := "-"
		if b.IsUnlocked {
			title = badgeStyle.Render(b.Title)
			when = formatDate(b.UnlockedDate)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", title, b.Type, b.Description, when)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d/%d badges unlocked\n", unlocked, len(badges))
	return nil
}

func runLevel(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	lp, err := d.Tracker.Level(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("%s  %d XP\n", headerStyle.Render(fmt.Sprintf("Level %d", lp.Level)), lp.TotalXP)
	fmt.Printf("%s %d/%d XP to level %d\n", progressBar(lp.ProgressPct(), 30), lp.XPInLevel, lp.XPForNextLevel, lp.Level+1)
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	n, err := d.Tracker.Sweep(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("%d habit(s) reset\n", n)
	return nil
}

func runNotifications(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	ctx := context.Background()
	now := d.Tracker.LocalNow()
	pending, err := d.Notifications.Pending(ctx, now, 50)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		if d.Notifications.InQuietHours(now) {
			p := d.Notifications.Policy()
			fmt.Printf("Quiet hours (%s-%s), notifications are held.\n", p.QuietStart, p.QuietEnd)
			return nil
		}
		fmt.Println("Nothing new.")
		return nil
	}
	for _, n := range pending {
		fmt.Printf("%s %s\n", badgeStyle.Render(n.Title), mutedStyle.Render(formatDate(n.CreatedAt)))
		if n.Body != "" {
			fmt.Printf("  %s\n", n.Body)
		}
		if !notificationsKeep {
			if err := d.Notifications.MarkShown(ctx, n.ID); err != nil {
				return err
			}
		}
	}
	return nil
}
