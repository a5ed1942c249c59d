package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/example/codecycle/pkg/models"
)

var username string

var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show today's review queue",
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		user, err := a.userByName(cmd.Context(), username)
		if err != nil {
			return err
		}
		queue, err := a.engine.BuildTodayQueue(cmd.Context(), user, a.engine.Now())
		if err != nil {
			return err
		}
		printQueue(cmd.OutOrStdout(), queue)
		return nil
	}),
}

var submitCmd = &cobra.Command{
	Use:   "submit <slug> <FAILED|STRUGGLED|SOLVED|INSTANT>",
	Short: "Record a review outcome",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		outcome, ok := models.ParseReviewOutcome(args[1])
		if !ok {
			return errors.Errorf("unknown outcome %q", args[1])
		}
		user, err := a.userByName(cmd.Context(), username)
		if err != nil {
			return err
		}
		result, err := a.engine.SubmitReview(cmd.Context(), user, args[0], outcome)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ %s: %s, next review in %d day(s) on %s\n",
			result.Slug, result.Outcome, result.NextInterval, result.NextDate)
		return nil
	}),
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show review statistics",
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		user, err := a.userByName(cmd.Context(), username)
		if err != nil {
			return err
		}
		stats, err := a.engine.Stats(cmd.Context(), user, a.engine.Now())
		if err != nil {
			return err
		}
		printStats(cmd.OutOrStdout(), stats)
		return nil
	}),
}

func init() {
	for _, c := range []*cobra.Command{todayCmd, submitCmd, statsCmd, settingsCmd, exportCmd} {
		c.Flags().StringVarP(&username, "user", "u", "", "LeetCode username")
		rootCmd.AddCommand(c)
	}
}

func printQueue(w io.Writer, queue *models.TodayQueue) {
	fmt.Fprintf(w, "📅 %s  %d/%d done, %d left\n", queue.Date, queue.CompletedToday, queue.DailyGoal, len(queue.Items))
	if queue.GoalMet {
		fmt.Fprintln(w, "🎉 Daily goal met")
		return
	}
	if len(queue.Items) == 0 {
		fmt.Fprintln(w, "Nothing to review")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSLUG\tDIFFICULTY\tTAGS\tINTERVAL\tSTATUS")
	for i, item := range queue.Items {
		status := "due"
		if item.IsNew {
			status = "new"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n",
			i+1, item.Slug, item.Difficulty, strings.Join(item.Tags, ", "), item.IntervalDays, status)
	}
	tw.Flush()
}

func printStats(w io.Writer, stats *models.ReviewStats) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Tracked\t%d\n", stats.Tracked)
	fmt.Fprintf(tw, "Due today\t%d\n", stats.DueToday)
	fmt.Fprintf(tw, "Reviewed today\t%d\n", stats.ReviewedToday)
	fmt.Fprintf(tw, "Reviews, last 7 days\t%d\n", stats.ReviewsLast7Days)
	fmt.Fprintf(tw, "Catalog size\t%d\n", stats.CatalogSize)
	for _, o := range models.ReviewOutcomes {
		fmt.Fprintf(tw, "  %s\t%d\n", o, stats.Outcomes[o])
	}
	tw.Flush()
}
