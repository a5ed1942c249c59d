package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/example/codecycle/pkg/models"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change scheduling settings",
	Long: `Without flags, prints the current settings. Any of --daily-goal,
--max-new and --default-interval updates just that value.`,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		user, err := a.userByName(cmd.Context(), username)
		if err != nil {
			return err
		}

		settings := &user.Settings
		if update := settingsUpdate(cmd.Flags()); !update.IsEmpty() {
			if settings, err = a.engine.UpdateSettings(cmd.Context(), user, update); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Daily goal:       %d\n", settings.DailyGoal)
		fmt.Fprintf(out, "Max new per day:  %d\n", settings.MaxNewPerDay)
		fmt.Fprintf(out, "Default interval: %d\n", settings.DefaultInterval)
		return nil
	}),
}

func init() {
	settingsCmd.Flags().Int("daily-goal", 0, fmt.Sprintf("problems per day (%d-%d)", models.MinDailyGoal, models.MaxDailyGoal))
	settingsCmd.Flags().Int("max-new", 0, fmt.Sprintf("new problems per day (%d-%d)", models.MinMaxNewPerDay, models.MaxMaxNewPerDay))
	settingsCmd.Flags().Int("default-interval", 0, fmt.Sprintf("freshness cutoff in days (%d-%d)", models.MinDefaultInterval, models.MaxDefaultInterval))
}

// settingsUpdate builds a partial update from the flags that were set
func settingsUpdate(flags *pflag.FlagSet) *models.UpdateSettings {
	update := &models.UpdateSettings{}
	for name, field := range map[string]**int{
		"daily-goal":       &update.DailyGoal,
		"max-new":          &update.MaxNewPerDay,
		"default-interval": &update.DefaultInterval,
	} {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetInt(name)
		if err != nil {
			continue
		}
		*field = &v
	}
	return update
}
