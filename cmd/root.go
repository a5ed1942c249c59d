// Package cmd is the codecycle command line: the API server plus commands
// that drive the review engine from a terminal.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "codecycle",
	Short: "Spaced repetition for solved LeetCode problems",
	Long: `CodeCycle schedules re-reviews of the LeetCode problems you have solved.
Run "codecycle serve" for the web API and Telegram bot, or use the
other commands to work with the queue from a terminal.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (yaml, json or toml)")
}

// Execute runs the command line
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

// withApp wires the application for one command and closes it afterwards
func withApp(run func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()
		return run(cmd, args, a)
	}
}
