package cmd

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/example/codecycle/internal/catalog"
	"github.com/example/codecycle/internal/excel"
)

var (
	syncAll     bool
	importSheet string
	importStart int
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Import solved problems from LeetCode into the catalog",
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		out := cmd.OutOrStdout()
		if syncAll {
			results, failed, err := a.syncer.SyncAll(cmd.Context())
			if err != nil {
				return err
			}
			for _, r := range results {
				printSync(cmd, r)
			}
			fmt.Fprintf(out, "%d user(s) synced, %d failed\n", len(results), failed)
			return nil
		}

		user, err := a.userByName(cmd.Context(), username)
		if err != nil {
			return err
		}
		result, err := a.syncer.Sync(cmd.Context(), user)
		if err != nil {
			return err
		}
		printSync(cmd, result)
		return nil
	}),
}

var importCmd = &cobra.Command{
	Use:   "import <file.xlsx|file.csv>",
	Short: "Import catalog problems from a spreadsheet",
	Long: `Columns: A slug, B title, C difficulty, D tags (comma separated),
E solved date (RFC3339 or YYYY-MM-DD). The first row is a header.`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		config := excel.DefaultImportConfig()
		config.FilePath = args[0]
		config.SheetName = importSheet
		config.StartRow = importStart

		result, err := excel.ImportProblems(cmd.Context(), config, a.problems)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Processed %d row(s): %d created, %d updated, %d skipped\n",
			result.TotalProcessed, result.Created, result.Updated, result.Skipped)
		for _, e := range result.Errors {
			fmt.Fprintln(out, "⚠️", e)
		}
		return nil
	}),
}

var exportCmd = &cobra.Command{
	Use:   "export <file.xlsx>",
	Short: "Export review history to Excel",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		user, err := a.userByName(cmd.Context(), username)
		if err != nil {
			return err
		}
		logs, err := a.reviews.ListReviewLogs(cmd.Context(), user.ID)
		if err != nil {
			return err
		}

		f, err := os.Create(args[0])
		if err != nil {
			return errors.Wrap(err, "failed to create export file")
		}
		if err := excel.ExportHistory(f, logs); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return errors.Wrap(err, "failed to write export file")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d review(s) to %s\n", len(logs), args[0])
		return nil
	}),
}

func init() {
	syncCmd.Flags().StringVarP(&username, "user", "u", "", "LeetCode username")
	syncCmd.Flags().BoolVar(&syncAll, "all", false, "sync every user with stored credentials")
	syncCmd.MarkFlagsMutuallyExclusive("user", "all")
	syncCmd.MarkFlagsOneRequired("user", "all")

	importCmd.Flags().StringVar(&importSheet, "sheet", "", "sheet name (first sheet when empty)")
	importCmd.Flags().IntVar(&importStart, "start-row", excel.DefaultImportConfig().StartRow, "first data row")

	rootCmd.AddCommand(syncCmd, importCmd)
}

func printSync(cmd *cobra.Command, r *catalog.Result) {
	fmt.Fprintf(cmd.OutOrStdout(), "🔄 %s: fetched %d via %s, %d created, %d updated\n",
		r.Username, r.Fetched, r.Strategy, r.Created, r.Updated)
}
