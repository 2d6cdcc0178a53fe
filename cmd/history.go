package cmd

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jon4hz/reqtag/internal/config"
	"github.com/jon4hz/reqtag/internal/database"
	"github.com/mergestat/timediff"
	"github.com/spf13/cobra"
)

var historyCmdFlags struct {
	Limit int
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the run history",
	Long:  `Display statistics about reconciliation runs and the most recent runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		db, err := database.New(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close() //nolint: errcheck

		stats, err := db.GetRunStats(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get run stats: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Run Statistics:")
		fmt.Fprintf(out, "Total Runs: %s\n", humanize.Comma(stats.TotalRuns))
		fmt.Fprintf(out, "Successful Runs: %s\n", humanize.Comma(stats.SuccessfulRuns))
		fmt.Fprintf(out, "Aborted Runs: %s\n", humanize.Comma(stats.AbortedRuns))
		fmt.Fprintf(out, "Total Mutations: %s\n", humanize.Comma(stats.TotalMutations))
		if stats.LastSuccess != nil {
			fmt.Fprintf(out, "Last Successful Run: %s (%s)\n", stats.LastSuccess.Format(time.RFC3339), timediff.TimeDiff(*stats.LastSuccess))
		}

		runs, err := db.GetRuns(cmd.Context(), historyCmdFlags.Limit)
		if err != nil {
			return fmt.Errorf("failed to get runs: %w", err)
		}
		if len(runs) == 0 {
			return nil
		}

		fmt.Fprintln(out, "\nRecent Runs:")
		for _, run := range runs {
			status := string(run.Status)
			if run.DryRun {
				status += " (dry run)"
			}
			fmt.Fprintf(out, "  %s  %-16s %-20s %-9s processed %s, mutations %s, took %s\n",
				run.RunID[:min(8, len(run.RunID))],
				timediff.TimeDiff(run.StartedAt),
				status,
				run.Trigger,
				humanize.Comma(int64(run.Processed)),
				humanize.Comma(int64(run.Mutations)),
				run.Duration().Round(time.Second),
			)
			if run.Error != "" {
				fmt.Fprintf(out, "            error: %s\n", run.Error)
			}
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyCmdFlags.Limit, "limit", "n", 10, "Number of runs to show")
	rootCmd.AddCommand(historyCmd)
}
