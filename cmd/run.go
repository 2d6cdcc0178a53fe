package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/jon4hz/reqtag/internal/config"
	"github.com/jon4hz/reqtag/internal/database"
	"github.com/jon4hz/reqtag/internal/engine"
	"github.com/spf13/cobra"
)

var runCmdFlags struct {
	DryRun bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single reconciliation and exit",
	Long:  `Reconcile requests and watch history into labels, tags and collections once, without starting the scheduler or the API.`,
	Example: `reqtag run --config config.yml
reqtag run --dry-run`,
	RunE: runOnce,
}

func init() {
	runCmd.Flags().BoolVar(&runCmdFlags.DryRun, "dry-run", false, "Log the mutations without applying them")
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if runCmdFlags.DryRun {
		cfg.DryRun = true
	}

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	eng, err := engine.New(cfg, db)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer eng.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := eng.RunOnce(ctx, engine.TriggerManual)
	if summary != nil {
		printSummary(cmd, summary)
	}
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}
	log.Info("Run completed", "run", summary.RunID)
	return nil
}

func printSummary(cmd *cobra.Command, s *engine.RunSummary) {
	out := cmd.OutOrStdout()
	mode := ""
	if s.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(out, "Run %s %s%s in %s\n", s.RunID, s.Status, mode, s.Duration().Round(time.Millisecond))
	for _, sec := range s.Sections {
		fmt.Fprintf(out, "  %-24s processed %6s  skipped %5s  errored %5s  mutations %6s",
			sec.Title,
			humanize.Comma(int64(sec.Processed)),
			humanize.Comma(int64(sec.Skipped)),
			humanize.Comma(int64(sec.Errored)),
			humanize.Comma(int64(sec.Mutations)),
		)
		if sec.Partial {
			fmt.Fprint(out, "  (incomplete listing)")
		}
		if sec.Error != "" {
			fmt.Fprintf(out, "  error: %s", sec.Error)
		}
		fmt.Fprintln(out)
	}
	if s.ManagerMutations > 0 || s.ManagerErrored > 0 {
		fmt.Fprintf(out, "  %-24s mutations %6s  errored %5s\n", "Radarr/Sonarr tags",
			humanize.Comma(int64(s.ManagerMutations)),
			humanize.Comma(int64(s.ManagerErrored)),
		)
	}
	fmt.Fprintf(out, "Total: %s processed, %s skipped, %s errored, %s mutations\n",
		humanize.Comma(int64(s.Processed)),
		humanize.Comma(int64(s.Skipped)),
		humanize.Comma(int64(s.Errored)),
		humanize.Comma(int64(s.Mutations)),
	)
}
