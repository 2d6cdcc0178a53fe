package cmd

import (
	"github.com/charmbracelet/log"
	"github.com/jon4hz/reqtag/internal/config"
	"github.com/jon4hz/reqtag/internal/database"
	"github.com/jon4hz/reqtag/internal/engine"
	"github.com/spf13/cobra"
)

var resetCmdFlags struct {
	DryRun bool
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove all reqtag labels and tags",
	Long: `This command removes every label reqtag added in Plex and every tag it added in Sonarr and Radarr.
Requester collections are kept, only their owner label is removed.`,
	Run: reset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetCmdFlags.DryRun, "dry-run", false, "Only log what would be removed")

	rootCmd.AddCommand(resetCmd)
}

func reset(cmd *cobra.Command, _ []string) {
	cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if resetCmdFlags.DryRun {
		cfg.DryRun = true
	}

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	defer db.Close() //nolint:errcheck

	eng, err := engine.New(cfg, db)
	if err != nil {
		log.Fatalf("failed to create engine: %v", err)
	}
	defer eng.Close() //nolint:errcheck

	log.Info("Starting reset of all reqtag labels and tags...")

	summary, err := eng.ResetAll(cmd.Context())
	if err != nil {
		log.Fatalf("failed to reset labels and tags: %v", err)
	}

	log.Info("Successfully reset all reqtag labels and tags!", "labels", summary.Labels, "records", summary.Records)
}
