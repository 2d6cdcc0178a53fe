package cmd

import (
	"fmt"

	"github.com/jon4hz/reqtag/internal/config"
	"github.com/jon4hz/reqtag/internal/database"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long:  `Create or update the run history schema without starting the server.`,
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

		fmt.Fprintf(cmd.OutOrStdout(), "Database migrations completed successfully! (%s)\n", cfg.Database.Path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
