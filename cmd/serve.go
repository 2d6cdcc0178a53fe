package cmd

import (
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/reqtag/internal/api"
	"github.com/jon4hz/reqtag/internal/config"
	"github.com/jon4hz/reqtag/internal/database"
	"github.com/jon4hz/reqtag/internal/engine"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reqtag server",
	Long:  `Start the reqtag server. It reconciles the library on the configured schedule and serves the admin API.`,
	Example: `reqtag serve --config config.yml
reqtag serve -c /path/to/config.yml --log-level debug
`,
	Run: startServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func startServer(cmd *cobra.Command, _ []string) {
	cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
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

	server, err := api.New(cfg, eng)
	if err != nil {
		log.Fatalf("failed to create API server: %v", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(ctx) })
	g.Go(func() error { return server.Run(ctx) })

	log.Info("reqtag started successfully", "version", version)
	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
	}

	log.Info("shutting down gracefully...")
	if err := eng.Close(); err != nil {
		log.Error("failed to stop engine", "error", err)
	}
}
