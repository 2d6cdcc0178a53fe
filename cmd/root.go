package cmd

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// set by goreleaser
var version = "dev"

var rootCmdPersistentFlags struct {
	LogFile    string
	ConfigFile string
	LogLevel   string
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootCmdPersistentFlags.LogFile, "log-file", "", "File to write logs to")
	rootCmd.PersistentFlags().StringVarP(&rootCmdPersistentFlags.ConfigFile, "config", "c", "", "Path to config file (default: search for config.yml in current dir, ~/.reqtag, /etc/reqtag)")
	rootCmd.PersistentFlags().StringVar(&rootCmdPersistentFlags.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

var rootCmd = &cobra.Command{
	Use:   "reqtag",
	Short: "reqtag labels your Plex library with who requested what and whether they watched it",
	Long: `reqtag reconciles Overseerr requests and Tautulli watch history into Plex labels,
Radarr/Sonarr tags and per requester smart collections.`,
	Example: `reqtag --config config.yml
  reqtag run -c /path/to/config.yml --dry-run
  reqtag history --limit 5`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		setLogLevel(rootCmdPersistentFlags.LogLevel)
		logToFile()
	},
	Run: startServer,
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info", "":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.Warnf("unknown log level %s, defaulting to info", level)
		log.SetLevel(log.InfoLevel)
	}
}

func logToFile() {
	if rootCmdPersistentFlags.LogFile == "" {
		return
	}
	file, err := os.OpenFile(rootCmdPersistentFlags.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec
	if err != nil {
		log.Errorf("failed to open log file: %v", err)
		return
	}

	// Create a multi-writer that writes to both console and file
	multiWriter := io.MultiWriter(os.Stderr, file)
	log.SetOutput(multiWriter)
	log.Info("logging to both console and file", "file", rootCmdPersistentFlags.LogFile)
}

func Execute() error {
	return fang.Execute(context.Background(), rootCmd, fang.WithVersion(version))
}
