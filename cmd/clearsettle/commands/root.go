package commands

import (
	"log/slog"
	"os"

	"github.com/clearsettle/clearsettle/internal/config"
	"github.com/clearsettle/clearsettle/internal/store"
	"github.com/spf13/cobra"
)

var cfgFile string

func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "clearsettle",
		Short: "Settlement transaction monitoring pipeline",
		Long:  "Clearsettle — Anomaly detection, repair recommendations, and a hash-chained audit trail for securities settlement transactions. Single binary.",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "clearsettle.yaml", "config file path")

	root.AddCommand(
		newUploadCmd(),
		newDetectCmd(),
		newRecommendCmd(),
		newChainCmd(),
		newPipelineCmd(),
		newLogsCmd(),
		newVerifyCmd(),
		newServeCmd(),
		newStatusCmd(),
		newInitCmd(),
		newVersionCmd(),
	)

	return root
}

// newLogger builds the CLI logger at the configured level.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Server.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// quietLogger is used by read-only commands that print their own output.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func openStore(cfg *config.Config, logger *slog.Logger) (*store.Store, error) {
	return store.NewStore(cfg.Store.Path, logger)
}
