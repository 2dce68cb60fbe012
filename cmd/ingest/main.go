package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/timmy/doclens/internal/app"
	"github.com/timmy/doclens/internal/config"
	"github.com/timmy/doclens/internal/logger"
)

var (
	configPath string
	ownerID    uint
)

var rootCmd = &cobra.Command{
	Use:           "ingest",
	Short:         "Ingest documents and inspect their status",
	Long:          `Submits local files to the doclens ingestion pipeline, lists documents and reconciles interrupted work.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_PATH"), "Path to config file")
	rootCmd.PersistentFlags().UintVar(&ownerID, "owner", 0, "User ID that owns the documents")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// bootstrap loads config, installs the logger and builds the application.
// The returned context is cancelled on SIGINT or SIGTERM.
func bootstrap() (context.Context, context.CancelFunc, *app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	appLogger := logger.New(app.LoggerConfig(&cfg.Log))
	logger.SetDefaultLogger(appLogger)

	ctx, cancel := signal.NotifyContext(appLogger.WithContext(context.Background()), syscall.SIGINT, syscall.SIGTERM)
	application, err := app.New(ctx, cfg)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return ctx, cancel, application, nil
}

func requireOwner() error {
	if ownerID == 0 {
		return fmt.Errorf("--owner is required")
	}
	return nil
}
