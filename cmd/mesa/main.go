package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"mesa/internal/app"
	"mesa/internal/config"
	"mesa/internal/notify"
)

type globalFlags struct {
	config   string
	server   string
	logLevel string
}

func main() {
	var flags globalFlags

	rootCmd := &cobra.Command{
		Use:   "mesa",
		Short: "Client for a Mesa music server",
		Long: `Command line client for a Mesa music server.

It browses the library, controls playback and keeps a local query cache
in sync with the server through a graphql-transport-ws subscription.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.config, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&flags.server, "server", "", "server address, e.g. http://localhost:6868")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(createWatchCmd(&flags))
	rootCmd.AddCommand(createLibraryCmds(&flags)...)
	rootCmd.AddCommand(createPlayerCmds(&flags)...)
	rootCmd.AddCommand(createQueueCmd(&flags))
	rootCmd.AddCommand(createDatabaseCmd(&flags))
	rootCmd.AddCommand(createPlaylistCmd(&flags))

	if err := rootCmd.Execute(); err != nil {
		color.Red("❌ %v", err)
		os.Exit(1)
	}
}

// loadApp loads config and builds the application
func loadApp(flags *globalFlags) (*app.App, zerolog.Logger, error) {
	cfg, err := config.Load(config.Options{
		File:     flags.config,
		Server:   flags.server,
		LogLevel: flags.logLevel,
	})
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.LogLevel)
	a, err := app.New(cfg, logger, notify.NewConsole(os.Stdout))
	if err != nil {
		return nil, logger, err
	}
	return a, logger, nil
}

// runOnce builds the app, runs fn and shuts the app down
func runOnce(flags *globalFlags, fn func(ctx context.Context, a *app.App) error) error {
	a, _, err := loadApp(flags)
	if err != nil {
		return err
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.Stop(ctx)
	}()

	return fn(context.Background(), a)
}

// setupLogger configures the zerolog logger
func setupLogger(level string) zerolog.Logger {
	var logLevel zerolog.Level
	switch level {
	case "debug":
		logLevel = zerolog.DebugLevel
	case "info":
		logLevel = zerolog.InfoLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	default:
		logLevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(logLevel)

	// stdout carries command output
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}

	return zerolog.New(output).With().Timestamp().Logger()
}
