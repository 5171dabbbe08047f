package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"mesa/internal/app"
	"mesa/internal/mesa"
)

// notifyLifecycleSignals subscribes to suspend and continue signals where
// the platform has them
var notifyLifecycleSignals = func(sigChan chan<- os.Signal) {}

// lifecycleAction maps a signal to "hidden", "visible" or "" for shutdown
var lifecycleAction = func(sig os.Signal) string { return "" }

// suspendProcess stops the process after live updates were suspended, as
// Ctrl+Z would without a handler. The shell's fg then delivers SIGCONT.
var suspendProcess = func() {}

// lifecycle is the part of the app driven by signals
type lifecycle interface {
	Hidden()
	Visible()
}

func createWatchCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow server events and playback",
		Long: `Stay connected to the server and print database update results and
the now playing song as they change. Runs until interrupted (Ctrl+C).

Ctrl+Z suspends live updates and stops the process; fg resumes it and
reconnects on a fresh connection.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, logger, err := loadApp(flags)
			if err != nil {
				return err
			}

			stopWatch := a.Cache().Watch(mesa.PlaybackStatusDocument, func(data json.RawMessage) {
				printNowPlaying(data)
			})
			defer stopWatch()

			if err := a.Start(); err != nil {
				shutdown(a)
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if _, err := a.API().PlaybackStatus(ctx, mesa.Fresh()); err != nil {
				logger.Warn().Err(err).Msg("failed to load playback status")
			}
			cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			notifyLifecycleSignals(sigChan)
			defer signal.Stop(sigChan)

			if sig := handleSignals(a, sigChan); sig != nil {
				color.Yellow("\n🛑 Received %s, shutting down...", sig)
			}
			return shutdown(a)
		},
	}
}

// handleSignals applies lifecycle signals until one that is not, and returns it
func handleSignals(a lifecycle, sigChan <-chan os.Signal) os.Signal {
	for sig := range sigChan {
		switch lifecycleAction(sig) {
		case "hidden":
			color.Yellow("⏸ Live updates suspended")
			a.Hidden()
			suspendProcess()
		case "visible":
			color.Green("▶ Live updates resumed")
			a.Visible()
		default:
			return sig
		}
	}
	return nil
}

func shutdown(a *app.App) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Stop(ctx); err != nil {
		return fmt.Errorf("error shutting down: %w", err)
	}
	return nil
}

func printNowPlaying(data json.RawMessage) {
	status, err := mesa.DecodePlaybackStatus(data)
	if err != nil || status.Song == nil {
		color.White("⏹ Nothing playing")
		return
	}

	state := "▶"
	if !status.Playing {
		state = "⏸"
	}
	bold := color.New(color.Bold).SprintFunc()
	fmt.Printf("%s %s - %s %s\n", state, bold(status.Song.Name), status.Song.Artists,
		color.HiBlackString("[%s]", formatDuration(status.Elapsed)))
}
