// Command reviewsync-tui runs the sync daemon behind an interactive terminal
// dashboard.
//
// Usage:
//
//	go run ./cmd/reviewsync-tui --config reviewsync.json
//
// The dashboard shows the session, connectivity, the current user's pending
// reviews and a log of sync notifications. Reviews can be submitted from
// the input line; works over SSH, tmux and screen.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/clawinfra/reviewsync/internal/cli"
	"github.com/clawinfra/reviewsync/internal/dashboard"
)

func main() {
	configPath := flag.String("config", "reviewsync.json", "path to config file")
	logPath := flag.String("log", "reviewsync-tui.log", "path to log file")
	flag.Parse()

	// Set up logging to file (stdout is owned by the TUI)
	logFile, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close() //nolint:errcheck

	notifier, notices := dashboard.Notices(64)
	app, err := cli.OpenAppWithHandler(*configPath, func(opts *slog.HandlerOptions) slog.Handler {
		return slog.NewJSONHandler(logFile, opts)
	}, notifier)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error starting reviewsync: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	program := tea.NewProgram(dashboard.New(app, notices), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		app.Logger.Error("TUI crashed", "error", err)
	}

	app.Logger.Info("shutting down")
	cancel()
	if err := <-done; err != nil {
		fmt.Fprintf(os.Stderr, "error stopping reviewsync: %v\n", err)
		os.Exit(1)
	}
}
