package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/clawinfra/reviewsync/internal/cli"
)

var (
	version   = "0.1.0"
	buildTime = "dev"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("reviewsync", flag.ContinueOnError)
	configPath := fs.String("config", "reviewsync.json", "Path to config file")
	showVersion := fs.Bool("version", false, "Show version")
	fs.Usage = func() { cli.PrintHelp("reviewsync") }
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 1
	}

	if *showVersion {
		printVersion()
		return 0
	}

	subCmd := fs.Arg(0)
	var rest []string
	if fs.NArg() > 1 {
		rest = fs.Args()[1:]
	}

	switch subCmd {
	case "", "run":
		return runDaemon(*configPath)
	case "login":
		return cli.LoginCommand(rest, *configPath)
	case "logout":
		return cli.LogoutCommand(rest, *configPath)
	case "submit":
		return cli.SubmitCommand(rest, *configPath)
	case "sync":
		return cli.SyncCommand(rest, *configPath)
	case "status":
		return cli.StatusCommand(rest, *configPath)
	case "clear":
		return cli.ClearCommand(rest, *configPath)
	case "dead":
		return cli.DeadCommand(rest, *configPath)
	case "version":
		printVersion()
		return 0
	case "help":
		if len(rest) > 0 {
			if !cli.PrintCommandHelp("reviewsync", rest[0]) {
				return 1
			}
			return 0
		}
		cli.PrintHelp("reviewsync")
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", subCmd)
		fmt.Fprintf(os.Stderr, "Available commands: %v\n", cli.CommandNames())
		return 1
	}
}

func printVersion() {
	fmt.Printf("reviewsync v%s (built %s)\n", version, buildTime)
}

// runDaemon starts the sync daemon and blocks until a shutdown signal.
func runDaemon(configPath string) int {
	app, err := cli.OpenApp(configPath, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Setup failed: %v\n", err)
		return 1
	}
	defer app.Close()

	app.Logger.Info("starting reviewsync", "version", version, "config", configPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	if err := waitForShutdown(app, done); err != nil {
		app.Logger.Error("shutdown error", "error", err)
		return 1
	}
	cancel()
	if err := <-done; err != nil {
		app.Logger.Error("daemon error", "error", err)
		return 1
	}
	return 0
}

// waitForShutdown waits for a termination signal, handling platform
// reload/sync signals in between. It returns early if the daemon exits.
func waitForShutdown(app *cli.App, done <-chan error) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, getShutdownSignals()...)
	defer signal.Stop(sigCh)

	for {
		select {
		case err := <-done:
			return fmt.Errorf("daemon exited: %w", err)
		case sig := <-sigCh:
			if handlePlatformSignal(sig, app) {
				continue
			}
			app.Logger.Info("shutdown signal received", "signal", sig)
			return nil
		}
	}
}
