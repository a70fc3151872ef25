//go:build !windows

package main

import (
	"os"
	"syscall"

	"github.com/clawinfra/reviewsync/internal/cli"
)

// getShutdownSignals returns the signals to listen for on Unix systems
func getShutdownSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGUSR1}
}

// handlePlatformSignal handles platform-specific signals, returns true if should continue loop
func handlePlatformSignal(sig os.Signal, app *cli.App) bool {
	switch sig {
	case syscall.SIGHUP:
		app.Logger.Info("reload signal received")
		app.RequestReload()
		return true
	case syscall.SIGUSR1:
		app.Logger.Info("sync signal received")
		app.Engine.Kick()
		return true
	}
	return false
}
