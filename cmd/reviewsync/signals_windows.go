//go:build windows

package main

import (
	"os"
	"syscall"

	"github.com/clawinfra/reviewsync/internal/cli"
)

// getShutdownSignals returns the signals to listen for on Windows
func getShutdownSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM}
}

// handlePlatformSignal has nothing to handle on Windows; every signal shuts down.
func handlePlatformSignal(os.Signal, *cli.App) bool {
	return false
}
