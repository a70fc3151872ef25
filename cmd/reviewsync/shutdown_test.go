//go:build !windows

package main

import (
	"bytes"
	"errors"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/clawinfra/reviewsync/internal/cli"
)

func TestWaitForShutdown(t *testing.T) {
	app, err := cli.OpenApp(memoryConfig(t), &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	defer app.Close()

	// SIGUSR1 and SIGHUP are handled in place, SIGINT ends the wait.
	go func() {
		p, _ := os.FindProcess(os.Getpid())
		for _, sig := range []os.Signal{syscall.SIGUSR1, syscall.SIGHUP, syscall.SIGINT} {
			time.Sleep(100 * time.Millisecond)
			_ = p.Signal(sig)
		}
	}()

	if err := waitForShutdown(app, make(chan error)); err != nil {
		t.Errorf("waitForShutdown() error: %v", err)
	}
}

func TestWaitForShutdownDaemonExit(t *testing.T) {
	app, err := cli.OpenApp(memoryConfig(t), &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	defer app.Close()

	done := make(chan error, 1)
	boom := errors.New("boom")
	done <- boom
	if err := waitForShutdown(app, done); !errors.Is(err, boom) {
		t.Errorf("expected daemon error, got %v", err)
	}
}
