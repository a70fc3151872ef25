package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/clawinfra/reviewsync/internal/connectivity"
	"github.com/clawinfra/reviewsync/internal/review"
	"github.com/clawinfra/reviewsync/internal/session"
	"github.com/clawinfra/reviewsync/internal/syncer"
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func openOrFail(configPath string) (*App, bool) {
	app, err := OpenApp(configPath, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return nil, false
	}
	return app, true
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// LoginCommand handles 'reviewsync login'. Saving the session kicks off a
// sync for the new user's pending reviews.
func LoginCommand(args []string, configPath string) int {
	fs := newFlagSet("login")
	token := fs.String("token", "", "Bearer token issued by the API")
	username := fs.String("username", "", "Username (defaults to the token's claims)")
	noSync := fs.Bool("no-sync", false, "Do not sync pending reviews after login")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *token == "" {
		fmt.Fprintln(stderr, "Error: --token is required")
		return 1
	}

	app, ok := openOrFail(configPath)
	if !ok {
		return 1
	}
	defer app.Close()

	if err := app.Sessions.Save(session.Session{Username: *username, Token: *token}); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	sess, _ := app.Sessions.Current()
	fmt.Fprintf(stdout, "Logged in as %s\n", sess.Username)

	if *noSync {
		return 0
	}
	printResult(app.Engine.Sync(context.Background()))
	return 0
}

// LogoutCommand handles 'reviewsync logout'. Pending reviews stay queued.
func LogoutCommand(args []string, configPath string) int {
	if err := newFlagSet("logout").Parse(args); err != nil {
		return 1
	}
	app, ok := openOrFail(configPath)
	if !ok {
		return 1
	}
	defer app.Close()

	if err := app.Sessions.Clear(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, "Logged out")
	return 0
}

// SubmitCommand handles 'reviewsync submit'.
func SubmitCommand(args []string, configPath string) int {
	fs := newFlagSet("submit")
	lesson := fs.String("lesson", "", "Lesson ID")
	score := fs.Float64("score", -1, "Performance score between 0 and 1")
	offline := fs.Bool("offline", false, "Queue without trying the network")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	app, ok := openOrFail(configPath)
	if !ok {
		return 1
	}
	defer app.Close()

	if *offline {
		app.Monitor.Handle(connectivity.Event{Signal: connectivity.SignalOffline})
	}
	outcome, err := app.Service.SubmitReview(context.Background(), *lesson, *score)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Review for %s %s\n", *lesson, outcome)
	return 0
}

// SyncCommand handles 'reviewsync sync': one pass, then exit.
func SyncCommand(args []string, configPath string) int {
	if err := newFlagSet("sync").Parse(args); err != nil {
		return 1
	}
	app, ok := openOrFail(configPath)
	if !ok {
		return 1
	}
	defer app.Close()

	res := app.Engine.Sync(context.Background())
	printResult(res)
	if res.AuthError {
		return 2
	}
	return 0
}

// StatusCommand handles 'reviewsync status'.
func StatusCommand(args []string, configPath string) int {
	if err := newFlagSet("status").Parse(args); err != nil {
		return 1
	}
	app, ok := openOrFail(configPath)
	if !ok {
		return 1
	}
	defer app.Close()

	sess, loggedIn := app.Sessions.Current()
	if loggedIn {
		fmt.Fprintf(stdout, "User:        %s\n", sess.Username)
		if exp := session.ExpiresAt(sess.Token); !exp.IsZero() {
			state := "valid"
			if time.Now().After(exp) {
				state = "expired"
			}
			fmt.Fprintf(stdout, "Token:       %s until %s\n", state, exp.Local().Format(time.RFC3339))
		}
	} else {
		fmt.Fprintln(stdout, "User:        (logged out)")
	}
	fmt.Fprintf(stdout, "Storage:     %s\n", app.Config.Storage.Backend)
	fmt.Fprintf(stdout, "Pending:     %d total, %d yours\n", app.Queue.Len(), len(app.Service.Pending()))
	fmt.Fprintf(stdout, "Dead letter: %d\n", len(app.Archive.List()))

	for _, r := range app.Service.Pending() {
		printRecord(r)
	}
	return 0
}

// ClearCommand handles 'reviewsync clear'.
func ClearCommand(args []string, configPath string) int {
	if err := newFlagSet("clear").Parse(args); err != nil {
		return 1
	}
	app, ok := openOrFail(configPath)
	if !ok {
		return 1
	}
	defer app.Close()

	n, err := app.Service.ClearQueue()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Cleared %d pending reviews\n", n)
	return 0
}

// DeadCommand handles 'reviewsync dead': list, requeue or clear reviews
// the sync engine gave up on.
func DeadCommand(args []string, configPath string) int {
	fs := newFlagSet("dead")
	requeue := fs.Bool("requeue", false, "Move archived reviews back into the queue")
	discard := fs.Bool("clear", false, "Discard archived reviews")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	app, ok := openOrFail(configPath)
	if !ok {
		return 1
	}
	defer app.Close()

	dead := app.Archive.List()
	switch {
	case *requeue:
		for _, r := range dead {
			r.Attempts = 0
			if err := app.Queue.Add(r); err != nil {
				fmt.Fprintf(stderr, "Error: %v\n", err)
				return 1
			}
		}
		if err := app.Archive.Clear(); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Requeued %d reviews\n", len(dead))
	case *discard:
		if err := app.Archive.Clear(); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Discarded %d reviews\n", len(dead))
	default:
		if len(dead) == 0 {
			fmt.Fprintln(stdout, "No archived reviews")
		}
		for _, r := range dead {
			printRecord(r)
		}
	}
	return 0
}

func printRecord(r review.Record) {
	fmt.Fprintf(stdout, "  %-24s %-12s score=%.2f attempts=%d queued=%s\n",
		r.LessonID, r.Username, r.PerformanceScore, r.Attempts, r.Timestamp.Local().Format(time.RFC3339))
}

func printResult(res syncer.Result) {
	if res.Skipped != syncer.SkipNone {
		fmt.Fprintf(stdout, "Sync skipped: %s\n", res.Skipped)
		return
	}
	fmt.Fprintf(stdout, "Synced %d, requeued %d, archived %d\n", res.Succeeded, res.Requeued, res.Dropped)
	if res.AuthError {
		fmt.Fprintln(stdout, "Session rejected by the server. Run 'reviewsync login' again.")
	}
}
