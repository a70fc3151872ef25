// Package syncer drains the current user's pending reviews to the server and
// reconciles the queue with the outcome of each attempt.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/clawinfra/reviewsync/internal/client"
	"github.com/clawinfra/reviewsync/internal/notify"
	"github.com/clawinfra/reviewsync/internal/queue"
	"github.com/clawinfra/reviewsync/internal/review"
	"github.com/clawinfra/reviewsync/internal/session"
)

// DefaultMaxAttempts is how many server rejections a record survives before
// it is moved to the dead-letter archive.
const DefaultMaxAttempts = 20

// Submitter delivers one review. *client.Client satisfies it.
type Submitter interface {
	SubmitReview(ctx context.Context, token, lessonID string, score float64) error
}

// Connectivity reports whether the network is reachable.
// *connectivity.Monitor satisfies it.
type Connectivity interface {
	Online() bool
}

// SkipReason explains why a pass made no network calls.
type SkipReason string

const (
	SkipNone            SkipReason = ""
	SkipEmpty           SkipReason = "empty"
	SkipOffline         SkipReason = "offline"
	SkipUnauthenticated SkipReason = "unauthenticated"
	SkipNoUserRecords   SkipReason = "no_user_records"
	SkipInFlight        SkipReason = "in_flight"
)

// Result summarises one sync pass.
type Result struct {
	Attempted int
	Succeeded int
	Requeued  int
	Dropped   int
	AuthError bool
	Skipped   SkipReason
}

// Config tunes the engine. Zero values take defaults.
type Config struct {
	MaxAttempts int
	Notifier    notify.Notifier
	Archive     *queue.Archive
	Logger      *slog.Logger
}

// Engine runs sync passes. At most one pass runs at a time.
type Engine struct {
	queue     *queue.Manager
	submitter Submitter
	sessions  session.Provider
	conn      Connectivity
	notifier  notify.Notifier
	archive   *queue.Archive
	logger    *slog.Logger

	maxAttempts atomic.Int64

	running atomic.Bool
	kick    chan struct{}

	mu     sync.Mutex
	last   Result
	lastAt time.Time
}

// New creates an engine. A nil conn is treated as always online.
func New(q *queue.Manager, submitter Submitter, sessions session.Provider, conn Connectivity, cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Discard
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	e := &Engine{
		queue:     q,
		submitter: submitter,
		sessions:  sessions,
		conn:      conn,
		notifier:  cfg.Notifier,
		archive:   cfg.Archive,
		logger:    cfg.Logger.With("component", "syncer"),
		kick:      make(chan struct{}, 1),
	}
	e.maxAttempts.Store(int64(cfg.MaxAttempts))
	return e
}

// SetMaxAttempts changes the retry ceiling for later passes. n <= 0
// restores the default.
func (e *Engine) SetMaxAttempts(n int) {
	if n <= 0 {
		n = DefaultMaxAttempts
	}
	e.maxAttempts.Store(int64(n))
}

// Kick requests a pass without blocking. Requests made while one is already
// waiting collapse into it.
func (e *Engine) Kick() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// Run performs a pass for every Kick until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.kick:
			e.Sync(ctx)
		}
	}
}

// Last returns the most recent completed pass and when it finished.
func (e *Engine) Last() (Result, time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last, e.lastAt
}

// Sync attempts delivery of the current user's pending reviews, in queue
// order. Records of other users are never sent or modified.
func (e *Engine) Sync(ctx context.Context) Result {
	if !e.running.CompareAndSwap(false, true) {
		e.logger.Debug("sync already in flight")
		return Result{Skipped: SkipInFlight}
	}
	defer e.running.Store(false)

	res := e.pass(ctx)
	if res.Skipped == SkipNone {
		e.mu.Lock()
		e.last = res
		e.lastAt = time.Now()
		e.mu.Unlock()
	}
	return res
}

func (e *Engine) pass(ctx context.Context) Result {
	snap := e.queue.Snapshot()
	if len(snap.Records) == 0 {
		return Result{Skipped: SkipEmpty}
	}
	if e.conn != nil && !e.conn.Online() {
		return Result{Skipped: SkipOffline}
	}
	sess, ok := e.sessions.Current()
	if !ok {
		return Result{Skipped: SkipUnauthenticated}
	}

	owned, others := review.Partition(snap.Records, sess.Username)
	if len(owned) == 0 {
		return Result{Skipped: SkipNoUserRecords}
	}

	logger := e.logger.With("user", session.Fingerprint(sess.Username))
	logger.Info("sync started", "pending", len(owned))

	var (
		res    Result
		failed []review.Record
		dead   []review.Record
		bumped bool
		limit  = int(e.maxAttempts.Load())
	)
	for _, r := range owned {
		if res.AuthError {
			failed = append(failed, r)
			continue
		}

		res.Attempted++
		err := e.submitter.SubmitReview(ctx, sess.Token, r.LessonID, r.PerformanceScore)
		switch client.Classify(err) {
		case client.FailureNone:
			res.Succeeded++
		case client.FailureAuthorization:
			logger.Warn("sync unauthorized, holding remaining reviews", "lesson_id", r.LessonID)
			res.AuthError = true
			failed = append(failed, r)
		case client.FailureConnectivity:
			logger.Debug("review not delivered", "lesson_id", r.LessonID, "error", err)
			failed = append(failed, r)
		default:
			r.Attempts++
			bumped = true
			if r.Attempts >= limit {
				logger.Warn("review rejected too often, archiving",
					"lesson_id", r.LessonID, "attempts", r.Attempts, "error", err)
				dead = append(dead, r)
				continue
			}
			logger.Info("review rejected, will retry", "lesson_id", r.LessonID, "attempts", r.Attempts, "error", err)
			failed = append(failed, r)
		}
	}
	res.Requeued = len(failed)
	res.Dropped = len(dead)

	if res.Succeeded > 0 || len(failed) != len(owned) || bumped {
		if err := e.queue.ReplaceAfterSync(snap, failed, others); err != nil {
			logger.Error("reconcile queue failed", "error", err)
		}
	}
	if len(dead) > 0 && e.archive != nil {
		if err := e.archive.Add(dead...); err != nil {
			logger.Error("archive dead letters failed", "error", err)
		}
	}

	e.report(res)
	logger.Info("sync finished",
		"attempted", res.Attempted,
		"succeeded", res.Succeeded,
		"requeued", res.Requeued,
		"dropped", res.Dropped,
		"auth_error", res.AuthError)
	return res
}

func (e *Engine) report(res Result) {
	if res.Succeeded > 0 {
		e.notifier.Notify(notify.Notification{
			Kind:    notify.KindSynced,
			Message: fmt.Sprintf("Synced %d pending %s", res.Succeeded, plural(res.Succeeded)),
			Count:   res.Succeeded,
		})
	}
	if res.AuthError {
		e.notifier.Notify(notify.Notification{
			Kind:    notify.KindAuthRequired,
			Message: "Your session has expired. Please log in again to sync pending reviews.",
			Count:   res.Requeued,
		})
	}
	if res.Dropped > 0 {
		e.notifier.Notify(notify.Notification{
			Kind:    notify.KindDropped,
			Message: fmt.Sprintf("%d %s could not be delivered and were archived", res.Dropped, plural(res.Dropped)),
			Count:   res.Dropped,
		})
	}
}

func plural(n int) string {
	if n == 1 {
		return "review"
	}
	return "reviews"
}
