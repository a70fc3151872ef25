// Package submit is the one call UI code makes to record a lesson review.
// It sends immediately when it can and falls back to the offline queue when
// the network is the problem.
package submit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/clawinfra/reviewsync/internal/client"
	"github.com/clawinfra/reviewsync/internal/notify"
	"github.com/clawinfra/reviewsync/internal/queue"
	"github.com/clawinfra/reviewsync/internal/review"
	"github.com/clawinfra/reviewsync/internal/session"
	"github.com/clawinfra/reviewsync/internal/syncer"
)

// ErrNotAuthenticated is returned when no user is logged in.
var ErrNotAuthenticated = errors.New("submit: not authenticated")

// Outcome says what happened to a submitted review.
type Outcome int

const (
	// OutcomeRejected means the review was neither delivered nor queued.
	OutcomeRejected Outcome = iota
	// OutcomeDelivered means the server accepted the review.
	OutcomeDelivered
	// OutcomeQueued means the review waits in the offline queue.
	OutcomeQueued
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeQueued:
		return "queued"
	default:
		return "rejected"
	}
}

// Service hides the online/offline branch from callers.
type Service struct {
	queue     *queue.Manager
	submitter syncer.Submitter
	sessions  session.Provider
	conn      syncer.Connectivity
	notifier  notify.Notifier
	logger    *slog.Logger
}

// New creates a service. A nil conn is treated as always online and a nil
// notifier discards notifications.
func New(q *queue.Manager, submitter syncer.Submitter, sessions session.Provider, conn syncer.Connectivity, notifier notify.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Service{
		queue:     q,
		submitter: submitter,
		sessions:  sessions,
		conn:      conn,
		notifier:  notifier,
		logger:    logger.With("component", "submit"),
	}
}

// SubmitReview records a review for the current user. Only failures where
// no response was received are queued; anything the server rejected is
// returned to the caller.
func (s *Service) SubmitReview(ctx context.Context, lessonID string, score float64) (Outcome, error) {
	sess, ok := s.sessions.Current()
	if !ok {
		return OutcomeRejected, ErrNotAuthenticated
	}
	rec := review.New(lessonID, score, sess.Username)
	if err := rec.Validate(); err != nil {
		return OutcomeRejected, err
	}

	if s.conn != nil && !s.conn.Online() {
		return s.enqueue(rec)
	}

	err := s.submitter.SubmitReview(ctx, sess.Token, lessonID, score)
	switch client.Classify(err) {
	case client.FailureNone:
		s.logger.Debug("review delivered", "lesson_id", lessonID)
		return OutcomeDelivered, nil
	case client.FailureConnectivity:
		s.logger.Info("review not delivered, queueing", "lesson_id", lessonID, "error", err)
		return s.enqueue(rec)
	default:
		return OutcomeRejected, fmt.Errorf("submit review %s: %w", lessonID, err)
	}
}

func (s *Service) enqueue(rec review.Record) (Outcome, error) {
	if err := s.queue.Add(rec); err != nil {
		return OutcomeRejected, fmt.Errorf("submit: queue review: %w", err)
	}
	s.notifier.Notify(notify.Notification{
		Kind:    notify.KindSavedOffline,
		Message: "Review saved offline. It will sync when you're back online.",
		Count:   1,
	})
	return OutcomeQueued, nil
}

// IsPending reports whether the current user has a queued review for
// lessonID. It is false when nobody is logged in.
func (s *Service) IsPending(lessonID string) bool {
	sess, ok := s.sessions.Current()
	if !ok {
		return false
	}
	return s.queue.IsPending(lessonID, sess.Username)
}

// Pending returns the current user's queued reviews.
func (s *Service) Pending() []review.Record {
	sess, ok := s.sessions.Current()
	if !ok {
		return nil
	}
	return s.queue.ForUser(sess.Username)
}

// ClearQueue discards every queued review, for all users.
func (s *Service) ClearQueue() (int, error) {
	n, err := s.queue.Clear()
	if err != nil {
		return n, err
	}
	s.notifier.Notify(notify.Notification{
		Kind:    notify.KindCleared,
		Message: fmt.Sprintf("Cleared %d pending %s", n, plural(n)),
		Count:   n,
	})
	return n, nil
}

func plural(n int) string {
	if n == 1 {
		return "review"
	}
	return "reviews"
}
