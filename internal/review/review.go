// Package review defines the pending lesson-review record shared by the
// queue, store, sync engine and submission packages.
package review

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Bounds of the self-assessed performance score.
const (
	ScoreMin = 0.0
	ScoreMax = 1.0
)

var (
	// ErrMissingLesson is returned when a record has no lesson id.
	ErrMissingLesson = errors.New("review: lesson id is required")
	// ErrScoreOutOfRange is returned when the score is outside [ScoreMin, ScoreMax].
	ErrScoreOutOfRange = errors.New("review: performance score out of range")
)

// Record is a lesson-completion review awaiting delivery to the server.
type Record struct {
	ID               string    `json:"id,omitempty"`
	LessonID         string    `json:"lessonId"`
	PerformanceScore float64   `json:"performanceScore"`
	Timestamp        time.Time `json:"timestamp"`
	Username         string    `json:"username"`
	Attempts         int       `json:"attempts,omitempty"`
}

// Key identifies the dedupe slot of a record. At most one pending record
// exists per key.
type Key struct {
	LessonID string
	Username string
}

// New builds a record stamped with a fresh id and the current time.
func New(lessonID string, score float64, username string) Record {
	return Record{
		ID:               uuid.NewString(),
		LessonID:         lessonID,
		PerformanceScore: score,
		Timestamp:        time.Now().UTC(),
		Username:         username,
	}
}

// Key returns the dedupe key of the record.
func (r Record) Key() Key {
	return Key{LessonID: r.LessonID, Username: r.Username}
}

// Validate checks the fields a server would reject outright.
func (r Record) Validate() error {
	if r.LessonID == "" {
		return ErrMissingLesson
	}
	// NaN compares false against both bounds and cannot be encoded as JSON.
	if math.IsNaN(r.PerformanceScore) || r.PerformanceScore < ScoreMin || r.PerformanceScore > ScoreMax {
		return fmt.Errorf("%w: %v", ErrScoreOutOfRange, r.PerformanceScore)
	}
	return nil
}

// Partition splits records into those owned by username and everything else,
// preserving queue order in both halves.
func Partition(records []Record, username string) (owned, others []Record) {
	for _, r := range records {
		if r.Username == username {
			owned = append(owned, r)
		} else {
			others = append(others, r)
		}
	}
	return owned, others
}

// UnmarshalJSON accepts timestamps written either as RFC 3339 strings or as
// epoch milliseconds, which is how records queued by older clients look.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	var aux struct {
		plain
		Timestamp json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Record(aux.plain)
	r.Timestamp = time.Time{}

	if len(aux.Timestamp) == 0 || string(aux.Timestamp) == "null" {
		return nil
	}
	var millis int64
	if err := json.Unmarshal(aux.Timestamp, &millis); err == nil {
		r.Timestamp = time.UnixMilli(millis).UTC()
		return nil
	}
	var ts time.Time
	if err := json.Unmarshal(aux.Timestamp, &ts); err != nil {
		return fmt.Errorf("review: parse timestamp: %w", err)
	}
	r.Timestamp = ts
	return nil
}
