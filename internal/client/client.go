// Package client submits lesson reviews to the REST backend and classifies
// failures into connectivity, authorization and other.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ReviewsPath is the submission endpoint relative to the base URL.
const ReviewsPath = "/reviews"

// DefaultTimeout applies when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// ErrUnauthorized matches any 401 or 403 response.
var ErrUnauthorized = errors.New("client: unauthorized")

// FailureKind classifies a submission error.
type FailureKind int

const (
	// FailureNone means the submission succeeded.
	FailureNone FailureKind = iota
	// FailureConnectivity means no HTTP response was received.
	FailureConnectivity
	// FailureAuthorization means the server answered 401 or 403.
	FailureAuthorization
	// FailureOther is any other error status.
	FailureOther
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureConnectivity:
		return "connectivity"
	case FailureAuthorization:
		return "authorization"
	default:
		return "other"
	}
}

// ConnectivityError wraps a transport error: the request never got an
// HTTP response.
type ConnectivityError struct {
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("client: no response: %v", e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("client: http %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("client: http %d", e.StatusCode)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 and 403 responses.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized &&
		(e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden)
}

// Classify maps an error returned by SubmitReview to its FailureKind.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	if errors.Is(err, ErrUnauthorized) {
		return FailureAuthorization
	}
	var ce *ConnectivityError
	if errors.As(err, &ce) {
		return FailureConnectivity
	}
	return FailureOther
}

// submitRequest is the wire body of POST /reviews.
type submitRequest struct {
	LessonID         string  `json:"lessonId"`
	PerformanceScore float64 `json:"performanceScore"`
}

// Client talks to the review endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a client for baseURL. A zero timeout selects DefaultTimeout.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "client"),
	}
}

// SubmitReview posts one review with the bearer token. Any 2xx is success;
// the body is ignored.
func (c *Client) SubmitReview(ctx context.Context, token, lessonID string, score float64) error {
	body, err := json.Marshal(submitRequest{LessonID: lessonID, PerformanceScore: score})
	if err != nil {
		return fmt.Errorf("client: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ReviewsPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("client: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ConnectivityError{Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	c.logger.Debug("review rejected", "lesson_id", lessonID, "status", resp.StatusCode)
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
}
