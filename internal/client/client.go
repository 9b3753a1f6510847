// Package client provides a REST client for the toolbrief server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/toolbrief/internal/metrics"
	"github.com/raphaelgruber/toolbrief/internal/models"
	"github.com/raphaelgruber/toolbrief/internal/processor"
)

// Client talks to the toolbrief HTTP API.
type Client struct {
	baseURL     string
	adminSecret string
	httpClient  *http.Client
}

// New creates a new API client.
// If baseURL is empty, uses TOOLBRIEF_SERVER_URL env var or defaults to localhost:8484.
// Timeout can be configured via TOOLBRIEF_CLIENT_TIMEOUT env var (default 2m).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("TOOLBRIEF_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8484"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	timeout := 2 * time.Minute
	if t := os.Getenv("TOOLBRIEF_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL:     baseURL,
		adminSecret: os.Getenv("TOOLBRIEF_ADMIN_SECRET"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// WithAdminSecret sets the secret sent on admin endpoints.
func (c *Client) WithAdminSecret(secret string) *Client {
	c.adminSecret = secret
	return c
}

// apiError is the server's error envelope.
type apiError struct {
	Error        string `json:"error"`
	Reason       string `json:"reason,omitempty"`
	RetryAfterMs int64  `json:"retryAfterMs,omitempty"`
}

// do sends a request and decodes the JSON response into result.
// Non-2xx responses are turned into errors carrying the server's message.
func (c *Client) do(ctx context.Context, method, path string, payload, result any) error {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.adminSecret != "" && strings.Contains(path, "/admin/") {
		req.Header.Set("Authorization", "Bearer "+c.adminSecret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			msg := apiErr.Error
			if apiErr.Reason != "" {
				msg += ": " + apiErr.Reason
			}
			if apiErr.RetryAfterMs > 0 {
				msg += fmt.Sprintf(" (retry in %s)", time.Duration(apiErr.RetryAfterMs)*time.Millisecond)
			}
			return fmt.Errorf("server error: %s", msg)
		}
		return fmt.Errorf("server error: %s - %s", resp.Status, string(body))
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// =============================================================================
// JOB OPERATIONS
// =============================================================================

// CreateJobInput is the input for enqueuing a generation job.
type CreateJobInput struct {
	ToolName  string `json:"toolName"`
	SessionID string `json:"sessionId"`
	APIKey    string `json:"apiKey,omitempty"`
	Quick     bool   `json:"quick,omitempty"`
}

// CreateJobResult is the outcome of a job creation request. Exactly one
// of the three shapes is populated: a fresh cached manual (Cached), an
// in-flight duplicate (Deduplicated, with Job), or a newly queued Job.
type CreateJobResult struct {
	Job          *models.Job `json:"job,omitempty"`
	Position     int         `json:"position,omitempty"`
	Deduplicated bool        `json:"deduplicated,omitempty"`

	Cached      bool      `json:"cached,omitempty"`
	Slug        string    `json:"slug,omitempty"`
	ShareURL    string    `json:"shareUrl,omitempty"`
	GeneratedAt time.Time `json:"generatedAt,omitempty"`
}

// CreateJob enqueues a manual generation job, or returns the cached or
// in-flight equivalent.
func (c *Client) CreateJob(ctx context.Context, input CreateJobInput) (*CreateJobResult, error) {
	var result CreateJobResult
	if err := c.do(ctx, http.MethodPost, "/v1/jobs", input, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetJob fetches a single job by id.
func (c *Client) GetJob(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	if err := c.do(ctx, http.MethodGet, "/v1/jobs/"+url.PathEscape(id), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs fetches the jobs of a session, optionally filtered by status.
func (c *Client) ListJobs(ctx context.Context, sessionID string, statuses ...models.JobStatus) ([]*models.Job, error) {
	q := url.Values{"session": {sessionID}}
	for _, s := range statuses {
		q.Add("status", string(s))
	}

	var result struct {
		Jobs []*models.Job `json:"jobs"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/jobs?"+q.Encode(), nil, &result); err != nil {
		return nil, err
	}
	return result.Jobs, nil
}

// QueuePosition fetches the 1-indexed queue position of a job, 0 when the
// job is not queued.
func (c *Client) QueuePosition(ctx context.Context, id string) (int, error) {
	var result struct {
		Position int `json:"position"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/jobs/"+url.PathEscape(id)+"/position", nil, &result); err != nil {
		return 0, err
	}
	return result.Position, nil
}

// DeleteJob removes a job. Jobs currently processing cannot be deleted.
func (c *Client) DeleteJob(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/jobs/"+url.PathEscape(id), nil, nil)
}

// =============================================================================
// MANUAL OPERATIONS
// =============================================================================

// GetManual fetches the latest manual for a slug.
func (c *Client) GetManual(ctx context.Context, slug string) (*models.Manual, error) {
	var manual models.Manual
	if err := c.do(ctx, http.MethodGet, "/v1/manuals/"+url.PathEscape(slug), nil, &manual); err != nil {
		return nil, err
	}
	return &manual, nil
}

// ManualVersion describes one archived manual version.
type ManualVersion struct {
	Key        string    `json:"key"`
	URL        string    `json:"url"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// GetManualVersions lists archived versions of a manual, newest first.
func (c *Client) GetManualVersions(ctx context.Context, slug string) ([]ManualVersion, error) {
	var result struct {
		Versions []ManualVersion `json:"versions"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/manuals/"+url.PathEscape(slug)+"/versions", nil, &result); err != nil {
		return nil, err
	}
	return result.Versions, nil
}

// =============================================================================
// ADMIN OPERATIONS
// =============================================================================

// ProcessOnce runs a single processing cycle on the server.
func (c *Client) ProcessOnce(ctx context.Context) (bool, error) {
	var result struct {
		Processed bool `json:"processed"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/admin/process", nil, &result); err != nil {
		return false, err
	}
	return result.Processed, nil
}

// ForceDeleteJob removes a job regardless of its status.
func (c *Client) ForceDeleteJob(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/admin/jobs/"+url.PathEscape(id), nil, nil)
}

// Stats fetches the server's operation metrics snapshot.
func (c *Client) Stats(ctx context.Context) (*metrics.Snapshot, error) {
	var result metrics.Snapshot
	if err := c.do(ctx, http.MethodGet, "/v1/admin/stats", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// =============================================================================
// EVENT STREAMING
// =============================================================================

// JobEvent is one message from the job event stream: either a full job
// snapshot or a single progress event.
type JobEvent struct {
	Kind     string                   `json:"kind"`
	Job      *models.Job              `json:"job,omitempty"`
	Progress *processor.ProgressEvent `json:"progress,omitempty"`
}

// WatchJob streams job updates and progress events over a websocket until
// the job reaches a terminal status. The onEvent callback is invoked for
// each message; return an error from onEvent to abort.
func (c *Client) WatchJob(ctx context.Context, id string, onEvent func(JobEvent) error) error {
	wsURL := c.baseURL
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)
	wsURL += "/v1/jobs/" + url.PathEscape(id) + "/events"

	u, err := url.Parse(wsURL)
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("websocket connect: %w", err)
	}
	defer conn.Close()

	var mu sync.Mutex
	closed := false
	closeConn := func() {
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			conn.Close()
		}
	}
	defer closeConn()

	// Unblock the read loop when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()

	for {
		var ev JobEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// The server closes the socket after the terminal update; a
			// normal close here means the stream finished.
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return nil
			}
			return fmt.Errorf("read message: %w", err)
		}

		if err := onEvent(ev); err != nil {
			return err
		}
		if ev.Kind == "job_update" && ev.Job != nil && ev.Job.Status.Terminal() {
			return nil
		}
	}
}
