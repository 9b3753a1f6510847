// Package jobs holds the generation job state machine: lifecycle
// transitions, queue selection, stuck-job recovery, deduplication, and
// per-session quotas.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/raphaelgruber/toolbrief/internal/models"
)

var (
	// ErrNotFound is returned for lookups and updates on unknown job ids.
	ErrNotFound = errors.New("job not found")

	// ErrJobProcessing rejects deleting a job a worker is still running.
	ErrJobProcessing = errors.New("job is processing")

	// ErrNotQueued means a claim attempt lost the race: the job already
	// left the queued state.
	ErrNotQueued = errors.New("job is not queued")
)

// Update is a partial job mutation. Nil fields are left untouched.
type Update struct {
	Status      *models.JobStatus
	Stage       *string
	Result      *models.JobResult
	Error       *string
	ClearAPIKey bool
}

// CreateParams are the inputs to job creation.
type CreateParams struct {
	ToolName  string
	Slug      string
	SessionID string
	APIKey    string
}

// Store is the job state machine. Implementations must be safe for
// concurrent use; in particular MarkProcessing must guarantee that only
// one caller wins the queued-to-processing transition for a given job.
type Store interface {
	// CreateJob inserts a new queued job.
	CreateJob(ctx context.Context, params CreateParams) (*models.Job, error)

	// GetJob returns the job or ErrNotFound. The credential is stripped.
	GetJob(id string) (*models.Job, error)

	// ListJobs returns a session's jobs newest-first, optionally filtered
	// by status. Credentials are stripped.
	ListJobs(sessionID string, statuses ...models.JobStatus) []*models.Job

	// UpdateJob merges the partial update into the job, maintaining
	// transition timestamps, and returns the result or ErrNotFound.
	UpdateJob(ctx context.Context, id string, update Update) (*models.Job, error)

	// FindNextJob reclaims stuck processing jobs into queued, then returns
	// the oldest queued job by creation time, or nil when nothing is
	// eligible. The returned job is still queued; claim it with
	// MarkProcessing. The credential is retained for the processor.
	FindNextJob(ctx context.Context) (*models.Job, error)

	// MarkProcessing transitions the job from queued to processing,
	// stamping StartedAt. It fails for any other current status, so two
	// racing processors claim a job exactly once.
	MarkProcessing(ctx context.Context, id string) (*models.Job, error)

	// GetQueuePosition returns the 1-indexed position among queued jobs,
	// or 0 when the job is not currently queued.
	GetQueuePosition(id string) int

	// CheckJobRateLimit reports whether the session may create another
	// job, with a retry-after hint when denied. Sliding window over the
	// session's recent job creations.
	CheckJobRateLimit(sessionID string) (allowed bool, retryAfter time.Duration)

	// FindExistingJob returns a queued or processing job for the slug, or
	// nil when none is in flight. Used for deduplication.
	FindExistingJob(slug string) *models.Job

	// CleanupOldJobs enforces the per-session job cap by deleting the
	// oldest terminal jobs beyond it. Returns the number deleted.
	CleanupOldJobs(ctx context.Context) int

	// DeleteJob removes the job unless it is processing.
	DeleteJob(ctx context.Context, id string) error

	// ForceDeleteJob removes the job regardless of status.
	ForceDeleteJob(ctx context.Context, id string) error

	// DeleteAllJobs clears the store and returns the number removed.
	DeleteAllJobs(ctx context.Context) int
}

// Persister mirrors job state into durable storage. Implementations may
// be slow; the store treats persistence errors as warnings, never as
// in-memory state failures.
type Persister interface {
	SaveJob(ctx context.Context, job *models.Job) error
	DeleteJob(ctx context.Context, id string) error
	DeleteAllJobs(ctx context.Context) error
}
