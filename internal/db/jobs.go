package db

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"github.com/raphaelgruber/toolbrief/internal/models"
)

// jobRecord is the persisted shape of a job. The credential is stored so
// a queued job survives a restart with everything it needs to run; it
// never travels back out through any client-facing read.
type jobRecord struct {
	JobID       string             `json:"job_id"`
	Slug        string             `json:"slug"`
	ToolName    string             `json:"tool_name"`
	SessionID   string             `json:"session_id"`
	Status      string             `json:"status"`
	Stage       *string            `json:"stage,omitempty"`
	Error       *string            `json:"error,omitempty"`
	APIKey      *string            `json:"api_key,omitempty"`
	Result      *models.JobResult  `json:"result,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	StartedAt   *time.Time         `json:"started_at,omitempty"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

func toRecord(job *models.Job) *jobRecord {
	rec := &jobRecord{
		JobID:       job.ID,
		Slug:        job.Slug,
		ToolName:    job.ToolName,
		SessionID:   job.SessionID,
		Status:      string(job.Status),
		Result:      job.Result,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
	if job.Stage != "" {
		rec.Stage = &job.Stage
	}
	if job.Error != "" {
		rec.Error = &job.Error
	}
	if job.APIKey != "" {
		rec.APIKey = &job.APIKey
	}
	return rec
}

func (r *jobRecord) toJob() *models.Job {
	job := &models.Job{
		ID:          r.JobID,
		Slug:        r.Slug,
		ToolName:    r.ToolName,
		SessionID:   r.SessionID,
		Status:      models.JobStatus(r.Status),
		Result:      r.Result,
		CreatedAt:   r.CreatedAt,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}
	if r.Stage != nil {
		job.Stage = *r.Stage
	}
	if r.Error != nil {
		job.Error = *r.Error
	}
	if r.APIKey != nil {
		job.APIKey = *r.APIKey
	}
	return job
}

// UpsertJob writes the full job state under a deterministic record id,
// so repeated saves overwrite rather than accumulate.
func (c *Client) UpsertJob(ctx context.Context, job *models.Job) error {
	rec := toRecord(job)
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record("job", $id) CONTENT $content
	`, map[string]any{
		"id":      job.ID,
		"content": rec,
	})
	if err != nil {
		return fmt.Errorf("upsert job: %w", wrapQueryError(err))
	}
	return nil
}

// GetJobRecord retrieves a persisted job by id. Returns (nil, nil) when
// the record does not exist.
func (c *Client) GetJobRecord(ctx context.Context, id string) (*models.Job, error) {
	results, err := surrealdb.Query[[]jobRecord](ctx, c.db, `
		SELECT * FROM type::record("job", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get job: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return (*results)[0].Result[0].toJob(), nil
}

// ListActiveJobs returns persisted jobs still queued or processing,
// oldest first. Used to resume work after a restart.
func (c *Client) ListActiveJobs(ctx context.Context) ([]*models.Job, error) {
	results, err := surrealdb.Query[[]jobRecord](ctx, c.db, `
		SELECT * FROM job
		WHERE status IN ["queued", "processing"]
		ORDER BY created_at ASC
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("list active jobs: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return nil, nil
	}
	records := (*results)[0].Result
	jobs := make([]*models.Job, len(records))
	for i := range records {
		jobs[i] = records[i].toJob()
	}
	return jobs, nil
}

// DeleteJobRecord removes a persisted job.
func (c *Client) DeleteJobRecord(ctx context.Context, id string) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		DELETE type::record("job", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("delete job: %w", wrapQueryError(err))
	}
	return nil
}

// DeleteAllJobRecords clears the job table.
func (c *Client) DeleteAllJobRecords(ctx context.Context) error {
	_, err := surrealdb.Query[any](ctx, c.db, "DELETE job", nil)
	if err != nil {
		return fmt.Errorf("delete all jobs: %w", wrapQueryError(err))
	}
	return nil
}

// JobPersister adapts the client to the job store's persistence hook.
type JobPersister struct {
	client *Client
}

func NewJobPersister(client *Client) *JobPersister {
	return &JobPersister{client: client}
}

func (p *JobPersister) SaveJob(ctx context.Context, job *models.Job) error {
	return p.client.UpsertJob(ctx, job)
}

func (p *JobPersister) DeleteJob(ctx context.Context, id string) error {
	return p.client.DeleteJobRecord(ctx, id)
}

func (p *JobPersister) DeleteAllJobs(ctx context.Context) error {
	return p.client.DeleteAllJobRecords(ctx)
}
