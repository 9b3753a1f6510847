package jobs

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelgruber/toolbrief/internal/models"
)

// stageDebounce bounds how often stage-only changes hit the persister.
const stageDebounce = 2 * time.Second

// Options tune the in-memory store. Zero values fall back to defaults.
type Options struct {
	// StuckThreshold is how long a processing job may hold its claim
	// before FindNextJob reclaims it into queued. Default 5 minutes.
	StuckThreshold time.Duration

	// RateLimit and RateLimitWindow bound job creations per session.
	// Default 5 per minute.
	RateLimit       int
	RateLimitWindow time.Duration

	// MaxJobsPerSession caps retained jobs per session; CleanupOldJobs
	// deletes the oldest terminal jobs beyond it. Default 100.
	MaxJobsPerSession int
}

func (o Options) withDefaults() Options {
	if o.StuckThreshold <= 0 {
		o.StuckThreshold = 5 * time.Minute
	}
	if o.RateLimit <= 0 {
		o.RateLimit = 5
	}
	if o.RateLimitWindow <= 0 {
		o.RateLimitWindow = time.Minute
	}
	if o.MaxJobsPerSession <= 0 {
		o.MaxJobsPerSession = 100
	}
	return o
}

// MemoryStore is the process-local Store. A single mutex guards the job
// map; every read-modify-write (claiming, reclaiming, cleanup) happens
// inside one critical section. An optional Persister mirrors changes
// into durable storage; persistence failures are logged, never surfaced,
// since the in-memory state is authoritative for a running process.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]*models.Job

	opts      Options
	persister Persister

	// lastStageSave debounces persistence of stage-only updates.
	lastStageSave map[string]time.Time

	now func() time.Time
}

// NewMemoryStore creates an empty store. persister may be nil.
func NewMemoryStore(opts Options, persister Persister) *MemoryStore {
	return &MemoryStore{
		jobs:          make(map[string]*models.Job),
		opts:          opts.withDefaults(),
		persister:     persister,
		lastStageSave: make(map[string]time.Time),
		now:           time.Now,
	}
}

func (s *MemoryStore) CreateJob(ctx context.Context, params CreateParams) (*models.Job, error) {
	job := &models.Job{
		ID:        uuid.New().String(),
		Slug:      params.Slug,
		ToolName:  params.ToolName,
		SessionID: params.SessionID,
		Status:    models.JobQueued,
		CreatedAt: s.now(),
		APIKey:    params.APIKey,
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	s.persist(ctx, job)
	slog.Info("job created", "job_id", job.ID, "slug", job.Slug, "session", job.SessionID)
	return job.Sanitized(), nil
}

// RegisterJob adds an existing job to the store (for resume after
// restart). The job keeps its original id and timestamps.
func (s *MemoryStore) RegisterJob(job *models.Job) {
	s.mu.Lock()
	s.jobs[job.ID] = job.Clone()
	s.mu.Unlock()
}

func (s *MemoryStore) GetJob(id string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return job.Sanitized(), nil
}

func (s *MemoryStore) ListJobs(sessionID string, statuses ...models.JobStatus) []*models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Job, 0)
	for _, job := range s.jobs {
		if job.SessionID != sessionID {
			continue
		}
		if len(statuses) > 0 && !slices.Contains(statuses, job.Status) {
			continue
		}
		out = append(out, job.Sanitized())
	}

	slices.SortFunc(out, func(a, b *models.Job) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

func (s *MemoryStore) UpdateJob(ctx context.Context, id string, update Update) (*models.Job, error) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}

	stageOnly := update.Status == nil && update.Result == nil && update.Error == nil && !update.ClearAPIKey

	if update.Status != nil {
		job.Status = *update.Status
		switch {
		case *update.Status == models.JobProcessing && job.StartedAt == nil:
			t := s.now()
			job.StartedAt = &t
		case update.Status.Terminal() && job.CompletedAt == nil:
			t := s.now()
			job.CompletedAt = &t
		}
	}
	if update.Stage != nil {
		job.Stage = *update.Stage
	}
	if update.Result != nil {
		job.Result = update.Result
	}
	if update.Error != nil {
		job.Error = *update.Error
	}
	if update.ClearAPIKey {
		job.APIKey = ""
	}

	persist := true
	if stageOnly {
		if s.now().Sub(s.lastStageSave[id]) < stageDebounce {
			persist = false
		} else {
			s.lastStageSave[id] = s.now()
		}
	}
	snapshot := job.Clone()
	s.mu.Unlock()

	if persist {
		s.persist(ctx, snapshot)
	}
	snapshot.APIKey = ""
	return snapshot, nil
}

func (s *MemoryStore) FindNextJob(ctx context.Context) (*models.Job, error) {
	s.mu.Lock()

	var reclaimed []*models.Job
	cutoff := s.now().Add(-s.opts.StuckThreshold)
	for _, job := range s.jobs {
		if job.Status == models.JobProcessing && job.StartedAt != nil && job.StartedAt.Before(cutoff) {
			job.Status = models.JobQueued
			job.StartedAt = nil
			reclaimed = append(reclaimed, job.Clone())
		}
	}

	var next *models.Job
	for _, job := range s.jobs {
		if job.Status != models.JobQueued {
			continue
		}
		if next == nil || job.CreatedAt.Before(next.CreatedAt) {
			next = job
		}
	}
	var out *models.Job
	if next != nil {
		out = next.Clone()
	}
	s.mu.Unlock()

	for _, job := range reclaimed {
		slog.Warn("reclaimed stuck job", "job_id", job.ID, "slug", job.Slug)
		s.persist(ctx, job)
	}
	return out, nil
}

func (s *MemoryStore) MarkProcessing(ctx context.Context, id string) (*models.Job, error) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	if job.Status != models.JobQueued {
		s.mu.Unlock()
		return nil, ErrNotQueued
	}

	job.Status = models.JobProcessing
	t := s.now()
	job.StartedAt = &t
	snapshot := job.Clone()
	s.mu.Unlock()

	s.persist(ctx, snapshot)
	return snapshot, nil
}

func (s *MemoryStore) GetQueuePosition(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.Status != models.JobQueued {
		return 0
	}

	position := 1
	for _, other := range s.jobs {
		if other.Status == models.JobQueued && other.CreatedAt.Before(job.CreatedAt) {
			position++
		}
	}
	return position
}

func (s *MemoryStore) CheckJobRateLimit(sessionID string) (bool, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	windowStart := s.now().Add(-s.opts.RateLimitWindow)

	count := 0
	var oldest time.Time
	for _, job := range s.jobs {
		if job.SessionID != sessionID || !job.CreatedAt.After(windowStart) {
			continue
		}
		count++
		if oldest.IsZero() || job.CreatedAt.Before(oldest) {
			oldest = job.CreatedAt
		}
	}

	if count < s.opts.RateLimit {
		return true, 0
	}
	return false, oldest.Add(s.opts.RateLimitWindow).Sub(s.now())
}

func (s *MemoryStore) FindExistingJob(slug string) *models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range s.jobs {
		if job.Slug == slug && (job.Status == models.JobQueued || job.Status == models.JobProcessing) {
			return job.Sanitized()
		}
	}
	return nil
}

func (s *MemoryStore) CleanupOldJobs(ctx context.Context) int {
	s.mu.Lock()

	bySession := make(map[string][]*models.Job)
	for _, job := range s.jobs {
		bySession[job.SessionID] = append(bySession[job.SessionID], job)
	}

	var deleted []string
	for _, sessionJobs := range bySession {
		excess := len(sessionJobs) - s.opts.MaxJobsPerSession
		if excess <= 0 {
			continue
		}

		slices.SortFunc(sessionJobs, func(a, b *models.Job) int {
			return a.CreatedAt.Compare(b.CreatedAt)
		})
		for _, job := range sessionJobs {
			if excess == 0 {
				break
			}
			if !job.Status.Terminal() {
				continue
			}
			delete(s.jobs, job.ID)
			delete(s.lastStageSave, job.ID)
			deleted = append(deleted, job.ID)
			excess--
		}
	}
	s.mu.Unlock()

	for _, id := range deleted {
		s.persistDelete(ctx, id)
	}
	if len(deleted) > 0 {
		slog.Info("cleaned up old jobs", "count", len(deleted))
	}
	return len(deleted)
}

func (s *MemoryStore) DeleteJob(ctx context.Context, id string) error {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if job.Status == models.JobProcessing {
		s.mu.Unlock()
		return ErrJobProcessing
	}
	delete(s.jobs, id)
	delete(s.lastStageSave, id)
	s.mu.Unlock()

	s.persistDelete(ctx, id)
	return nil
}

func (s *MemoryStore) ForceDeleteJob(ctx context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.jobs[id]; !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.jobs, id)
	delete(s.lastStageSave, id)
	s.mu.Unlock()

	s.persistDelete(ctx, id)
	return nil
}

func (s *MemoryStore) DeleteAllJobs(ctx context.Context) int {
	s.mu.Lock()
	count := len(s.jobs)
	s.jobs = make(map[string]*models.Job)
	s.lastStageSave = make(map[string]time.Time)
	s.mu.Unlock()

	if s.persister != nil {
		if err := s.persister.DeleteAllJobs(ctx); err != nil {
			slog.Warn("failed to clear persisted jobs", "error", err)
		}
	}
	return count
}

func (s *MemoryStore) persist(ctx context.Context, job *models.Job) {
	if s.persister == nil {
		return
	}
	if err := s.persister.SaveJob(ctx, job); err != nil {
		slog.Warn("failed to persist job", "job_id", job.ID, "error", err)
	}
}

func (s *MemoryStore) persistDelete(ctx context.Context, id string) {
	if s.persister == nil {
		return
	}
	if err := s.persister.DeleteJob(ctx, id); err != nil {
		slog.Warn("failed to delete persisted job", "job_id", id, "error", err)
	}
}
