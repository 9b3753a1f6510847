// Package models defines data structures for the toolbrief manual generator.
package models

import "time"

// JobStatus represents the lifecycle state of a generation job.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether the status is a terminal state.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job is one unit of manual-generation work.
//
// Exactly one of Result and Error is populated once the job leaves the
// queued/processing states. APIKey is processing-internal and must never
// reach a client response; every read boundary strips it.
type Job struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	ToolName  string    `json:"toolName"`
	SessionID string    `json:"sessionId"`
	Status    JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	// Stage is the most recent progress stage while processing.
	Stage string `json:"stage,omitempty"`

	Result *JobResult `json:"result,omitempty"`
	Error  string     `json:"error,omitempty"`

	APIKey string `json:"-"`
}

// JobResult holds the outcome fields of a completed job.
type JobResult struct {
	ManualURL        string  `json:"manualUrl"`
	ShareURL         string  `json:"shareUrl"`
	InputTokens      int     `json:"inputTokens"`
	OutputTokens     int     `json:"outputTokens"`
	Cost             Cost    `json:"cost"`
	CitationCount    int     `json:"citationCount"`
	GenerationTimeMs int64   `json:"generationTimeMs"`
	FeatureCount     int     `json:"featureCount"`
	ShortcutCount    int     `json:"shortcutCount"`
	WorkflowCount    int     `json:"workflowCount"`
	TipCount         int     `json:"tipCount"`
	CoverageScore    float64 `json:"coverageScore"`
}

// Cost is an itemized generation cost in USD, rounded to 4 decimals.
type Cost struct {
	Model  float64 `json:"model"`
	Search float64 `json:"search"`
	Total  float64 `json:"total"`
}

// Clone returns a deep copy of the job, safe to hand to callers while the
// store keeps mutating the original.
func (j *Job) Clone() *Job {
	c := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	if j.Result != nil {
		r := *j.Result
		c.Result = &r
	}
	return &c
}

// Sanitized returns a copy with the processing credential removed.
func (j *Job) Sanitized() *Job {
	c := j.Clone()
	c.APIKey = ""
	return c
}
