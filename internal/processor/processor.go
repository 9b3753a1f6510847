// Package processor runs the job queue: it claims the next eligible job,
// drives a generation, persists the manual, and records the outcome.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/toolbrief/internal/generate"
	"github.com/raphaelgruber/toolbrief/internal/jobs"
	"github.com/raphaelgruber/toolbrief/internal/llm"
	"github.com/raphaelgruber/toolbrief/internal/metrics"
	"github.com/raphaelgruber/toolbrief/internal/models"
	"github.com/raphaelgruber/toolbrief/internal/storage"
)

// Generator produces a manual for a tool name.
type Generator interface {
	Generate(ctx context.Context, toolName, slug, apiKey string, progress func(llm.Event)) (*generate.Result, error)
}

// ManualWriter persists a validated manual.
type ManualWriter interface {
	StoreManual(ctx context.Context, manual *models.Manual) (*storage.StoredManual, error)
	ShareURL(slug string) string
}

// Processor executes one job per cycle.
type Processor struct {
	store     jobs.Store
	engine    Generator
	manuals   ManualWriter
	hub       *Hub
	collector *metrics.Collector

	// wake coalesces out-of-band triggers; a full buffer means a cycle
	// is already pending.
	wake chan struct{}

	interval time.Duration
}

// New creates a processor. hub and collector may be nil; interval <= 0
// disables the periodic backstop scan in Run.
func New(store jobs.Store, engine Generator, manuals ManualWriter, hub *Hub, collector *metrics.Collector, interval time.Duration) *Processor {
	return &Processor{
		store:     store,
		engine:    engine,
		manuals:   manuals,
		hub:       hub,
		collector: collector,
		wake:      make(chan struct{}, 1),
		interval:  interval,
	}
}

// Wake signals the processor to run a cycle soon. Fire-and-forget: it
// never blocks and never fails.
func (p *Processor) Wake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Run processes jobs until ctx is cancelled, waking on Wake() and on a
// periodic backstop tick that also reclaims stuck jobs. After a
// processed job it immediately checks for more work.
func (p *Processor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.wake:
		case <-ticker.C:
		}

		for {
			processed, err := p.Process(ctx)
			if err != nil {
				slog.Error("processing cycle failed", "error", err)
				break
			}
			if !processed {
				break
			}
		}
	}
}

func (p *Processor) tickInterval() time.Duration {
	if p.interval <= 0 {
		return 30 * time.Second
	}
	return p.interval
}

// Process runs one cycle: retention cleanup, stuck-job reclaim, claim of
// the oldest queued job, generation, persistence. Returns whether a job
// was processed. Safe to call with an empty queue and safe to call
// concurrently; the claim step admits exactly one winner per job.
func (p *Processor) Process(ctx context.Context) (bool, error) {
	start := time.Now()

	p.store.CleanupOldJobs(ctx)

	next, err := p.store.FindNextJob(ctx)
	if err != nil {
		return false, fmt.Errorf("select next job: %w", err)
	}
	if next == nil {
		return false, nil
	}

	claimed, err := p.store.MarkProcessing(ctx, next.ID)
	if err != nil {
		if errors.Is(err, jobs.ErrNotQueued) || errors.Is(err, jobs.ErrNotFound) {
			// Lost the claim race; the winner is handling it.
			return false, nil
		}
		return false, fmt.Errorf("claim job %s: %w", next.ID, err)
	}

	slog.Info("processing job", "job_id", claimed.ID, "slug", claimed.Slug)
	p.runJob(ctx, claimed)

	if p.collector != nil {
		p.collector.RecordTiming(metrics.OpProcessCycle, time.Since(start))
	}
	return true, nil
}

func (p *Processor) runJob(ctx context.Context, job *models.Job) {
	result, err := p.engine.Generate(ctx, job.ToolName, job.Slug, job.APIKey, p.progressFunc(ctx, job.ID))
	if err != nil {
		p.failJob(ctx, job, err)
		return
	}
	p.completeJob(ctx, job, result)
}

// progressFunc maps engine events onto job stages and hub publications.
func (p *Processor) progressFunc(ctx context.Context, jobID string) func(llm.Event) {
	return func(ev llm.Event) {
		stage := stageFor(ev.Kind)
		if stage != "" {
			if _, err := p.store.UpdateJob(ctx, jobID, jobs.Update{Stage: &stage}); err != nil {
				slog.Warn("failed to update job stage", "job_id", jobID, "error", err)
			}
		}
		if p.hub != nil {
			p.hub.Publish(ProgressEvent{
				JobID:   jobID,
				Kind:    string(ev.Kind),
				Stage:   stage,
				Model:   ev.Model,
				Attempt: ev.Attempt,
				Text:    ev.Text,
				Count:   ev.Count,
				Time:    time.Now().UTC(),
			})
		}
	}
}

func stageFor(kind llm.EventKind) string {
	switch kind {
	case llm.EventReasoningStarted:
		return "reasoning"
	case llm.EventSearchQuery, llm.EventSearchResults:
		return "searching"
	case llm.EventTokenDelta, llm.EventReasoningStopped:
		return "writing"
	case llm.EventCompleted:
		return "finishing"
	case llm.EventFailed:
		return "retrying"
	default:
		return ""
	}
}

func (p *Processor) completeJob(ctx context.Context, job *models.Job, result *generate.Result) {
	manual := result.Manual

	manualURL := ""
	shareURL := p.manuals.ShareURL(job.Slug)
	stored, err := p.manuals.StoreManual(ctx, manual)
	if err != nil {
		// The generated content is not discarded on a storage failure:
		// the job still completes with a constructed URL and a warning.
		slog.Warn("failed to store manual, completing with fallback URL",
			"job_id", job.ID, "slug", job.Slug, "error", err)
		manualURL = shareURL
	} else {
		manualURL = stored.ManualURL
		shareURL = stored.ShareURL
	}

	status := models.JobCompleted
	jobResult := &models.JobResult{
		ManualURL:        manualURL,
		ShareURL:         shareURL,
		InputTokens:      result.Usage.InputTokens,
		OutputTokens:     result.Usage.OutputTokens,
		Cost:             manual.Cost,
		CitationCount:    len(manual.Citations),
		GenerationTimeMs: result.Elapsed.Milliseconds(),
		FeatureCount:     len(manual.Features),
		ShortcutCount:    len(manual.Shortcuts),
		WorkflowCount:    len(manual.Workflows),
		TipCount:         len(manual.Tips),
		CoverageScore:    manual.CoverageScore,
	}

	if _, err := p.store.UpdateJob(ctx, job.ID, jobs.Update{
		Status:      &status,
		Result:      jobResult,
		ClearAPIKey: true,
	}); err != nil {
		slog.Error("failed to record job completion", "job_id", job.ID, "error", err)
		return
	}

	slog.Info("job completed",
		"job_id", job.ID, "slug", job.Slug, "model", result.ModelUsed,
		"attempts", result.Attempts, "elapsed", result.Elapsed,
		"citations", jobResult.CitationCount, "cost_usd", manual.Cost.Total)
}

func (p *Processor) failJob(ctx context.Context, job *models.Job, genErr error) {
	status := models.JobFailed
	msg := genErr.Error()
	if _, err := p.store.UpdateJob(ctx, job.ID, jobs.Update{
		Status:      &status,
		Error:       &msg,
		ClearAPIKey: true,
	}); err != nil {
		slog.Error("failed to record job failure", "job_id", job.ID, "error", err)
		return
	}

	slog.Error("job failed", "job_id", job.ID, "slug", job.Slug, "error", genErr)
}
