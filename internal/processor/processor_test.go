package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/toolbrief/internal/generate"
	"github.com/raphaelgruber/toolbrief/internal/jobs"
	"github.com/raphaelgruber/toolbrief/internal/llm"
	"github.com/raphaelgruber/toolbrief/internal/models"
	"github.com/raphaelgruber/toolbrief/internal/storage"
)

type fakeGenerator struct {
	result *generate.Result
	err    error
	events []llm.Event
	calls  int

	lastToolName string
	lastAPIKey   string
}

func (g *fakeGenerator) Generate(_ context.Context, toolName, _, apiKey string, progress func(llm.Event)) (*generate.Result, error) {
	g.calls++
	g.lastToolName = toolName
	g.lastAPIKey = apiKey
	for _, ev := range g.events {
		if progress != nil {
			progress(ev)
		}
	}
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

type fakeWriter struct {
	stored *storage.StoredManual
	err    error
	calls  int
}

func (w *fakeWriter) StoreManual(_ context.Context, _ *models.Manual) (*storage.StoredManual, error) {
	w.calls++
	if w.err != nil {
		return nil, w.err
	}
	return w.stored, nil
}

func (w *fakeWriter) ShareURL(slug string) string {
	return "https://toolbrief.example/manual/" + slug
}

func successResult() *generate.Result {
	return &generate.Result{
		Manual: &models.Manual{
			SchemaVersion: models.SchemaVersion,
			Slug:          "notion",
			GeneratedContent: models.GeneratedContent{
				ToolName:  "Notion",
				Features:  make([]models.Feature, 5),
				Shortcuts: make([]models.Shortcut, 3),
				Workflows: make([]models.Workflow, 2),
				Tips:      make([]models.Tip, 3),
			},
			CoverageScore: 0.95,
			Citations:     []string{"https://a", "https://b", "https://c"},
			Cost:          models.Cost{Model: 0.08, Search: 0.03, Total: 0.11},
		},
		Usage:     llm.Usage{InputTokens: 1200, OutputTokens: 7600},
		ModelUsed: "gpt-4o",
		Attempts:  1,
		Elapsed:   90 * time.Second,
	}
}

func createJob(t *testing.T, store *jobs.MemoryStore) *models.Job {
	t.Helper()
	job, err := store.CreateJob(context.Background(), jobs.CreateParams{
		ToolName:  "Notion",
		Slug:      "notion",
		SessionID: "s1",
		APIKey:    "sk-secret",
	})
	require.NoError(t, err)
	return job
}

func TestProcessIdle(t *testing.T) {
	store := jobs.NewMemoryStore(jobs.Options{}, nil)
	gen := &fakeGenerator{}
	p := New(store, gen, &fakeWriter{}, nil, nil, 0)

	processed, err := p.Process(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
	assert.Zero(t, gen.calls)
}

func TestProcessCompletesJob(t *testing.T) {
	store := jobs.NewMemoryStore(jobs.Options{}, nil)
	job := createJob(t, store)

	gen := &fakeGenerator{result: successResult()}
	writer := &fakeWriter{stored: &storage.StoredManual{
		ManualURL: "https://storage.googleapis.com/b/manuals/notion/latest.json",
		ShareURL:  "https://toolbrief.example/manual/notion",
		Version:   "20250601T120000Z",
	}}
	p := New(store, gen, writer, nil, nil, 0)

	processed, err := p.Process(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, "Notion", gen.lastToolName)
	assert.Equal(t, "sk-secret", gen.lastAPIKey, "processor passes the attached credential")
	assert.Equal(t, 1, writer.calls)

	done, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, done.Status)
	require.NotNil(t, done.Result)
	assert.Equal(t, 3, done.Result.CitationCount)
	assert.Equal(t, 5, done.Result.FeatureCount)
	assert.Equal(t, 0.11, done.Result.Cost.Total)
	assert.Equal(t, "https://storage.googleapis.com/b/manuals/notion/latest.json", done.Result.ManualURL)
	assert.Empty(t, done.Error)
	require.NotNil(t, done.CompletedAt)
}

func TestProcessFailsJob(t *testing.T) {
	store := jobs.NewMemoryStore(jobs.Options{}, nil)
	job := createJob(t, store)

	gen := &fakeGenerator{err: errors.New(`generation failed for "Notion" after 2 attempts across models [openai:gpt-4o]: parse model output`)}
	p := New(store, gen, &fakeWriter{}, nil, nil, 0)

	processed, err := p.Process(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	failed, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, failed.Status)
	assert.Contains(t, failed.Error, "gpt-4o", "failure message names the model tried")
	assert.Nil(t, failed.Result)
	require.NotNil(t, failed.CompletedAt)
}

func TestProcessStorageFailureFallsBack(t *testing.T) {
	store := jobs.NewMemoryStore(jobs.Options{}, nil)
	job := createJob(t, store)

	gen := &fakeGenerator{result: successResult()}
	writer := &fakeWriter{err: errors.New("bucket unavailable")}
	p := New(store, gen, writer, nil, nil, 0)

	processed, err := p.Process(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	done, err := store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, done.Status, "storage failure does not fail the job")
	require.NotNil(t, done.Result)
	assert.Equal(t, "https://toolbrief.example/manual/notion", done.Result.ManualURL,
		"falls back to the constructed share URL")
}

func TestProcessFIFOAcrossCycles(t *testing.T) {
	store := jobs.NewMemoryStore(jobs.Options{}, nil)
	first := createJob(t, store)

	second, err := store.CreateJob(context.Background(), jobs.CreateParams{
		ToolName: "Figma", Slug: "figma", SessionID: "s1",
	})
	require.NoError(t, err)

	gen := &fakeGenerator{result: successResult()}
	p := New(store, gen, &fakeWriter{stored: &storage.StoredManual{}}, nil, nil, 0)

	processed, err := p.Process(context.Background())
	require.NoError(t, err)
	require.True(t, processed)
	assert.Equal(t, "Notion", gen.lastToolName)

	got, err := store.GetJob(first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, got.Status)
	got, err = store.GetJob(second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobQueued, got.Status, "one job per cycle")
}

func TestProgressEventsReachHubAndStages(t *testing.T) {
	store := jobs.NewMemoryStore(jobs.Options{}, nil)
	job := createJob(t, store)

	gen := &fakeGenerator{
		result: successResult(),
		events: []llm.Event{
			{Kind: llm.EventReasoningStarted, Model: "gpt-4o", Attempt: 1},
			{Kind: llm.EventSearchResults, Model: "gpt-4o", Attempt: 1, Count: 3},
			{Kind: llm.EventReasoningStopped, Model: "gpt-4o", Attempt: 1},
		},
	}
	hub := NewHub()
	ch, cancel := hub.Subscribe(job.ID)
	defer cancel()

	p := New(store, gen, &fakeWriter{stored: &storage.StoredManual{}}, hub, nil, 0)
	_, err := p.Process(context.Background())
	require.NoError(t, err)

	var kinds []string
	for len(ch) > 0 {
		ev := <-ch
		kinds = append(kinds, ev.Kind)
		assert.Equal(t, job.ID, ev.JobID)
	}
	assert.Equal(t, []string{"reasoning_started", "search_results", "reasoning_stopped"}, kinds)
}

func TestWakeCoalesces(t *testing.T) {
	p := New(jobs.NewMemoryStore(jobs.Options{}, nil), &fakeGenerator{}, &fakeWriter{}, nil, nil, 0)

	p.Wake()
	p.Wake()
	p.Wake()
	assert.Len(t, p.wake, 1, "pending wakes coalesce to one")
}

func TestHubSubscribeCancel(t *testing.T) {
	hub := NewHub()

	ch, cancel := hub.Subscribe("job-1")
	hub.Publish(ProgressEvent{JobID: "job-1", Kind: "reasoning_started"})
	require.Len(t, ch, 1)

	cancel()
	hub.Publish(ProgressEvent{JobID: "job-1", Kind: "completed"})
	assert.Len(t, ch, 1, "no delivery after cancel")

	// Publishing to a job with no subscribers is a no-op.
	hub.Publish(ProgressEvent{JobID: "job-2", Kind: "completed"})
}
