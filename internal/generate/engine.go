package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/toolbrief/internal/config"
	"github.com/raphaelgruber/toolbrief/internal/llm"
	"github.com/raphaelgruber/toolbrief/internal/metrics"
	"github.com/raphaelgruber/toolbrief/internal/models"
)

// Engine drives the completion service to produce a validated Manual,
// iterating a prioritized model list with bounded retries and a hard
// wall-clock timeout per attempt.
type Engine struct {
	cfg       config.Config
	pricing   config.Pricing
	factory   llm.Factory
	collector *metrics.Collector
}

// Result is the outcome of a successful generation run.
type Result struct {
	Manual    *models.Manual
	Usage     llm.Usage
	ModelUsed string
	Attempts  int
	Elapsed   time.Duration
}

// NewEngine creates a generation engine. factory may be nil to use the
// default langchaingo-backed completer; collector may be nil to disable
// metrics.
func NewEngine(cfg config.Config, pricing config.Pricing, factory llm.Factory, collector *metrics.Collector) *Engine {
	if factory == nil {
		factory = llm.NewCompleter
	}
	return &Engine{cfg: cfg, pricing: pricing, factory: factory, collector: collector}
}

// Generate produces a manual for toolName. apiKey, when non-empty,
// overrides the configured credential for every provider. progress may be
// nil; when set it receives streaming events for each attempt.
func (e *Engine) Generate(ctx context.Context, toolName, slug, apiKey string, progress func(llm.Event)) (*Result, error) {
	if len(e.cfg.Models) == 0 {
		return nil, fmt.Errorf("no completion models configured")
	}

	attempts := e.cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	start := time.Now()
	var attemptErrs []string
	totalAttempts := 0

	for _, ref := range e.cfg.Models {
		key := apiKey
		if key == "" {
			key = e.cfg.APIKeyFor(ref.Provider)
		}

		completer, err := e.factory(ref, key, e.cfg.OllamaHost)
		if err != nil {
			slog.Warn("skipping completion model", "model", ref.String(), "error", err)
			attemptErrs = append(attemptErrs, fmt.Sprintf("%s: %v", ref.String(), err))
			continue
		}

		for attempt := 1; attempt <= attempts; attempt++ {
			totalAttempts++

			manual, usage, err := e.attempt(ctx, completer, ref, toolName, slug, attempt, progress)
			if err == nil {
				elapsed := time.Since(start)
				manual.GenerationTimeMs = elapsed.Milliseconds()
				if e.collector != nil {
					e.collector.RecordLLMUsage(metrics.OpGeneration, elapsed, int64(usage.InputTokens), int64(usage.OutputTokens))
				}
				return &Result{
					Manual:    manual,
					Usage:     usage,
					ModelUsed: ref.Model,
					Attempts:  totalAttempts,
					Elapsed:   elapsed,
				}, nil
			}

			slog.Warn("generation attempt failed",
				"tool", toolName, "model", ref.String(), "attempt", attempt, "error", err)
			emit(progress, llm.Event{Kind: llm.EventFailed, Model: ref.Model, Attempt: attempt, Text: err.Error()})
			attemptErrs = append(attemptErrs, fmt.Sprintf("%s (attempt %d): %v", ref.String(), attempt, err))

			if ctx.Err() != nil {
				break
			}
		}

		if ctx.Err() != nil {
			break
		}
	}

	if e.collector != nil {
		e.collector.RecordFailure(metrics.OpGeneration, time.Since(start))
	}

	modelNames := make([]string, len(e.cfg.Models))
	for i, ref := range e.cfg.Models {
		modelNames[i] = ref.String()
	}
	return nil, fmt.Errorf("generation failed for %q after %d attempts across models [%s]: %s",
		toolName, totalAttempts, strings.Join(modelNames, ", "), strings.Join(attemptErrs, "; "))
}

// attempt runs one completion call and the full repair/validate pipeline.
func (e *Engine) attempt(
	ctx context.Context,
	completer llm.Completer,
	ref config.ModelRef,
	toolName, slug string,
	attempt int,
	progress func(llm.Event),
) (*models.Manual, llm.Usage, error) {
	timeout := e.cfg.GenerationTimeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	emit(progress, llm.Event{Kind: llm.EventReasoningStarted, Model: ref.Model, Attempt: attempt})

	var stream func(llm.Event)
	if progress != nil {
		stream = func(ev llm.Event) {
			ev.Model = ref.Model
			ev.Attempt = attempt
			progress(ev)
		}
	}

	started := time.Now()
	resp, err := completer.Complete(ctx, llm.Request{
		Model:           ref.Model,
		Instructions:    systemInstructions,
		Prompt:          buildPrompt(toolName),
		MaxOutputTokens: e.cfg.MaxOutputTokens,
		JSONMode:        true,
		WebSearch:       true,
		Stream:          stream,
	})
	if err != nil {
		return nil, llm.Usage{}, fmt.Errorf("completion: %w", err)
	}

	emit(progress, llm.Event{Kind: llm.EventReasoningStopped, Model: ref.Model, Attempt: attempt})

	text := llm.StripFences(resp.FullText())
	if strings.TrimSpace(text) == "" {
		return nil, resp.Usage, fmt.Errorf("completion returned empty text")
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, resp.Usage, newParseError(text, err)
	}

	// Repair known model drift, then hold the result to the strict schema.
	Normalize(doc)

	content, err := decodeContent(doc)
	if err != nil {
		return nil, resp.Usage, err
	}
	if content.ToolName == "" {
		content.ToolName = toolName
	}
	if err := content.Validate(); err != nil {
		return nil, resp.Usage, &SchemaError{Err: err}
	}

	citations := resp.CitationURLs()
	ClampSourceIndices(content, len(citations))

	manual := &models.Manual{
		SchemaVersion:    models.SchemaVersion,
		Slug:             slug,
		GeneratedContent: *content,
		CoverageScore:    CoverageScore(content),
		GeneratedAt:      time.Now().UTC(),
		Citations:        citations,
		GenerationTimeMs: time.Since(started).Milliseconds(),
		Cost:             ComputeCost(e.pricing.For(ref.Model), resp.Usage, len(citations), e.cfg.SearchCostDivisor),
	}
	if err := manual.Validate(); err != nil {
		return nil, resp.Usage, &SchemaError{Err: fmt.Errorf("persisted schema: %w", err)}
	}

	emit(progress, llm.Event{Kind: llm.EventSearchResults, Model: ref.Model, Attempt: attempt, Count: len(citations)})
	return manual, resp.Usage, nil
}

// decodeContent converts a normalized document into the typed content
// struct. Shape mismatches that survive normalization count as schema
// errors, not parse errors.
func decodeContent(doc map[string]any) (*models.GeneratedContent, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, &SchemaError{Err: err}
	}
	var content models.GeneratedContent
	if err := json.Unmarshal(data, &content); err != nil {
		return nil, &SchemaError{Err: err}
	}
	return &content, nil
}

func emit(progress func(llm.Event), ev llm.Event) {
	if progress != nil {
		progress(ev)
	}
}
