package generate

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/raphaelgruber/toolbrief/internal/config"
	"github.com/raphaelgruber/toolbrief/internal/llm"
)

const validManualJSON = `{
	"toolName": "Notion",
	"overview": {
		"description": "All-in-one workspace for notes and databases.",
		"primaryUseCases": ["note taking", "project tracking"],
		"targetUsers": ["teams"],
		"pricing": "freemium"
	},
	"features": [
		{"id": "databases", "name": "Databases", "description": "Structured tables.", "whatItsFor": "Organizing records.", "powerLevel": "intermediate", "sourceIndices": [0, 5]},
		{"id": "templates", "name": "Templates", "description": "Reusable page layouts.", "whatItsFor": "Consistency.", "powerLevel": "basic", "sourceIndices": [1]},
		{"id": "relations", "name": "Relations", "description": "Links between databases.", "whatItsFor": "Cross referencing.", "powerLevel": "advanced", "sourceIndices": []},
		{"id": "sharing", "name": "Sharing", "description": "Page level permissions.", "whatItsFor": "Collaboration.", "powerLevel": "basic", "sourceIndices": [2]},
		{"id": "api", "name": "API", "description": "Programmatic access.", "whatItsFor": "Automation.", "powerLevel": "advanced", "sourceIndices": []}
	],
	"shortcuts": [
		{"id": "quick-find", "keys": "Cmd+P", "description": "Open quick find.", "powerLevel": "basic", "sourceIndices": []},
		{"id": "new-page", "keys": "Cmd+N", "description": "Create a page.", "powerLevel": "basic", "sourceIndices": []},
		{"id": "toggle-sidebar", "keys": "Cmd+\\", "description": "Toggle the sidebar.", "powerLevel": "basic", "sourceIndices": []}
	],
	"workflows": [
		{"id": "weekly-review", "name": "Weekly review", "description": "Review open tasks.", "difficulty": "beginner", "estimatedTime": "15 minutes", "steps": [{"step": 1, "action": "Open the tasks database."}, {"step": 2, "action": "Filter by this week."}], "sourceIndices": []},
		{"id": "meeting-notes", "name": "Meeting notes", "description": "Capture and assign notes.", "difficulty": "beginner", "estimatedTime": "5 minutes", "steps": [{"step": 1, "action": "Create a page from the meeting template."}], "sourceIndices": []}
	],
	"tips": [
		{"id": "use-slash", "title": "Use slash commands", "content": "Type / for every block type.", "category": "productivity", "powerLevel": "basic", "sourceIndices": []},
		{"id": "pin-favorites", "title": "Pin favorites", "content": "Keep daily pages one click away.", "category": "customization", "powerLevel": "basic", "sourceIndices": []},
		{"id": "share-links", "title": "Share section links", "content": "Every block has a copyable link.", "category": "collaboration", "powerLevel": "intermediate", "sourceIndices": []}
	],
	"commonMistakes": [
		{"id": "giant-pages", "title": "Putting everything on one page", "whyItHappens": "No structure up front.", "howToAvoid": "Split into sub-pages early.", "severity": "medium", "sourceIndices": []},
		{"id": "ignoring-databases", "title": "Ignoring databases", "whyItHappens": "Tables look complicated.", "howToAvoid": "Start with a simple list view.", "severity": "low", "sourceIndices": []}
	],
	"recentUpdates": []
}`

// scriptedCompleter returns canned responses in order, then repeats the
// last one. It records every request it receives.
type scriptedCompleter struct {
	responses []*llm.Response
	errs      []error
	calls     int
	requests  []llm.Request
}

func (c *scriptedCompleter) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	idx := c.calls
	if idx >= len(c.responses) {
		idx = len(c.responses) - 1
	}
	c.calls++
	c.requests = append(c.requests, req)
	if c.errs != nil && c.errs[idx] != nil {
		return nil, c.errs[idx]
	}
	return c.responses[idx], nil
}

func testConfig(models ...config.ModelRef) config.Config {
	return config.Config{
		Models:            models,
		MaxAttempts:       2,
		GenerationTimeout: 10 * time.Second,
		MaxOutputTokens:   4096,
		SearchCostDivisor: 3,
	}
}

func testPricing() config.Pricing {
	return config.Pricing{
		"test-model": {InputPerMTok: 1, OutputPerMTok: 2, SearchPerCall: 0.01},
	}
}

func TestGenerateSuccess(t *testing.T) {
	completer := &scriptedCompleter{
		responses: []*llm.Response{{
			Text:      validManualJSON,
			Citations: []string{"https://a.example", "https://b.example", "https://c.example"},
			Usage:     llm.Usage{InputTokens: 1000, OutputTokens: 5000},
		}},
	}
	factory := func(config.ModelRef, string, string) (llm.Completer, error) {
		return completer, nil
	}

	cfg := testConfig(config.ModelRef{Provider: config.ProviderOpenAI, Model: "test-model"})
	engine := NewEngine(cfg, testPricing(), factory, nil)

	var events []llm.Event
	result, err := engine.Generate(context.Background(), "Notion", "notion", "", func(ev llm.Event) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if result.ModelUsed != "test-model" {
		t.Errorf("ModelUsed = %q", result.ModelUsed)
	}
	if result.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", result.Attempts)
	}

	manual := result.Manual
	if manual.Slug != "notion" {
		t.Errorf("Slug = %q", manual.Slug)
	}
	if len(manual.Citations) != 3 {
		t.Fatalf("Citations = %v", manual.Citations)
	}
	// Index 5 is out of range for 3 citations and must be dropped.
	if got := manual.Features[0].SourceIndices; !reflect.DeepEqual(got, []int{0}) {
		t.Errorf("Features[0].SourceIndices = %v, want [0]", got)
	}
	if manual.CoverageScore != 1 {
		t.Errorf("CoverageScore = %v, want 1", manual.CoverageScore)
	}
	if manual.Cost.Total <= 0 {
		t.Errorf("Cost.Total = %v, want positive", manual.Cost.Total)
	}
	if manual.GeneratedAt.IsZero() {
		t.Error("GeneratedAt not set")
	}

	var kinds []llm.EventKind
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	for _, want := range []llm.EventKind{llm.EventReasoningStarted, llm.EventReasoningStopped, llm.EventSearchResults} {
		found := false
		for _, k := range kinds {
			if k == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing progress event %q in %v", want, kinds)
		}
	}

	req := completer.requests[0]
	if !req.JSONMode {
		t.Error("request not in JSON mode")
	}
	if !req.WebSearch {
		t.Error("request does not ask for web search")
	}
	if !strings.Contains(req.Prompt, "Notion") {
		t.Error("prompt does not mention the tool")
	}
}

func TestGenerateStripsFences(t *testing.T) {
	completer := &scriptedCompleter{
		responses: []*llm.Response{{
			Text: "```json\n" + validManualJSON + "\n```",
		}},
	}
	factory := func(config.ModelRef, string, string) (llm.Completer, error) {
		return completer, nil
	}

	cfg := testConfig(config.ModelRef{Provider: config.ProviderOpenAI, Model: "test-model"})
	engine := NewEngine(cfg, testPricing(), factory, nil)

	result, err := engine.Generate(context.Background(), "Notion", "notion", "", nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.Manual.ToolName != "Notion" {
		t.Errorf("ToolName = %q", result.Manual.ToolName)
	}
}

func TestGenerateParseErrorNamesModel(t *testing.T) {
	completer := &scriptedCompleter{
		responses: []*llm.Response{{Text: "I could not find that tool, sorry."}},
	}
	factory := func(config.ModelRef, string, string) (llm.Completer, error) {
		return completer, nil
	}

	cfg := testConfig(config.ModelRef{Provider: config.ProviderAnthropic, Model: "broken-model"})
	engine := NewEngine(cfg, testPricing(), factory, nil)

	_, err := engine.Generate(context.Background(), "Notion", "notion", "", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "broken-model") {
		t.Errorf("error does not name the model: %v", err)
	}
	if completer.calls != 2 {
		t.Errorf("calls = %d, want one per attempt", completer.calls)
	}

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		// The aggregate error flattens attempt errors to strings, so the
		// raw text preview still has to survive in the message.
		if !strings.Contains(err.Error(), "could not find") {
			t.Errorf("error lost the output preview: %v", err)
		}
	}
}

func TestGenerateFallsBackToNextModel(t *testing.T) {
	bad := &scriptedCompleter{errs: []error{errors.New("rate limited")}, responses: []*llm.Response{nil}}
	good := &scriptedCompleter{responses: []*llm.Response{{Text: validManualJSON}}}

	factory := func(ref config.ModelRef, _, _ string) (llm.Completer, error) {
		if ref.Model == "primary" {
			return bad, nil
		}
		return good, nil
	}

	cfg := testConfig(
		config.ModelRef{Provider: config.ProviderOpenAI, Model: "primary"},
		config.ModelRef{Provider: config.ProviderAnthropic, Model: "fallback"},
	)
	engine := NewEngine(cfg, testPricing(), factory, nil)

	result, err := engine.Generate(context.Background(), "Notion", "notion", "", nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.ModelUsed != "fallback" {
		t.Errorf("ModelUsed = %q, want fallback", result.ModelUsed)
	}
	if bad.calls != cfg.MaxAttempts {
		t.Errorf("primary tried %d times, want %d", bad.calls, cfg.MaxAttempts)
	}
	if result.Attempts != cfg.MaxAttempts+1 {
		t.Errorf("Attempts = %d, want %d", result.Attempts, cfg.MaxAttempts+1)
	}
}

func TestGenerateFactoryErrorSkipsModel(t *testing.T) {
	good := &scriptedCompleter{responses: []*llm.Response{{Text: validManualJSON}}}

	factory := func(ref config.ModelRef, _, _ string) (llm.Completer, error) {
		if ref.Model == "missing-key" {
			return nil, errors.New("missing OPENAI api key")
		}
		return good, nil
	}

	cfg := testConfig(
		config.ModelRef{Provider: config.ProviderOpenAI, Model: "missing-key"},
		config.ModelRef{Provider: config.ProviderOllama, Model: "fallback"},
	)
	engine := NewEngine(cfg, testPricing(), factory, nil)

	result, err := engine.Generate(context.Background(), "Notion", "notion", "", nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.ModelUsed != "fallback" {
		t.Errorf("ModelUsed = %q", result.ModelUsed)
	}
}

func TestGenerateNoModels(t *testing.T) {
	engine := NewEngine(config.Config{}, testPricing(), func(config.ModelRef, string, string) (llm.Completer, error) {
		t.Fatal("factory should not be called")
		return nil, nil
	}, nil)

	if _, err := engine.Generate(context.Background(), "Notion", "notion", "", nil); err == nil {
		t.Fatal("expected error with no configured models")
	}
}

func TestGenerateContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	completer := &scriptedCompleter{
		responses: []*llm.Response{{Text: "not json"}},
	}
	calls := 0
	factory := func(config.ModelRef, string, string) (llm.Completer, error) {
		calls++
		cancel()
		return completer, nil
	}

	cfg := testConfig(
		config.ModelRef{Provider: config.ProviderOpenAI, Model: "a"},
		config.ModelRef{Provider: config.ProviderOpenAI, Model: "b"},
	)
	engine := NewEngine(cfg, testPricing(), factory, nil)

	_, err := engine.Generate(ctx, "Notion", "notion", "", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("tried %d models after cancellation, want 1", calls)
	}
	if completer.calls != 1 {
		t.Errorf("attempts after cancellation = %d, want 1", completer.calls)
	}
}
