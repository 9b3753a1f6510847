package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/raphaelgruber/toolbrief/internal/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangchainCompleter implements Completer on top of a langchaingo model.
type LangchainCompleter struct {
	llm       llms.Model
	modelName string
}

// Compile-time check that LangchainCompleter implements Completer.
var _ Completer = (*LangchainCompleter)(nil)

// webSearchTools is the tool list attached when a request asks for web
// search. OpenAI and Anthropic both accept a bare typed tool; Ollama
// drops unknown tool types.
var webSearchTools = []llms.Tool{{Type: "web_search"}}

// Factory builds a Completer for a provider/model pair with the given
// credential. The engine uses it to honor per-job API keys.
type Factory func(ref config.ModelRef, apiKey, ollamaHost string) (Completer, error)

// NewCompleter creates a langchaingo-backed completer for the configured
// provider. It is the default Factory.
func NewCompleter(ref config.ModelRef, apiKey, ollamaHost string) (Completer, error) {
	var model llms.Model
	var err error

	switch ref.Provider {
	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(ref.Model),
			ollama.WithServerURL(ollamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(apiKey),
			openai.WithModel(ref.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if apiKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(apiKey),
			anthropic.WithModel(ref.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported completion provider: %s", ref.Provider)
	}

	return &LangchainCompleter{llm: model, modelName: ref.Model}, nil
}

// Complete runs one completion call. When req.Stream is set the call runs
// in streaming mode and token deltas are reported as events.
func (c *LangchainCompleter) Complete(ctx context.Context, req Request) (*Response, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, req.Instructions),
		llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt),
	}

	opts := []llms.CallOption{}
	if req.MaxOutputTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxOutputTokens))
	}
	if req.JSONMode {
		opts = append(opts, llms.WithJSONMode())
	}
	if req.WebSearch {
		opts = append(opts, llms.WithTools(webSearchTools))
	}
	if req.Stream != nil {
		opts = append(opts, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			req.Stream(Event{Kind: EventTokenDelta, Text: string(chunk)})
			return nil
		}))
	}

	result, err := c.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("complete: %w", err)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("complete: no response choices")
	}

	resp := &Response{
		Text:  result.Choices[0].Content,
		Usage: usageFromInfo(result.Choices[0].GenerationInfo),
	}
	for _, choice := range result.Choices {
		resp.Output = append(resp.Output, OutputItem{Kind: ItemMessage, Text: choice.Content})

		for _, query := range searchQueries(choice.ToolCalls) {
			if req.Stream != nil {
				req.Stream(Event{Kind: EventSearchQuery, Text: query})
			}
		}
		for _, sr := range searchResultsFromInfo(choice.GenerationInfo) {
			resp.SearchResults = append(resp.SearchResults, sr)
			resp.Output = append(resp.Output, OutputItem{Kind: ItemSearchResult, Title: sr.Title, URL: sr.URL})
		}
	}
	if req.Stream != nil && len(resp.SearchResults) > 0 {
		req.Stream(Event{Kind: EventSearchResults, Count: len(resp.SearchResults)})
	}

	if req.Stream != nil {
		req.Stream(Event{Kind: EventCompleted, Count: resp.Usage.OutputTokens})
	}
	return resp, nil
}

// searchQueries extracts the query strings of web-search tool calls.
func searchQueries(calls []llms.ToolCall) []string {
	var queries []string
	for _, call := range calls {
		if call.FunctionCall == nil || call.FunctionCall.Name != "web_search" {
			continue
		}
		var args struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal([]byte(call.FunctionCall.Arguments), &args); err != nil || args.Query == "" {
			continue
		}
		queries = append(queries, args.Query)
	}
	return queries
}

// searchResultsFromInfo pulls provider-reported web-search hits out of a
// GenerationInfo map. Providers disagree on the key and element shape, so
// everything here is best-effort: anything unrecognized yields nothing.
func searchResultsFromInfo(info map[string]any) []SearchResult {
	var results []SearchResult
	for _, key := range []string{"SearchResults", "search_results", "citations"} {
		entries, ok := info[key].([]any)
		if !ok {
			continue
		}
		for _, entry := range entries {
			switch v := entry.(type) {
			case string:
				if v != "" {
					results = append(results, SearchResult{URL: v})
				}
			case map[string]any:
				sr := SearchResult{
					Title: asInfoString(v, "title", "Title"),
					URL:   asInfoString(v, "url", "URL"),
				}
				if sr.URL != "" {
					results = append(results, sr)
				}
			}
		}
	}
	return results
}

func asInfoString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok {
			return s
		}
	}
	return ""
}

// Model returns the completion model name.
func (c *LangchainCompleter) Model() string {
	return c.modelName
}

// usageFromInfo extracts token counts from a provider GenerationInfo map.
// Key names differ per provider (OpenAI: PromptTokens/CompletionTokens,
// Anthropic: InputTokens/OutputTokens).
func usageFromInfo(info map[string]any) Usage {
	return Usage{
		InputTokens:  intFromInfo(info, "PromptTokens", "InputTokens", "prompt_tokens", "input_tokens"),
		OutputTokens: intFromInfo(info, "CompletionTokens", "OutputTokens", "completion_tokens", "output_tokens"),
	}
}

func intFromInfo(info map[string]any, keys ...string) int {
	for _, key := range keys {
		switch v := info[key].(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}
