// Package llm provides the completion-service abstraction used by the
// generation engine, backed by langchaingo providers.
package llm

import (
	"context"
	"strings"
)

// EventKind identifies one progress event emitted during a streamed
// completion.
type EventKind string

const (
	EventReasoningStarted EventKind = "reasoning_started"
	EventReasoningStopped EventKind = "reasoning_stopped"
	EventSearchQuery      EventKind = "search_query"
	EventSearchResults    EventKind = "search_results"
	EventTokenDelta       EventKind = "token_delta"
	EventCompleted        EventKind = "completed"
	EventFailed           EventKind = "failed"
)

// Event is one progress report from a streamed completion. Model and
// Attempt are filled in by the generation engine.
type Event struct {
	Kind    EventKind `json:"kind"`
	Model   string    `json:"model,omitempty"`
	Attempt int       `json:"attempt,omitempty"`
	Text    string    `json:"text,omitempty"`
	Count   int       `json:"count,omitempty"`
}

// Request describes one completion call.
type Request struct {
	Model           string
	Instructions    string
	Prompt          string
	MaxOutputTokens int
	JSONMode        bool

	// WebSearch attaches the provider's native web-search tool so the
	// completion can ground itself in live sources. Providers without
	// one ignore it.
	WebSearch bool

	// Stream, when non-nil, switches the call to streaming mode and
	// receives progress events as they happen.
	Stream func(Event)
}

// Usage holds token counts reported by the provider.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// ItemKind tags entries of the heterogeneous response output array.
type ItemKind string

const (
	ItemMessage      ItemKind = "message"
	ItemSearchResult ItemKind = "search_result"
)

// OutputItem is one entry of a response's output array. Which fields are
// meaningful depends on Kind: message items carry Text, search_result
// items carry Title and URL.
type OutputItem struct {
	Kind  ItemKind
	Text  string
	Title string
	URL   string
}

// SearchResult is one web-search hit attached to a response.
type SearchResult struct {
	Title string
	URL   string
}

// Response is the provider-neutral completion result. Its shape is not
// guaranteed uniform across providers; use FullText and CitationURLs
// instead of probing fields directly.
type Response struct {
	// Text is the convenience full-text field. May be empty even on
	// success; FullText falls back to the output array.
	Text          string
	Output        []OutputItem
	Citations     []string
	SearchResults []SearchResult
	Usage         Usage
}

// Completer is the narrow interface the engine drives. Implementations
// must honor context cancellation.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// FullText returns the response text, preferring the convenience field and
// falling back to concatenating message-typed output items.
func (r *Response) FullText() string {
	if strings.TrimSpace(r.Text) != "" {
		return r.Text
	}

	var b strings.Builder
	for _, item := range r.Output {
		if item.Kind != ItemMessage {
			continue
		}
		b.WriteString(item.Text)
	}
	return b.String()
}

// CitationURLs returns the response's citations: the structured citations
// array when present, otherwise unique URLs collected from search results
// (both the dedicated field and search_result output items), otherwise
// empty.
func (r *Response) CitationURLs() []string {
	if len(r.Citations) > 0 {
		return r.Citations
	}

	seen := make(map[string]bool)
	urls := []string{}
	add := func(u string) {
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		urls = append(urls, u)
	}

	for _, sr := range r.SearchResults {
		add(sr.URL)
	}
	for _, item := range r.Output {
		if item.Kind == ItemSearchResult {
			add(item.URL)
		}
	}
	return urls
}

// StripFences removes an incidental Markdown code-fence wrapper from s.
// The prompt forbids fences but models emit them anyway.
func StripFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}

	t = strings.TrimPrefix(t, "```")
	// Drop a language tag like "json" on the opening fence line.
	if idx := strings.IndexByte(t, '\n'); idx >= 0 {
		first := strings.TrimSpace(t[:idx])
		if len(first) <= 10 && !strings.ContainsAny(first, "{}[]") {
			t = t[idx+1:]
		}
	}
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}
