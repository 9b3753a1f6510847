package llm

import (
	"reflect"
	"testing"

	"github.com/tmc/langchaingo/llms"
)

func TestSearchQueries(t *testing.T) {
	calls := []llms.ToolCall{
		{FunctionCall: &llms.FunctionCall{Name: "web_search", Arguments: `{"query": "notion shortcuts"}`}},
		{FunctionCall: &llms.FunctionCall{Name: "other_tool", Arguments: `{"query": "ignored"}`}},
		{FunctionCall: &llms.FunctionCall{Name: "web_search", Arguments: `not json`}},
		{FunctionCall: &llms.FunctionCall{Name: "web_search", Arguments: `{"query": ""}`}},
		{FunctionCall: nil},
		{FunctionCall: &llms.FunctionCall{Name: "web_search", Arguments: `{"query": "notion pricing"}`}},
	}

	got := searchQueries(calls)
	want := []string{"notion shortcuts", "notion pricing"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("searchQueries() = %v, want %v", got, want)
	}
}

func TestSearchResultsFromInfo(t *testing.T) {
	tests := []struct {
		name string
		info map[string]any
		want []SearchResult
	}{
		{
			"structured entries",
			map[string]any{"search_results": []any{
				map[string]any{"title": "Notion docs", "url": "https://notion.so/help"},
				map[string]any{"title": "no url"},
			}},
			[]SearchResult{{Title: "Notion docs", URL: "https://notion.so/help"}},
		},
		{
			"bare citation strings",
			map[string]any{"citations": []any{"https://a.example", "", "https://b.example"}},
			[]SearchResult{{URL: "https://a.example"}, {URL: "https://b.example"}},
		},
		{"no recognized key", map[string]any{"PromptTokens": 12}, nil},
		{"nil info", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := searchResultsFromInfo(tt.info); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("searchResultsFromInfo() = %v, want %v", got, tt.want)
			}
		})
	}
}
