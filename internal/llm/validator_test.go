package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeCompleter returns a canned response or error.
type fakeCompleter struct {
	resp *Response
	err  error

	lastReq Request
}

func (f *fakeCompleter) Complete(_ context.Context, req Request) (*Response, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func TestCheckValidName(t *testing.T) {
	fake := &fakeCompleter{resp: &Response{
		Text: `{"valid": true, "normalizedName": "Notion", "type": "software", "reason": "well-known note-taking app"}`,
	}}
	v := NewNameValidator(fake, "gpt-4o-mini", time.Second)

	check := v.Check(context.Background(), "notion")
	if !check.Valid {
		t.Fatal("expected valid")
	}
	if check.NormalizedName != "Notion" {
		t.Errorf("NormalizedName = %q, want Notion", check.NormalizedName)
	}
	if check.Type != "software" {
		t.Errorf("Type = %q, want software", check.Type)
	}
	if !fake.lastReq.JSONMode {
		t.Error("expected JSON mode request")
	}
}

func TestCheckRejectsGibberish(t *testing.T) {
	fake := &fakeCompleter{resp: &Response{
		Text: "```json\n{\"valid\": false, \"normalizedName\": \"asdfgh\", \"type\": \"unknown\", \"reason\": \"not a product\"}\n```",
	}}
	v := NewNameValidator(fake, "gpt-4o-mini", time.Second)

	check := v.Check(context.Background(), "asdfgh")
	if check.Valid {
		t.Fatal("expected invalid")
	}
}

func TestCheckCoercesUnknownType(t *testing.T) {
	fake := &fakeCompleter{resp: &Response{
		Text: `{"valid": true, "normalizedName": "Thing", "type": "gadget", "reason": "r"}`,
	}}
	v := NewNameValidator(fake, "gpt-4o-mini", time.Second)

	if check := v.Check(context.Background(), "Thing"); check.Type != "unknown" {
		t.Errorf("Type = %q, want unknown", check.Type)
	}
}

func TestCheckFailsOpen(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeCompleter
	}{
		{"completion error", &fakeCompleter{err: errors.New("connection refused")}},
		{"unparseable response", &fakeCompleter{resp: &Response{Text: "sure, that looks real to me"}}},
		{"empty response", &fakeCompleter{resp: &Response{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewNameValidator(tt.fake, "gpt-4o-mini", time.Second)
			check := v.Check(context.Background(), "Notion")
			if !check.Valid {
				t.Fatal("validator must fail open")
			}
			if check.NormalizedName != "Notion" {
				t.Errorf("NormalizedName = %q, want original name", check.NormalizedName)
			}
			if check.Reason == "" {
				t.Error("expected a reason explaining the skip")
			}
		})
	}
}

func TestCheckNilCompleter(t *testing.T) {
	v := NewNameValidator(nil, "", 0)
	if check := v.Check(context.Background(), "Figma"); !check.Valid {
		t.Fatal("nil completer must pass everything")
	}
}
