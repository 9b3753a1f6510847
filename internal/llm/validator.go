package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// ToolCheck is the verdict of the pre-flight tool-name validation.
type ToolCheck struct {
	Valid          bool   `json:"valid"`
	NormalizedName string `json:"normalizedName"`
	Type           string `json:"type"`
	Reason         string `json:"reason"`
}

// knownToolTypes is the closed set of recognized tool categories; anything
// else is coerced to "unknown".
var knownToolTypes = map[string]bool{
	"software": true,
	"website":  true,
	"service":  true,
	"hardware": true,
	"game":     true,
}

const validatorInstructions = `You verify whether a name refers to a real software product, tool, website, or service.
Respond with a single JSON object and nothing else:
{"valid": boolean, "normalizedName": string, "type": "software"|"website"|"service"|"hardware"|"game"|"unknown", "reason": string}
Rules:
- valid is true only for names that denote a real, identifiable product
- normalizedName is the canonical product name (fix casing, drop noise words)
- reject gibberish, random characters, and things that are not products
- no Markdown, no code fences`

// NameValidator runs a cheap completion call to reject gibberish tool
// names before an expensive generation run.
//
// It fails open: on any error (missing credential, timeout, parse failure,
// network fault) the name is accepted with a reason explaining why
// validation was skipped. Blocking a legitimate user over an auxiliary
// service hiccup costs more than the occasional garbage generation.
type NameValidator struct {
	completer Completer
	model     string
	timeout   time.Duration
}

// NewNameValidator creates a validator using the given lightweight
// completer. completer may be nil, in which case every check passes.
func NewNameValidator(completer Completer, model string, timeout time.Duration) *NameValidator {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &NameValidator{completer: completer, model: model, timeout: timeout}
}

// Check validates a tool name. The returned ToolCheck always has
// NormalizedName set (falling back to the input name).
func (v *NameValidator) Check(ctx context.Context, name string) ToolCheck {
	if v.completer == nil {
		return skipped(name, "validator not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	resp, err := v.completer.Complete(ctx, Request{
		Model:           v.model,
		Instructions:    validatorInstructions,
		Prompt:          fmt.Sprintf("Name to verify: %q", name),
		MaxOutputTokens: 256,
		JSONMode:        true,
	})
	if err != nil {
		slog.Warn("tool-name validation failed open", "name", name, "error", err)
		return skipped(name, fmt.Sprintf("validation skipped: %v", err))
	}

	text := StripFences(resp.FullText())

	var check ToolCheck
	if err := json.Unmarshal([]byte(text), &check); err != nil {
		slog.Warn("tool-name validation returned unparseable JSON, failing open", "name", name, "error", err)
		return skipped(name, "validation skipped: unparseable validator response")
	}

	if check.NormalizedName == "" {
		check.NormalizedName = name
	}
	if !knownToolTypes[check.Type] {
		check.Type = "unknown"
	}
	return check
}

func skipped(name, reason string) ToolCheck {
	return ToolCheck{Valid: true, NormalizedName: name, Type: "unknown", Reason: reason}
}
