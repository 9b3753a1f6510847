// Package generate drives the completion service to produce schema-valid
// tool manuals, repairing known model-output drift before validation.
package generate

import "fmt"

// previewLen bounds the offending-text preview carried by parse errors.
const previewLen = 120

// ParseError indicates the model output was not parseable JSON. It carries
// a short preview of the offending text.
type ParseError struct {
	Preview string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse model output: %v (output starts with: %q)", e.Err, e.Preview)
}

func (e *ParseError) Unwrap() error { return e.Err }

func newParseError(text string, err error) *ParseError {
	preview := text
	if len(preview) > previewLen {
		preview = preview[:previewLen]
	}
	return &ParseError{Preview: preview, Err: err}
}

// SchemaError indicates parsed output failed validation against the manual
// schema. Distinct from ParseError so callers can tell malformed JSON from
// schema drift the repair pass could not absorb.
type SchemaError struct {
	Err error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("model output failed schema validation: %v", e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }
