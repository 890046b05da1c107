package pipeline

import (
	"encoding/json"
	"strings"
)

// StatusSuccess is the only status ever reported to callers.
const StatusSuccess = "success"

// Outcome classifies what actually happened behind StatusSuccess.
type Outcome string

const (
	OutcomeFound           Outcome = "found"
	OutcomeNotFound        Outcome = "not_found"
	OutcomeExtractionError Outcome = "extraction_error"
)

// Content is the output of a strategy: plain text or a JSON object, plus
// page metadata when the strategy knows it.
type Content struct {
	Text       string
	Structured map[string]any
	Title      string
	// Language is the detected ISO 639-1 code of Text.
	Language string
}

// TextContent wraps s.
func TextContent(s string) Content { return Content{Text: s} }

// StructuredContent wraps m.
func StructuredContent(m map[string]any) Content { return Content{Structured: m} }

// Empty reports whether c carries nothing usable.
func (c Content) Empty() bool {
	return strings.TrimSpace(c.Text) == "" && len(c.Structured) == 0
}

func (c Content) value() any {
	switch {
	case len(c.Structured) > 0:
		return c.Structured
	case strings.TrimSpace(c.Text) != "":
		return c.Text
	}
	return nil
}

// Result is the outcome of one Extract call.
type Result struct {
	URL      string
	Status   string
	Content  Content
	Outcome  Outcome
	Strategy string
	Err      string
}

type resultJSON struct {
	Status   string  `json:"status"`
	Content  any     `json:"content"`
	Outcome  Outcome `json:"outcome"`
	Strategy string  `json:"strategy,omitempty"`
	Title    string  `json:"title,omitempty"`
	Language string  `json:"language,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// MarshalJSON renders content as a string, an object or null.
func (r Result) MarshalJSON() ([]byte, error) {
	status := r.Status
	if status == "" {
		status = StatusSuccess
	}
	return json.Marshal(resultJSON{
		Status:   status,
		Content:  r.Content.value(),
		Outcome:  r.Outcome,
		Strategy: r.Strategy,
		Title:    r.Content.Title,
		Language: r.Content.Language,
		Error:    r.Err,
	})
}

// UnmarshalJSON is the inverse of MarshalJSON. URL is not part of the encoding.
func (r *Result) UnmarshalJSON(b []byte) error {
	var raw struct {
		Status   string          `json:"status"`
		Content  json.RawMessage `json:"content"`
		Outcome  Outcome         `json:"outcome"`
		Strategy string          `json:"strategy"`
		Title    string          `json:"title"`
		Language string          `json:"language"`
		Error    string          `json:"error"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*r = Result{
		Status:   raw.Status,
		Content:  Content{Title: raw.Title, Language: raw.Language},
		Outcome:  raw.Outcome,
		Strategy: raw.Strategy,
		Err:      raw.Error,
	}
	if len(raw.Content) == 0 || string(raw.Content) == "null" {
		return nil
	}
	if raw.Content[0] == '{' {
		return json.Unmarshal(raw.Content, &r.Content.Structured)
	}
	return json.Unmarshal(raw.Content, &r.Content.Text)
}
