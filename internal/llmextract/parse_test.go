package llmextract

import (
	"errors"
	"testing"
)

func TestParseOutput_Object(t *testing.T) {
	obj, err := ParseOutput(`{"main_content":"hello"}`)
	if err != nil || obj["main_content"] != "hello" {
		t.Fatalf("got %v, %v", obj, err)
	}
}

func TestParseOutput_StripsFences(t *testing.T) {
	for _, raw := range []string{
		"```json\n{\"main_content\":\"a\"}\n```",
		"```\n{\"main_content\":\"a\"}\n```",
		"  ```json\n{\"main_content\":\"a\"}```  ",
	} {
		obj, err := ParseOutput(raw)
		if err != nil || obj["main_content"] != "a" {
			t.Fatalf("%q: got %v, %v", raw, obj, err)
		}
	}
}

func TestParseOutput_MergesArray(t *testing.T) {
	raw := `[{"main_content":"first","index":0},{"error":true,"content":"x"},{"main_content":"second","index":1}]`
	obj, err := ParseOutput(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if obj["main_content"] != "first\n\nsecond" {
		t.Fatalf("unexpected merge: %q", obj["main_content"])
	}
	if obj["index"] != float64(0) {
		t.Fatalf("expected first value to win for other keys, got %v", obj["index"])
	}
	if _, ok := obj["content"]; ok {
		t.Fatalf("error elements must be skipped")
	}
}

func TestParseOutput_NoMainContent(t *testing.T) {
	for _, raw := range []string{`{"main_content":""}`, `{"other":"x"}`, `[]`, `"just a string"`, `{"main_content":42}`} {
		if _, err := ParseOutput(raw); !errors.Is(err, ErrNoMainContent) {
			t.Fatalf("%q: expected ErrNoMainContent, got %v", raw, err)
		}
	}
}

func TestParseOutput_InvalidJSON(t *testing.T) {
	_, err := ParseOutput(`{"main_content": "unterminated`)
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if de.Unwrap() == nil {
		t.Fatalf("expected underlying json error")
	}
}
