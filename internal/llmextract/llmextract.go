// Package llmextract renders a page in a browser and asks a language model to
// return its main content as a JSON object.
package llmextract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/pgoslatara/misstea/internal/budget"
	"github.com/pgoslatara/misstea/internal/llm"
)

// DefaultMaxInputChars caps the Markdown handed to the model.
const DefaultMaxInputChars = 60000

// ContentKey is the key the model is instructed to fill.
const ContentKey = "main_content"

// Instruction is the fixed system message for the extraction call.
const Instruction = `Extract the comprehensive and detailed content of the entire webpage.
Identify and include all major headings, paragraphs, lists, URL references, image URLs and key information.
Structure the output as a single JSON object with a key named "main_content" whose value is a string containing all the extracted textual content.
Do not include navigation, footers, sidebars, or advertisements.
Ensure the output is valid JSON.`

var (
	// ErrNotConfigured is returned when no client or model is set.
	ErrNotConfigured = errors.New("llm extraction not configured")
	// ErrEmptyPage is returned when the rendered page converts to no text.
	ErrEmptyPage = errors.New("rendered page is empty")
	// ErrNoChoices is returned when the model response carries no message.
	ErrNoChoices = errors.New("model returned no choices")
	// ErrNoMainContent is returned for valid JSON without a usable main_content.
	ErrNoMainContent = errors.New("model output has no main_content")
)

// DecodeError reports model output that is not valid JSON.
type DecodeError struct {
	Raw string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode model output: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Renderer returns the fully rendered HTML of a page. *browser.Renderer satisfies it.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (string, error)
}

// Extractor runs render, convert and model call in sequence.
type Extractor struct {
	Renderer Renderer
	Client   llm.Client
	Model    string
	// MaxInputChars caps the Markdown sent to the model. Zero means DefaultMaxInputChars.
	MaxInputChars int
	// Timeout bounds the model call. Zero means the caller's context only.
	Timeout time.Duration
	// SystemPrompt, when non-empty, replaces Instruction.
	SystemPrompt string
}

// Extract returns the model's JSON object for rawURL. Render and model
// failures are plain errors; output that does not parse is a *DecodeError.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (map[string]any, error) {
	if e.Renderer == nil || e.Client == nil || strings.TrimSpace(e.Model) == "" {
		return nil, ErrNotConfigured
	}
	html, err := e.Renderer.Render(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	markdown, err := htmltomarkdown.ConvertString(html, converter.WithDomain(rawURL))
	if err != nil {
		return nil, fmt.Errorf("convert to markdown: %w", err)
	}
	markdown = truncate(strings.TrimSpace(markdown), e.maxInput(rawURL))
	if markdown == "" {
		return nil, ErrEmptyPage
	}

	raw, err := e.complete(ctx, rawURL, markdown)
	if err != nil {
		return nil, err
	}
	obj, err := ParseOutput(raw)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("url", rawURL).Int("input_chars", len(markdown)).Msg("llm extraction parsed")
	return obj, nil
}

func (e *Extractor) complete(ctx context.Context, rawURL, markdown string) (string, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}
	sys := e.systemPrompt()
	req := openai.ChatCompletionRequest{
		Model: e.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: sys},
			{Role: openai.ChatMessageRoleUser, Content: buildUserMessage(rawURL, markdown)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0.0,
		N:              1,
	}
	resp, err := e.Client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("model: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

func buildUserMessage(rawURL, markdown string) string {
	var sb strings.Builder
	sb.WriteString("URL: ")
	sb.WriteString(rawURL)
	sb.WriteString("\n\n")
	sb.WriteString(markdown)
	return sb.String()
}

func (e *Extractor) systemPrompt() string {
	if strings.TrimSpace(e.SystemPrompt) != "" {
		return e.SystemPrompt
	}
	return Instruction
}

// maxInput is the smaller of MaxInputChars and what fits in the model's
// context next to the prompt.
func (e *Extractor) maxInput(rawURL string) int {
	limit := e.MaxInputChars
	if limit <= 0 {
		limit = DefaultMaxInputChars
	}
	return budget.InputChars(e.Model, e.systemPrompt()+buildUserMessage(rawURL, ""), limit)
}

// truncate cuts s to at most max runes.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
