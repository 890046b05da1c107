// Package article extracts the main article of a page with the Readability
// algorithm and reports the language of the extracted text.
package article

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/unicode/norm"

	"github.com/pgoslatara/misstea/internal/fetch"
)

// DefaultLanguage is the language hint used when none is configured.
const DefaultLanguage = "en"

// ErrNoArticle is returned when the parser finds no readable text.
var ErrNoArticle = errors.New("no article text found")

// Fetcher downloads a page. *fetch.Client satisfies it.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) (*fetch.Response, error)
}

// Article is the readable part of a page.
type Article struct {
	Title string
	Text  string
	// Language is the detected ISO 639-1 code of Text, or the page's declared
	// language when detection is inconclusive.
	Language string
}

// Extractor downloads a page and runs Readability over it.
type Extractor struct {
	Fetcher Fetcher
	// Language is the expected language of the page. A mismatch with the
	// detected language is logged and otherwise ignored.
	Language string
}

// Extract downloads rawURL and returns its article.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (Article, error) {
	if e.Fetcher == nil {
		return Article{}, errors.New("article: no fetcher configured")
	}
	resp, err := e.Fetcher.Get(ctx, rawURL)
	if err != nil {
		return Article{}, fmt.Errorf("download: %w", err)
	}
	pageURL := resp.FinalURL
	if pageURL == "" {
		pageURL = rawURL
	}
	return e.FromHTML(resp.Body, pageURL)
}

// FromHTML runs Readability over an already downloaded page.
func (e *Extractor) FromHTML(body []byte, pageURL string) (Article, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return Article{}, fmt.Errorf("parse url: %w", err)
	}
	parsed, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil {
		return Article{}, fmt.Errorf("readability: %w", err)
	}
	text := norm.NFC.String(tidy(parsed.TextContent))
	if text == "" {
		return Article{}, ErrNoArticle
	}

	lang := DetectLanguage(text)
	if lang == "" {
		lang = strings.ToLower(primarySubtag(parsed.Language))
	}
	hint := e.Language
	if hint == "" {
		hint = DefaultLanguage
	}
	if lang != "" && !strings.EqualFold(lang, primarySubtag(hint)) {
		log.Debug().Str("url", pageURL).Str("hint", hint).Str("detected", lang).Msg("article language differs from hint")
	}
	return Article{Title: strings.TrimSpace(parsed.Title), Text: text, Language: lang}, nil
}

// primarySubtag turns "en-US" into "en".
func primarySubtag(tag string) string {
	tag = strings.TrimSpace(tag)
	if i := strings.IndexAny(tag, "-_"); i >= 0 {
		tag = tag[:i]
	}
	return tag
}

// tidy trims every line and collapses runs of blank lines to one.
func tidy(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" && (len(out) == 0 || out[len(out)-1] == "") {
			continue
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
