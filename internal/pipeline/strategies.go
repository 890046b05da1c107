package pipeline

import (
	"context"
	"errors"

	"github.com/pgoslatara/misstea/internal/article"
	"github.com/pgoslatara/misstea/internal/extract"
	"github.com/pgoslatara/misstea/internal/fetch"
)

// Strategy names in their default order.
const (
	NameFast    = "fast"
	NameArticle = "article"
	NameRaw     = "raw"
	NameLLM     = "llm"
)

// Fetcher downloads a page. *fetch.Client satisfies it.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) (*fetch.Response, error)
}

// ArticleExtractor is satisfied by *article.Extractor.
type ArticleExtractor interface {
	Extract(ctx context.Context, rawURL string) (article.Article, error)
}

// StructuredExtractor is satisfied by *llmextract.Extractor.
type StructuredExtractor interface {
	Extract(ctx context.Context, rawURL string) (map[string]any, error)
}

var errNotConfigured = errors.New("strategy not configured")

// Func adapts a function to Strategy.
func Func(name string, fn func(ctx context.Context, rawURL string) (Content, error)) Strategy {
	return funcStrategy{name: name, fn: fn}
}

type funcStrategy struct {
	name string
	fn   func(ctx context.Context, rawURL string) (Content, error)
}

func (f funcStrategy) Name() string { return f.name }

func (f funcStrategy) Attempt(ctx context.Context, rawURL string) (Content, error) {
	return f.fn(ctx, rawURL)
}

// FastStrategy downloads HTML and keeps the densest readable block.
type FastStrategy struct {
	Fetcher   Fetcher
	Extractor extract.Extractor
}

func (s *FastStrategy) Name() string { return NameFast }

func (s *FastStrategy) Attempt(ctx context.Context, rawURL string) (Content, error) {
	if s.Fetcher == nil {
		return Content{}, errNotConfigured
	}
	resp, err := s.Fetcher.Get(ctx, rawURL)
	if err != nil {
		return Content{}, err
	}
	ex := s.Extractor
	if ex == nil {
		ex = extract.DensityExtractor{}
	}
	doc := ex.Extract(resp.Body)
	c := TextContent(doc.Text)
	c.Title = doc.Title
	if !c.Empty() {
		c.Language = article.DetectLanguage(doc.Text)
	}
	return c, nil
}

// ArticleStrategy re-downloads the page and runs Readability over it.
type ArticleStrategy struct {
	Extractor ArticleExtractor
}

func (s *ArticleStrategy) Name() string { return NameArticle }

func (s *ArticleStrategy) Attempt(ctx context.Context, rawURL string) (Content, error) {
	if s.Extractor == nil {
		return Content{}, errNotConfigured
	}
	a, err := s.Extractor.Extract(ctx, rawURL)
	if err != nil {
		return Content{}, err
	}
	c := TextContent(a.Text)
	c.Title = a.Title
	c.Language = a.Language
	return c, nil
}

// RawStrategy returns the downloaded body without processing.
type RawStrategy struct {
	Fetcher Fetcher
}

func (s *RawStrategy) Name() string { return NameRaw }

func (s *RawStrategy) Attempt(ctx context.Context, rawURL string) (Content, error) {
	if s.Fetcher == nil {
		return Content{}, errNotConfigured
	}
	resp, err := s.Fetcher.Get(ctx, rawURL)
	if err != nil {
		return Content{}, err
	}
	return TextContent(string(resp.Body)), nil
}

// LLMStrategy renders the page and asks a model for its main content.
type LLMStrategy struct {
	Extractor StructuredExtractor
}

func (s *LLMStrategy) Name() string { return NameLLM }

func (s *LLMStrategy) Attempt(ctx context.Context, rawURL string) (Content, error) {
	if s.Extractor == nil {
		return Content{}, errNotConfigured
	}
	obj, err := s.Extractor.Extract(ctx, rawURL)
	if err != nil {
		return Content{}, err
	}
	return StructuredContent(obj), nil
}
