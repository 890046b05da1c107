package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"github.com/pgoslatara/misstea/internal/article"
	"github.com/pgoslatara/misstea/internal/browser"
	"github.com/pgoslatara/misstea/internal/fetch"
	"github.com/pgoslatara/misstea/internal/llm"
	"github.com/pgoslatara/misstea/internal/llmextract"
	"github.com/pgoslatara/misstea/internal/llmtools"
	"github.com/pgoslatara/misstea/internal/pipeline"
	"github.com/pgoslatara/misstea/internal/telemetry"
)

// App wires configuration into the extraction pipeline and the tool registry.
type App struct {
	cfg      Config
	ai       llm.Client
	pipeline *pipeline.Pipeline
	tools    *llmtools.Registry
	registry *prometheus.Registry
	tel      *telemetry.Telemetry
}

// Option customises New, mainly for tests and embedding.
type Option func(*options)

type options struct {
	renderer llmextract.Renderer
	client   llm.Client
	exporter sdktrace.SpanExporter
}

// WithRenderer replaces the headless browser used by the llm step.
func WithRenderer(r llmextract.Renderer) Option {
	return func(o *options) { o.renderer = r }
}

// WithLLMClient replaces the OpenAI-compatible client used by the llm step.
func WithLLMClient(c llm.Client) Option {
	return func(o *options) { o.client = c }
}

// WithSpanExporter records pipeline spans on exp instead of an OTLP collector.
func WithSpanExporter(exp sdktrace.SpanExporter) Option {
	return func(o *options) { o.exporter = exp }
}

// New builds the application. It does not perform network calls.
func New(cfg Config, opts ...Option) (*App, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	pageClient := newHTTPClient(cfg.InsecureSkipVerify, 0)
	htmlFetch := &fetch.Client{
		HTTPClient:        pageClient,
		UserAgent:         cfg.UserAgent,
		MaxAttempts:       1,
		PerRequestTimeout: cfg.FetchTimeout,
		MaxBodyBytes:      cfg.MaxBodyBytes,
	}
	rawFetch := &fetch.Client{
		HTTPClient:        pageClient,
		UserAgent:         cfg.UserAgent,
		MaxAttempts:       1,
		PerRequestTimeout: cfg.FetchTimeout,
		MaxBodyBytes:      cfg.MaxBodyBytes,
		AnyTextContent:    true,
	}

	strategies := []pipeline.Strategy{
		&pipeline.FastStrategy{Fetcher: htmlFetch},
		&pipeline.ArticleStrategy{Extractor: &article.Extractor{Fetcher: htmlFetch, Language: cfg.LanguageHint}},
		&pipeline.RawStrategy{Fetcher: rawFetch},
	}

	a := &App{cfg: cfg, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	tel, err := telemetry.Setup(context.Background(), telemetry.Options{
		Endpoint:       cfg.OTLPEndpoint,
		Insecure:       cfg.OTLPInsecure,
		Exporter:       o.exporter,
		ServiceVersion: BuildVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	a.tel = tel

	var pipeOpts []pipeline.Option
	if tel.Enabled() {
		pipeOpts = append(pipeOpts, pipeline.WithTracer(tel.Tracer("github.com/pgoslatara/misstea/internal/pipeline")))
	}
	if !cfg.DisableLLM {
		a.ai = o.client
		if a.ai == nil {
			if strings.TrimSpace(cfg.LLMAPIKey) == "" {
				log.Warn().Msg("no LLM API key configured; the llm step will likely fail")
			}
			a.ai = llm.NewOpenAIProvider(cfg.LLMBaseURL, cfg.LLMAPIKey, newHTTPClient(false, 0))
		}
		renderer := o.renderer
		if renderer == nil {
			renderer = &browser.Renderer{
				Timeout:   cfg.BrowserTimeout,
				UserAgent: cfg.UserAgent,
				ExecPath:  cfg.ChromePath,
			}
		}
		strategies = append(strategies, &pipeline.LLMStrategy{Extractor: &llmextract.Extractor{
			Renderer:      renderer,
			Client:        a.ai,
			Model:         cfg.LLMModel,
			MaxInputChars: cfg.MaxInputChars,
			Timeout:       cfg.LLMTimeout,
		}})
		if cfg.BrowserTimeout > 0 && cfg.LLMTimeout > 0 {
			pipeOpts = append(pipeOpts, pipeline.WithTimeout(pipeline.NameLLM, cfg.BrowserTimeout+cfg.LLMTimeout))
		}
	}
	pipeOpts = append(pipeOpts, pipeline.WithMetrics(pipeline.NewMetrics(a.registry)))
	a.pipeline = pipeline.New(strategies, pipeOpts...)

	tools, err := llmtools.NewWebScraperRegistry(a.pipeline)
	if err != nil {
		return nil, err
	}
	a.tools = tools

	log.Debug().Strs("strategies", a.pipeline.Strategies()).Str("model", cfg.LLMModel).Msg("pipeline ready")
	return a, nil
}

// Close flushes pending spans.
func (a *App) Close(ctx context.Context) error {
	return a.tel.Shutdown(ctx)
}

// Config returns the effective configuration.
func (a *App) Config() Config { return a.cfg }

// Pipeline returns the extraction pipeline.
func (a *App) Pipeline() *pipeline.Pipeline { return a.pipeline }

// Tools returns the tool registry exposing the pipeline.
func (a *App) Tools() *llmtools.Registry { return a.tools }

// Gatherer exposes the app's metrics.
func (a *App) Gatherer() prometheus.Gatherer { return a.registry }

// Extract runs the pipeline for one URL.
func (a *App) Extract(ctx context.Context, rawURL string) pipeline.Result {
	return a.pipeline.Extract(ctx, rawURL)
}

// ExtractAll runs the pipeline for every URL with at most concurrency calls in
// flight. Results are returned in input order.
func (a *App) ExtractAll(ctx context.Context, urls []string, concurrency int) []pipeline.Result {
	if concurrency < 1 {
		concurrency = 1
	}
	results := make([]pipeline.Result, len(urls))
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, u := range urls {
		g.Go(func() error {
			results[i] = a.pipeline.Extract(ctx, u)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// CheckLLM lists models on the configured endpoint. It only logs; an
// unreachable model endpoint makes the llm step fail at request time instead.
func (a *App) CheckLLM(ctx context.Context) {
	lister, ok := a.ai.(llm.ModelLister)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	models, err := lister.ListModels(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("LLM model list failed; continuing")
		return
	}
	if len(models.Models) == 0 {
		log.Warn().Msg("LLM returned zero models")
		return
	}
	log.Info().Int("count", len(models.Models)).Msg("LLM models available")
}
