// Package pipeline runs extraction strategies in order until one of them
// yields content.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pgoslatara/misstea/internal/llmextract"
)

// ErrNoContent is returned by strategies that ran without error but found nothing.
var ErrNoContent = errors.New("no content")

// ErrInvalidURL is reported for requests that are not absolute http(s) URLs.
var ErrInvalidURL = errors.New("invalid URL")

// Strategy is one way of getting content for a URL. Implementations hold no
// per-call state and may be used concurrently.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, rawURL string) (Content, error)
}

// Pipeline tries its strategies in order and reports the first content found.
type Pipeline struct {
	strategies []Strategy
	timeouts   map[string]time.Duration
	metrics    *Metrics
	tracer     trace.Tracer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTimeout bounds the named strategy. Zero or negative means no bound.
func WithTimeout(name string, d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeouts[name] = d
		} else {
			delete(p.timeouts, name)
		}
	}
}

// WithMetrics records attempts and results on m.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithTracer replaces the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// New returns a pipeline over strategies, tried in the given order.
func New(strategies []Strategy, opts ...Option) *Pipeline {
	p := &Pipeline{
		strategies: append([]Strategy(nil), strategies...),
		timeouts:   map[string]time.Duration{},
		tracer:     otel.Tracer("github.com/pgoslatara/misstea/internal/pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Strategies returns the strategy names in order.
func (p *Pipeline) Strategies() []string {
	names := make([]string, len(p.strategies))
	for i, s := range p.strategies {
		names[i] = s.Name()
	}
	return names
}

// Extract returns exactly one Result for rawURL. It never panics and never
// fails; problems are reported through Outcome and Err.
func (p *Pipeline) Extract(ctx context.Context, rawURL string) Result {
	started := time.Now()
	ctx, span := p.tracer.Start(ctx, "pipeline.extract", trace.WithAttributes(attribute.String("url", rawURL)))
	defer span.End()

	res := p.run(ctx, strings.TrimSpace(rawURL))
	res.URL = rawURL

	span.SetAttributes(attribute.String("outcome", string(res.Outcome)), attribute.String("strategy", res.Strategy))
	p.metrics.observeResult(res.Outcome, res.Strategy)
	ev := log.Info()
	if res.Outcome != OutcomeFound {
		ev = log.Warn()
	}
	ev.Str("url", rawURL).Str("outcome", string(res.Outcome)).Str("strategy", res.Strategy).
		Dur("duration", time.Since(started)).Msg("extraction finished")
	return res
}

func (p *Pipeline) run(ctx context.Context, rawURL string) Result {
	if err := validateURL(rawURL); err != nil {
		return Result{Status: StatusSuccess, Outcome: OutcomeNotFound, Err: err.Error()}
	}
	var lastErr error
	for i, s := range p.strategies {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		content, err := p.attempt(ctx, s, rawURL)
		if err == nil {
			return Result{Status: StatusSuccess, Content: content, Outcome: OutcomeFound, Strategy: s.Name()}
		}
		lastErr = err
		var de *llmextract.DecodeError
		if i == len(p.strategies)-1 && errors.As(err, &de) {
			return Result{Status: StatusSuccess, Outcome: OutcomeExtractionError, Strategy: s.Name(), Err: err.Error()}
		}
	}
	res := Result{Status: StatusSuccess, Outcome: OutcomeNotFound}
	if lastErr != nil {
		res.Err = lastErr.Error()
	}
	return res
}

// attempt runs one strategy with its timeout, converting panics and empty
// content into errors.
func (p *Pipeline) attempt(ctx context.Context, s Strategy, rawURL string) (content Content, err error) {
	name := s.Name()
	if d, ok := p.timeouts[name]; ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	ctx, span := p.tracer.Start(ctx, "pipeline.strategy", trace.WithAttributes(attribute.String("strategy", name)))
	started := time.Now()
	result := "hit"

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy %s panicked: %v", name, r)
			content = Content{}
			result = "panic"
		}
		elapsed := time.Since(started)
		p.metrics.observeAttempt(name, result, elapsed)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, result)
			log.Debug().Str("url", rawURL).Str("strategy", name).Dur("duration", elapsed).Err(err).Msg("strategy failed")
		} else {
			log.Debug().Str("url", rawURL).Str("strategy", name).Dur("duration", elapsed).Msg("strategy succeeded")
		}
		span.End()
	}()

	content, err = s.Attempt(ctx, rawURL)
	switch {
	case err != nil:
		result = "error"
		content = Content{}
	case content.Empty():
		result = "empty"
		err = fmt.Errorf("%s: %w", name, ErrNoContent)
	}
	return content, err
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return nil
}
