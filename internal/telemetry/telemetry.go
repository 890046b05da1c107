// Package telemetry sets up OpenTelemetry tracing for the extraction pipeline.
package telemetry

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// DefaultServiceName is reported as service.name.
const DefaultServiceName = "misstea"

// Options configures tracing. Tracing is off unless Endpoint or Exporter is set.
type Options struct {
	// Endpoint is an OTLP/gRPC collector, host:port or a URL.
	Endpoint string
	Insecure bool
	// Exporter, when set, receives spans synchronously instead of OTLP.
	Exporter       sdktrace.SpanExporter
	ServiceName    string
	ServiceVersion string
}

// Telemetry owns the tracer provider. The zero value hands out the global
// tracer and shuts down as a no-op.
type Telemetry struct {
	tp   *sdktrace.TracerProvider
	name string
}

// Setup builds a tracer provider from opts.
func Setup(ctx context.Context, opts Options) (*Telemetry, error) {
	name := opts.ServiceName
	if name == "" {
		name = DefaultServiceName
	}
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" && opts.Exporter == nil {
		return &Telemetry{name: name}, nil
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", name),
		attribute.String("service.version", opts.ServiceVersion),
	)
	var spanOpt sdktrace.TracerProviderOption
	if opts.Exporter != nil {
		spanOpt = sdktrace.WithSyncer(opts.Exporter)
	} else {
		exp, err := otlptracegrpc.New(ctx, exporterOptions(endpoint, opts.Insecure)...)
		if err != nil {
			return nil, fmt.Errorf("otlp trace exporter: %w", err)
		}
		spanOpt = sdktrace.WithBatcher(exp)
	}
	tp := sdktrace.NewTracerProvider(spanOpt, sdktrace.WithResource(res))
	return &Telemetry{tp: tp, name: name}, nil
}

func exporterOptions(endpoint string, insecure bool) []otlptracegrpc.Option {
	var opts []otlptracegrpc.Option
	if strings.Contains(endpoint, "://") {
		opts = append(opts, otlptracegrpc.WithEndpointURL(endpoint))
	} else {
		opts = append(opts, otlptracegrpc.WithEndpoint(endpoint))
	}
	if insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return opts
}

// Enabled reports whether spans are recorded and exported.
func (t *Telemetry) Enabled() bool { return t != nil && t.tp != nil }

// Tracer returns a tracer from the owned provider, or the global one when
// tracing is off.
func (t *Telemetry) Tracer(instrumentation string) trace.Tracer {
	if !t.Enabled() {
		return otel.Tracer(instrumentation)
	}
	return t.tp.Tracer(instrumentation)
}

// Shutdown flushes pending spans and stops the exporter.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if !t.Enabled() {
		return nil
	}
	return t.tp.Shutdown(ctx)
}
