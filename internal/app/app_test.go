package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/pgoslatara/misstea/internal/llm"
	"github.com/pgoslatara/misstea/internal/llmtools"
	"github.com/pgoslatara/misstea/internal/pipeline"
)

type staticRenderer struct{ html string }

func (r staticRenderer) Render(context.Context, string) (string, error) { return r.html, nil }

const renderedPage = `<html><body><h1>Dashboard</h1><p>Rendered by scripts.</p></body></html>`

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.LLMModel = "stub"
	return cfg
}

func newTestApp(t *testing.T, mode llm.StubMode, cfg Config) *App {
	t.Helper()
	stub := httptest.NewServer(llm.NewStubHandler("stub", mode))
	t.Cleanup(stub.Close)
	a, err := New(cfg,
		WithRenderer(staticRenderer{html: renderedPage}),
		WithLLMClient(llm.NewOpenAIProvider(stub.URL+"/v1", "k", stub.Client())),
	)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a
}

func failingSite(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestApp_FallsThroughToLLM(t *testing.T) {
	a := newTestApp(t, llm.StubEcho, testConfig())
	res := a.Extract(context.Background(), failingSite(t).URL)
	if res.Outcome != pipeline.OutcomeFound || res.Strategy != pipeline.NameLLM {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Content.Structured["main_content"] != "Rendered by scripts." {
		t.Fatalf("unexpected content: %+v", res.Content)
	}
}

func TestApp_InvalidModelOutputIsExtractionError(t *testing.T) {
	a := newTestApp(t, llm.StubInvalid, testConfig())
	res := a.Extract(context.Background(), failingSite(t).URL)
	if res.Status != pipeline.StatusSuccess || res.Outcome != pipeline.OutcomeExtractionError || !res.Content.Empty() {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestApp_DisableLLM(t *testing.T) {
	cfg := testConfig()
	cfg.DisableLLM = true
	cfg.LLMModel = ""
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if got := strings.Join(a.Pipeline().Strategies(), ","); got != "fast,article,raw" {
		t.Fatalf("unexpected strategies %s", got)
	}
	res := a.Extract(context.Background(), failingSite(t).URL)
	if res.Outcome != pipeline.OutcomeNotFound {
		t.Fatalf("expected not_found, got %+v", res)
	}
}

func TestApp_ExtractAllKeepsOrder(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><body><main><p>Page at %s with enough words to count.</p></main></body></html>`, r.URL.Path)
	}))
	defer site.Close()

	a := newTestApp(t, llm.StubEcho, testConfig())
	urls := make([]string, 10)
	for i := range urls {
		urls[i] = fmt.Sprintf("%s/p%d", site.URL, i)
	}
	results := a.ExtractAll(context.Background(), urls, 3)
	for i, res := range results {
		if res.URL != urls[i] || !strings.Contains(res.Content.Text, fmt.Sprintf("/p%d ", i)) {
			t.Fatalf("result %d mismatched: %+v", i, res)
		}
	}
}

func TestApp_ToolAndMetrics(t *testing.T) {
	a := newTestApp(t, llm.StubEcho, testConfig())
	out, err := a.Tools().Invoke(context.Background(), llmtools.FetchWebPageContents, json.RawMessage(`{"url":"`+failingSite(t).URL+`"}`))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !strings.Contains(string(out), `"status":"success"`) {
		t.Fatalf("unexpected tool output %s", out)
	}

	families, err := a.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "misstea_pipeline_results_total" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected pipeline metrics to be registered")
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Concurrency = 0
	if _, err := New(cfg); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestNew_RejectsUnboundedFetchFromEnv(t *testing.T) {
	t.Setenv("FETCH_TIMEOUT", "0")
	cfg := testConfig()
	ApplyEnvOverrides(&cfg)
	if cfg.FetchTimeout != 0 {
		t.Fatalf("expected FETCH_TIMEOUT=0 to reach the config, got %v", cfg.FetchTimeout)
	}
	if _, err := New(cfg); err == nil {
		t.Fatalf("expected a zero fetch timeout to be rejected")
	}
}

func TestApp_ExportsPipelineSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	cfg := testConfig()
	cfg.DisableLLM = true
	a, err := New(cfg, WithSpanExporter(exp))
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	a.Extract(context.Background(), failingSite(t).URL)
	attempts := 0
	for _, span := range exp.GetSpans() {
		if span.Name == "pipeline.strategy" {
			attempts++
		}
	}
	if attempts != 3 {
		t.Fatalf("expected 3 strategy spans, got %d", attempts)
	}
	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
}
