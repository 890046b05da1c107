package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pgoslatara/misstea/internal/app"
	"github.com/pgoslatara/misstea/internal/pipeline"
)

var configEnv = []string{
	"LLM_BASE_URL", "LLM_MODEL", "LLM_API_KEY", "GOOGLE_API_KEY",
	"FETCH_TIMEOUT", "BROWSER_TIMEOUT", "LLM_TIMEOUT", "LANGUAGE",
	"USER_AGENT", "CHROME_PATH", "LISTEN_ADDR", "VERBOSE", "DISABLE_LLM",
	"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_INSECURE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnv {
		t.Setenv(k, "")
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConfig_FlagsWinOverEnvAndFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "misstea.yaml")
	body := "llm:\n  model: file-model\n  base: http://file.invalid/v1\nfetch:\n  timeout: 3s\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("LLM_MODEL", "env-model")

	out, err := execute(t, "config", "--config", path, "--llm.model", "flag-model")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	var cfg app.Config
	if err := json.Unmarshal([]byte(out), &cfg); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if cfg.LLMModel != "flag-model" {
		t.Fatalf("flag should win, got %q", cfg.LLMModel)
	}
	if cfg.LLMBaseURL != "http://file.invalid/v1" {
		t.Fatalf("file value lost: %q", cfg.LLMBaseURL)
	}
	if cfg.FetchTimeout != 3*time.Second {
		t.Fatalf("fetch timeout: %v", cfg.FetchTimeout)
	}
	if cfg.BrowserTimeout != app.DefaultBrowserTimeout {
		t.Fatalf("default lost: %v", cfg.BrowserTimeout)
	}
}

func TestConfig_EnvWinsWithoutFlag(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_MODEL", "env-model")
	t.Setenv("LLM_API_KEY", "secret")
	out, err := execute(t, "config")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	var cfg app.Config
	if err := json.Unmarshal([]byte(out), &cfg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.LLMModel != "env-model" {
		t.Fatalf("model: %q", cfg.LLMModel)
	}
	if cfg.LLMAPIKey != "***" || strings.Contains(out, "secret") {
		t.Fatalf("api key not redacted: %s", out)
	}
}

func TestConfig_EnvFileLoaded(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("LANGUAGE=de\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	out, err := execute(t, "config", "--env-file", path)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	var cfg app.Config
	if err := json.Unmarshal([]byte(out), &cfg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.LanguageHint != "de" {
		t.Fatalf("language: %q", cfg.LanguageHint)
	}
}

func TestConfig_InvalidRejected(t *testing.T) {
	clearEnv(t)
	if _, err := execute(t, "config", "--fetch-timeout=-1s"); err == nil {
		t.Fatalf("expected validation error for negative timeout")
	}
	if _, err := execute(t, "config", "--fetch-timeout=0"); err == nil {
		t.Fatalf("expected validation error for an unbounded fetch")
	}
}

func TestConfig_TracingFlags(t *testing.T) {
	clearEnv(t)
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "env-collector:4317")
	out, err := execute(t, "config", "--otlp-endpoint", "flag-collector:4317", "--otlp-insecure")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	var cfg app.Config
	if err := json.Unmarshal([]byte(out), &cfg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.OTLPEndpoint != "flag-collector:4317" || !cfg.OTLPInsecure {
		t.Fatalf("tracing flags not applied: %q %v", cfg.OTLPEndpoint, cfg.OTLPInsecure)
	}
}

func TestExtract_PrintsResultsInOrder(t *testing.T) {
	clearEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/one":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<html><body><main><p>First page text.</p></main></body></html>`)
		case "/two":
			w.Header().Set("Content-Type", "text/plain")
			fmt.Fprint(w, "second page")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	out, err := execute(t, "extract", "--disable-llm", "-c", "2",
		srv.URL+"/one", srv.URL+"/two", srv.URL+"/missing")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("want 3 lines, got %d: %q", len(lines), out)
	}
	var res [3]pipeline.Result
	for i, line := range lines {
		if err := json.Unmarshal([]byte(line), &res[i]); err != nil {
			t.Fatalf("line %d: %v", i, err)
		}
		if res[i].Status != pipeline.StatusSuccess {
			t.Fatalf("line %d status %q", i, res[i].Status)
		}
	}
	if res[0].Content.Text != "First page text." || res[0].Strategy != pipeline.NameFast {
		t.Fatalf("first: %+v", res[0])
	}
	if res[1].Content.Text != "second page" || res[1].Strategy != pipeline.NameRaw {
		t.Fatalf("second: %+v", res[1])
	}
	if res[2].Outcome != pipeline.OutcomeNotFound || !res[2].Content.Empty() {
		t.Fatalf("third: %+v", res[2])
	}
}

func TestExtract_RequiresURL(t *testing.T) {
	clearEnv(t)
	if _, err := execute(t, "extract", "--disable-llm"); err == nil {
		t.Fatalf("expected error without arguments")
	}
}

func TestTools_ListsWebTool(t *testing.T) {
	clearEnv(t)
	out, err := execute(t, "tools", "--disable-llm")
	if err != nil {
		t.Fatalf("tools: %v", err)
	}
	var tools []openai.Tool
	if err := json.Unmarshal([]byte(out), &tools); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(tools) != 1 || tools[0].Type != openai.ToolTypeFunction || tools[0].Function.Name != "fetch_web_page_contents" {
		t.Fatalf("expected one OpenAI function tool, got %s", out)
	}
}

func TestToolsCall_ValidatesArguments(t *testing.T) {
	clearEnv(t)
	if _, err := execute(t, "tools", "call", "fetch_web_page_contents", `{}`, "--disable-llm"); err == nil {
		t.Fatalf("expected schema error for missing url")
	}
	if _, err := execute(t, "tools", "call", "no_such_tool", "--disable-llm"); err == nil {
		t.Fatalf("expected unknown tool error")
	}
}

func TestToolsCall_ReturnsResult(t *testing.T) {
	clearEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><article><p>Tool output text.</p></article></body></html>`)
	}))
	defer srv.Close()

	args := fmt.Sprintf(`{"url":%q}`, srv.URL)
	out, err := execute(t, "tools", "call", "fetch_web_page_contents", args, "--disable-llm")
	if err != nil {
		t.Fatalf("tools call: %v", err)
	}
	var res pipeline.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if res.Content.Text != "Tool output text." {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestToolsCall_FromResponse(t *testing.T) {
	clearEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "body for "+r.URL.Path)
	}))
	defer srv.Close()

	args, _ := json.Marshal(map[string]string{"url": srv.URL + "/x"})
	resp := openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleAssistant,
			ToolCalls: []openai.ToolCall{
				{ID: "call_1", Type: openai.ToolTypeFunction, Function: openai.FunctionCall{Name: "fetch_web_page_contents", Arguments: string(args)}},
				{ID: "call_2", Type: openai.ToolTypeFunction, Function: openai.FunctionCall{Name: "fetch_web_page_contents", Arguments: `{"url":""}`}},
			},
		},
	}}}
	raw, _ := json.Marshal(resp)
	path := filepath.Join(t.TempDir(), "response.json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write response: %v", err)
	}

	out, err := execute(t, "tools", "call", "--from-response", path, "--disable-llm")
	if err != nil {
		t.Fatalf("tools call: %v", err)
	}
	var msgs []openai.ChatCompletionMessage
	if err := json.Unmarshal([]byte(out), &msgs); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(msgs) != 2 || msgs[0].Role != openai.ChatMessageRoleTool || msgs[0].ToolCallID != "call_1" {
		t.Fatalf("unexpected messages %+v", msgs)
	}
	if !strings.Contains(msgs[0].Content, "body for /x") {
		t.Fatalf("first call content %q", msgs[0].Content)
	}
	if !strings.Contains(msgs[1].Content, `"error"`) {
		t.Fatalf("invalid call should be reported inline, got %q", msgs[1].Content)
	}

	if _, err := execute(t, "tools", "call", "--from-response", path, "fetch_web_page_contents", "--disable-llm"); err == nil {
		t.Fatalf("expected error when mixing --from-response with a tool name")
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "misstea "+app.BuildVersion) {
		t.Fatalf("unexpected output %q", out)
	}
}
