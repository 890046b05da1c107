package llmextract

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pgoslatara/misstea/internal/budget"
	"github.com/pgoslatara/misstea/internal/llm"
)

type fakeRenderer struct {
	html string
	err  error
}

func (f fakeRenderer) Render(ctx context.Context, rawURL string) (string, error) {
	return f.html, f.err
}

type fakeClient struct {
	reply string
	err   error
	block bool
	got   openai.ChatCompletionRequest
}

func (f *fakeClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.got = req
	if f.block {
		<-ctx.Done()
		return openai.ChatCompletionResponse{}, ctx.Err()
	}
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Role: "assistant", Content: f.reply}}}}, nil
}

const page = `<html><body><h1>Title</h1><p>Rendered paragraph.</p></body></html>`

func newExtractor(c llm.Client) *Extractor {
	return &Extractor{Renderer: fakeRenderer{html: page}, Client: c, Model: "m"}
}

func TestExtract_ReturnsParsedObject(t *testing.T) {
	fc := &fakeClient{reply: `{"main_content":"Rendered paragraph.","title":"Title"}`}
	obj, err := newExtractor(fc).Extract(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if obj["main_content"] != "Rendered paragraph." || obj["title"] != "Title" {
		t.Fatalf("unexpected object: %v", obj)
	}
	if fc.got.ResponseFormat == nil || fc.got.ResponseFormat.Type != openai.ChatCompletionResponseFormatTypeJSONObject {
		t.Fatalf("expected json_object response format")
	}
	if fc.got.Messages[0].Content != Instruction {
		t.Fatalf("expected fixed instruction as system message")
	}
	user := fc.got.Messages[1].Content
	if !strings.HasPrefix(user, "URL: https://example.com/") || !strings.Contains(user, "Rendered paragraph.") {
		t.Fatalf("unexpected user message: %q", user)
	}
}

func TestExtract_InvalidJSONIsDecodeError(t *testing.T) {
	fc := &fakeClient{reply: "not json at all"}
	_, err := newExtractor(fc).Extract(context.Background(), "https://example.com/")
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if de.Raw != "not json at all" {
		t.Fatalf("expected raw output to be kept, got %q", de.Raw)
	}
}

func TestExtract_RenderFailureIsNotDecodeError(t *testing.T) {
	boom := errors.New("chrome crashed")
	e := &Extractor{Renderer: fakeRenderer{err: boom}, Client: &fakeClient{}, Model: "m"}
	_, err := e.Extract(context.Background(), "https://example.com/")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped render error, got %v", err)
	}
	var de *DecodeError
	if errors.As(err, &de) {
		t.Fatalf("render failure must not be a DecodeError")
	}
}

func TestExtract_ModelFailure(t *testing.T) {
	boom := errors.New("quota exceeded")
	_, err := newExtractor(&fakeClient{err: boom}).Extract(context.Background(), "https://example.com/")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped model error, got %v", err)
	}
}

func TestExtract_EmptyRenderedPage(t *testing.T) {
	e := &Extractor{Renderer: fakeRenderer{html: "<html><body></body></html>"}, Client: &fakeClient{}, Model: "m"}
	if _, err := e.Extract(context.Background(), "https://example.com/"); !errors.Is(err, ErrEmptyPage) {
		t.Fatalf("expected ErrEmptyPage, got %v", err)
	}
}

func TestExtract_NotConfigured(t *testing.T) {
	e := &Extractor{Renderer: fakeRenderer{html: page}, Client: &fakeClient{}}
	if _, err := e.Extract(context.Background(), "https://example.com/"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestExtract_TruncatesInput(t *testing.T) {
	fc := &fakeClient{reply: `{"main_content":"x"}`}
	e := newExtractor(fc)
	e.MaxInputChars = 5
	if _, err := e.Extract(context.Background(), "https://example.com/"); err != nil {
		t.Fatalf("extract: %v", err)
	}
	user := fc.got.Messages[1].Content
	body := strings.TrimPrefix(user, "URL: https://example.com/\n\n")
	if len([]rune(body)) != 5 {
		t.Fatalf("expected 5 runes of markdown, got %q", body)
	}
}

func TestExtract_FitsSmallContextWindow(t *testing.T) {
	fc := &fakeClient{reply: `{"main_content":"x"}`}
	long := "<html><body><p>" + strings.Repeat("word ", 10000) + "</p></body></html>"
	e := &Extractor{Renderer: fakeRenderer{html: long}, Client: fc, Model: "mystery-model"}
	if _, err := e.Extract(context.Background(), "https://example.com/"); err != nil {
		t.Fatalf("extract: %v", err)
	}
	want := budget.InputChars("mystery-model", Instruction+"URL: https://example.com/\n\n", DefaultMaxInputChars)
	if want >= DefaultMaxInputChars || want <= 0 {
		t.Fatalf("unexpected budget %d", want)
	}
	body := strings.TrimPrefix(fc.got.Messages[1].Content, "URL: https://example.com/\n\n")
	if n := len([]rune(body)); n != want {
		t.Fatalf("expected %d runes of markdown, got %d", want, n)
	}
}

func TestExtract_ModelTimeout(t *testing.T) {
	e := newExtractor(&fakeClient{block: true})
	e.Timeout = 20 * time.Millisecond
	_, err := e.Extract(context.Background(), "https://example.com/")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestExtract_AgainstStubServer(t *testing.T) {
	srv := httptest.NewServer(llm.NewStubHandler("stub", llm.StubFenced))
	defer srv.Close()

	e := &Extractor{
		Renderer: fakeRenderer{html: page},
		Client:   llm.NewOpenAIProvider(srv.URL+"/v1", "k", srv.Client()),
		Model:    "stub",
	}
	obj, err := e.Extract(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if obj["main_content"] != "Rendered paragraph." {
		t.Fatalf("unexpected object: %v", obj)
	}
}
