package llm

import (
	"encoding/json"
	"net/http"
	"strings"
)

// StubMode selects how the stub answers extraction prompts.
type StubMode string

const (
	// StubEcho answers with a JSON object whose main_content is the first
	// non-empty paragraph of the user message.
	StubEcho StubMode = "echo"
	// StubInvalid answers with text that is not JSON.
	StubInvalid StubMode = "invalid"
	// StubEmpty answers with an object that has an empty main_content.
	StubEmpty StubMode = "empty"
	// StubFenced wraps the echo answer in a ```json code fence.
	StubFenced StubMode = "fenced"
)

type stubRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// NewStubHandler returns a fake OpenAI-compatible API serving /v1/models and
// /v1/chat/completions. It is used for local runs without a model provider and
// by integration tests.
func NewStubHandler(model string, mode StubMode) http.Handler {
	if strings.TrimSpace(model) == "" {
		model = "test-model"
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   []map[string]any{{"id": model, "object": "model"}},
		})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req stubRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		user := ""
		for _, m := range req.Messages {
			if m.Role == "user" {
				user = m.Content
			}
		}
		var content string
		switch mode {
		case StubInvalid:
			content = "Sorry, I cannot produce JSON for this page."
		case StubEmpty:
			content = `{"main_content":""}`
		default:
			b, _ := json.Marshal(map[string]string{"main_content": firstParagraph(user)})
			content = string(b)
			if mode == StubFenced {
				content = "```json\n" + content + "\n```"
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-stub",
			"object": "chat.completion",
			"model":  model,
			"choices": []map[string]any{
				{"index": 0, "finish_reason": "stop", "message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	})
	return mux
}

// firstParagraph returns the first non-heading paragraph of a markdown page.
func firstParagraph(s string) string {
	for _, block := range strings.Split(s, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" || strings.HasPrefix(block, "#") || strings.HasPrefix(block, "URL:") {
			continue
		}
		return block
	}
	return strings.TrimSpace(s)
}
