package llmtools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pgoslatara/misstea/internal/pipeline"
)

// FetchWebPageContents is the stable name of the web scraper tool.
const FetchWebPageContents = "fetch_web_page_contents"

// Extractor is satisfied by *pipeline.Pipeline.
type Extractor interface {
	Extract(ctx context.Context, rawURL string) pipeline.Result
}

var fetchWebPageSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"url": {"type": "string", "minLength": 1, "description": "Absolute http(s) URL of the page to read"}
	},
	"required": ["url"],
	"additionalProperties": false
}`)

// NewWebScraperRegistry registers the tools of the web scraper sub-agent.
func NewWebScraperRegistry(ex Extractor) (*Registry, error) {
	if ex == nil {
		return nil, fmt.Errorf("NewWebScraperRegistry: extractor is nil")
	}
	r := NewRegistry()
	err := r.Register(ToolDefinition{
		StableName:   FetchWebPageContents,
		SemVer:       "v1.0.0",
		Description:  "Fetch a web page and return its main readable content",
		JSONSchema:   fetchWebPageSchema,
		Capabilities: []string{"fetch", "extract"},
		Handler: func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
			var in struct {
				URL string `json:"url"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, fmt.Errorf("invalid args: %w", err)
			}
			u := strings.TrimSpace(in.URL)
			if u == "" {
				return nil, fmt.Errorf("missing url")
			}
			return json.Marshal(ex.Extract(ctx, u))
		},
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}
