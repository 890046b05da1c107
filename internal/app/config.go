package app

import (
	"time"

	"github.com/pgoslatara/misstea/internal/article"
	"github.com/pgoslatara/misstea/internal/fetch"
	"github.com/pgoslatara/misstea/internal/llm"
	"github.com/pgoslatara/misstea/internal/llmextract"
)

// Config holds runtime configuration for the application.
type Config struct {
	// LLM
	LLMBaseURL string
	LLMModel   string
	LLMAPIKey  string
	// DisableLLM removes the model-assisted step from the pipeline.
	DisableLLM    bool
	MaxInputChars int

	// Fetching and rendering
	UserAgent      string
	FetchTimeout   time.Duration
	BrowserTimeout time.Duration
	LLMTimeout     time.Duration
	MaxBodyBytes   int64
	ChromePath     string
	// InsecureSkipVerify disables TLS certificate checks for page downloads.
	InsecureSkipVerify bool

	LanguageHint string

	// Tracing: spans are exported over OTLP/gRPC when OTLPEndpoint is set.
	OTLPEndpoint string
	OTLPInsecure bool

	// Serving and batch runs
	ListenAddr  string
	Concurrency int

	Verbose bool
}

// Defaults used when neither flags, env nor a config file set a value.
const (
	DefaultFetchTimeout   = 10 * time.Second
	DefaultBrowserTimeout = 60 * time.Second
	DefaultLLMTimeout     = 60 * time.Second
	DefaultListenAddr     = ":8080"
	DefaultConcurrency    = 4
)

// DefaultConfig returns the configuration used before any overrides.
func DefaultConfig() Config {
	return Config{
		LLMBaseURL:     llm.DefaultBaseURL,
		LLMModel:       llm.DefaultModel,
		MaxInputChars:  llmextract.DefaultMaxInputChars,
		UserAgent:      fetch.DefaultUserAgent,
		FetchTimeout:   DefaultFetchTimeout,
		BrowserTimeout: DefaultBrowserTimeout,
		LLMTimeout:     DefaultLLMTimeout,
		MaxBodyBytes:   fetch.DefaultMaxBodyBytes,
		LanguageHint:   article.DefaultLanguage,
		ListenAddr:     DefaultListenAddr,
		Concurrency:    DefaultConcurrency,
	}
}
