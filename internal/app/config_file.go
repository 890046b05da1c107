package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig is the single-file configuration schema (YAML or JSON).
type FileConfig struct {
	LLM struct {
		BaseURL       string   `yaml:"base" json:"base"`
		Model         string   `yaml:"model" json:"model"`
		APIKey        string   `yaml:"key" json:"key"`
		Disable       bool     `yaml:"disable" json:"disable"`
		MaxInputChars int      `yaml:"maxInputChars" json:"maxInputChars"`
		Timeout       Duration `yaml:"timeout" json:"timeout"`
	} `yaml:"llm" json:"llm"`

	Fetch struct {
		UserAgent          string   `yaml:"userAgent" json:"userAgent"`
		Timeout            Duration `yaml:"timeout" json:"timeout"`
		MaxBodyBytes       int64    `yaml:"maxBodyBytes" json:"maxBodyBytes"`
		InsecureSkipVerify bool     `yaml:"insecureSkipVerify" json:"insecureSkipVerify"`
	} `yaml:"fetch" json:"fetch"`

	Browser struct {
		ChromePath string   `yaml:"chromePath" json:"chromePath"`
		Timeout    Duration `yaml:"timeout" json:"timeout"`
	} `yaml:"browser" json:"browser"`

	Server struct {
		Listen string `yaml:"listen" json:"listen"`
	} `yaml:"server" json:"server"`

	Tracing struct {
		Endpoint string `yaml:"endpoint" json:"endpoint"`
		Insecure bool   `yaml:"insecure" json:"insecure"`
	} `yaml:"tracing" json:"tracing"`

	Language    string `yaml:"language" json:"language"`
	Concurrency int    `yaml:"concurrency" json:"concurrency"`
	Verbose     bool   `yaml:"verbose" json:"verbose"`
}

// Duration accepts Go duration strings ("90s", "2m") in YAML and JSON.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.parse(value.Value)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	return d.parse(s)
}

func (d *Duration) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays the values set in fc onto cfg.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	setString := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	setDuration := func(dst *time.Duration, v Duration) {
		if v > 0 {
			*dst = time.Duration(v)
		}
	}

	setString(&cfg.LLMBaseURL, fc.LLM.BaseURL)
	setString(&cfg.LLMModel, fc.LLM.Model)
	setString(&cfg.LLMAPIKey, fc.LLM.APIKey)
	if fc.LLM.Disable {
		cfg.DisableLLM = true
	}
	if fc.LLM.MaxInputChars > 0 {
		cfg.MaxInputChars = fc.LLM.MaxInputChars
	}
	setDuration(&cfg.LLMTimeout, fc.LLM.Timeout)

	setString(&cfg.UserAgent, fc.Fetch.UserAgent)
	setDuration(&cfg.FetchTimeout, fc.Fetch.Timeout)
	if fc.Fetch.MaxBodyBytes > 0 {
		cfg.MaxBodyBytes = fc.Fetch.MaxBodyBytes
	}
	if fc.Fetch.InsecureSkipVerify {
		cfg.InsecureSkipVerify = true
	}

	setString(&cfg.ChromePath, fc.Browser.ChromePath)
	setDuration(&cfg.BrowserTimeout, fc.Browser.Timeout)
	setString(&cfg.ListenAddr, fc.Server.Listen)
	setString(&cfg.OTLPEndpoint, fc.Tracing.Endpoint)
	if fc.Tracing.Insecure {
		cfg.OTLPInsecure = true
	}
	setString(&cfg.LanguageHint, fc.Language)
	if fc.Concurrency > 0 {
		cfg.Concurrency = fc.Concurrency
	}
	if fc.Verbose {
		cfg.Verbose = true
	}
}

// ValidateConfig checks settings that would otherwise fail at request time.
func ValidateConfig(cfg Config) error {
	if cfg.FetchTimeout <= 0 {
		return errors.New("config: fetch timeout must be positive")
	}
	if cfg.BrowserTimeout < 0 || cfg.LLMTimeout < 0 {
		return errors.New("config: negative timeouts are not allowed")
	}
	if cfg.Concurrency < 1 {
		return errors.New("config: concurrency must be at least 1")
	}
	if cfg.MaxBodyBytes < 0 || cfg.MaxInputChars < 0 {
		return errors.New("config: negative limits are not allowed")
	}
	if !cfg.DisableLLM && strings.TrimSpace(cfg.LLMModel) == "" {
		return errors.New("config: llm.model is required (or set LLM_MODEL, or disable the llm step)")
	}
	return nil
}
