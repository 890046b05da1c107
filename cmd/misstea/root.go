package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pgoslatara/misstea/internal/app"
)

// globalFlags are shared by every subcommand. They only override the
// configuration when set explicitly on the command line.
type globalFlags struct {
	configPath string
	envFiles   []string
	verbose    bool

	llmBase    string
	llmModel   string
	llmKey     string
	disableLLM bool

	fetchTimeout   time.Duration
	browserTimeout time.Duration
	llmTimeout     time.Duration

	language           string
	userAgent          string
	chromePath         string
	insecureSkipVerify bool

	otlpEndpoint string
	otlpInsecure bool
}

func newRootCmd() *cobra.Command {
	f := &globalFlags{}
	root := &cobra.Command{
		Use:           "misstea",
		Short:         "Extract the main content of web pages",
		Long:          "misstea extracts the main readable content of a web page by trying a fast HTML extractor, an article parser, a raw fetch and finally a browser render read by a language model.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "Path to a YAML or JSON config file")
	pf.StringSliceVar(&f.envFiles, "env-file", nil, "Dotenv file(s) to load before reading the environment")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "Verbose debug logging")
	pf.StringVar(&f.llmBase, "llm.base", "", "OpenAI-compatible base URL")
	pf.StringVar(&f.llmModel, "llm.model", "", "Model name")
	pf.StringVar(&f.llmKey, "llm.key", "", "API key for the model endpoint")
	pf.BoolVar(&f.disableLLM, "disable-llm", false, "Skip the browser and language model step")
	pf.DurationVar(&f.fetchTimeout, "fetch-timeout", 0, "Timeout for each page download")
	pf.DurationVar(&f.browserTimeout, "browser-timeout", 0, "Timeout for the headless browser render")
	pf.DurationVar(&f.llmTimeout, "llm-timeout", 0, "Timeout for the model call")
	pf.StringVar(&f.language, "lang", "", "Expected page language (ISO 639-1)")
	pf.StringVar(&f.userAgent, "user-agent", "", "User-Agent for page downloads and rendering")
	pf.StringVar(&f.chromePath, "chrome-path", "", "Path to the Chrome or Chromium binary")
	pf.BoolVar(&f.insecureSkipVerify, "insecure-skip-verify", false, "Disable TLS certificate verification for page downloads")
	pf.StringVar(&f.otlpEndpoint, "otlp-endpoint", "", "OTLP/gRPC collector for pipeline traces (host:port or URL)")
	pf.BoolVar(&f.otlpInsecure, "otlp-insecure", false, "Connect to the OTLP collector without TLS")

	root.AddCommand(
		newExtractCmd(f),
		newServeCmd(f),
		newToolsCmd(f),
		newConfigCmd(f),
		newVersionCmd(),
	)
	return root
}

// loadConfig layers defaults, the config file, dotenv files, the environment
// and finally explicitly set flags, in that order.
func loadConfig(cmd *cobra.Command, f *globalFlags) (app.Config, error) {
	cfg := app.DefaultConfig()
	if f.configPath != "" {
		fc, err := app.LoadConfigFile(f.configPath)
		if err != nil {
			return cfg, err
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	if len(f.envFiles) > 0 {
		if err := app.LoadEnvFiles(f.envFiles...); err != nil {
			return cfg, fmt.Errorf("load env files: %w", err)
		}
	}
	app.ApplyEnvOverrides(&cfg)
	f.apply(cmd.Flags(), &cfg)
	return cfg, nil
}

func (f *globalFlags) apply(fs *pflag.FlagSet, cfg *app.Config) {
	if fs.Changed("verbose") {
		cfg.Verbose = f.verbose
	}
	if fs.Changed("llm.base") {
		cfg.LLMBaseURL = f.llmBase
	}
	if fs.Changed("llm.model") {
		cfg.LLMModel = f.llmModel
	}
	if fs.Changed("llm.key") {
		cfg.LLMAPIKey = f.llmKey
	}
	if fs.Changed("disable-llm") {
		cfg.DisableLLM = f.disableLLM
	}
	if fs.Changed("fetch-timeout") {
		cfg.FetchTimeout = f.fetchTimeout
	}
	if fs.Changed("browser-timeout") {
		cfg.BrowserTimeout = f.browserTimeout
	}
	if fs.Changed("llm-timeout") {
		cfg.LLMTimeout = f.llmTimeout
	}
	if fs.Changed("lang") {
		cfg.LanguageHint = f.language
	}
	if fs.Changed("user-agent") {
		cfg.UserAgent = f.userAgent
	}
	if fs.Changed("chrome-path") {
		cfg.ChromePath = f.chromePath
	}
	if fs.Changed("insecure-skip-verify") {
		cfg.InsecureSkipVerify = f.insecureSkipVerify
	}
	if fs.Changed("otlp-endpoint") {
		cfg.OTLPEndpoint = f.otlpEndpoint
	}
	if fs.Changed("otlp-insecure") {
		cfg.OTLPInsecure = f.otlpInsecure
	}
}

// newApp loads the configuration, sets the log level and builds the app.
func newApp(cmd *cobra.Command, f *globalFlags, opts ...app.Option) (*app.App, error) {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return nil, err
	}
	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	a, err := app.New(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("init app: %w", err)
	}
	return a, nil
}

// closeApp flushes pending spans, waiting at most 5s.
func closeApp(a *app.App) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		log.Warn().Err(err).Msg("flush traces")
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "misstea %s (commit %s, built %s)\n", app.BuildVersion, app.BuildCommit, app.BuildDate)
			return err
		},
	}
}

func newConfigCmd(f *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			if err := app.ValidateConfig(cfg); err != nil {
				return err
			}
			if cfg.LLMAPIKey != "" {
				cfg.LLMAPIKey = "***"
			}
			return writeJSON(cmd.OutOrStdout(), cfg, true)
		},
	}
}
