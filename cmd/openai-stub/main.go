package main

import (
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pgoslatara/misstea/internal/llm"
)

// openai-stub serves a fake OpenAI-compatible API for local runs.
// MODEL_ID sets the advertised model, ADDR the listen address and STUB_MODE
// one of echo, invalid, empty or fenced.
func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	addr := strings.TrimSpace(os.Getenv("ADDR"))
	if addr == "" {
		addr = ":8081"
	}
	mode := llm.StubMode(strings.TrimSpace(os.Getenv("STUB_MODE")))
	if mode == "" {
		mode = llm.StubEcho
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           llm.NewStubHandler(os.Getenv("MODEL_ID"), mode),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info().Str("addr", addr).Str("mode", string(mode)).Msg("openai-stub listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("openai-stub failed")
	}
}
