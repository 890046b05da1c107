// Package server exposes the extraction pipeline and its tools over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/pgoslatara/misstea/internal/llmtools"
	"github.com/pgoslatara/misstea/internal/pipeline"
)

// Extractor is satisfied by *pipeline.Pipeline and *app.App.
type Extractor interface {
	Extract(ctx context.Context, rawURL string) pipeline.Result
}

// Deps are the collaborators the handlers need.
type Deps struct {
	Extractor Extractor
	Tools     *llmtools.Registry
	// Gatherer backs /metrics. Nil uses the default prometheus registry.
	Gatherer prometheus.Gatherer
	Version  string
}

type extractRequest struct {
	URL string `json:"url"`
}

// New builds the echo instance with all routes registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= 500 {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("request_id", v.RequestID).Str("method", v.Method).Str("uri", v.URI).
				Int("status", v.Status).Dur("duration", v.Latency).Msg("http request")
			return nil
		},
	}))
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]string{"error": msg})
		}
	}

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	h := &handlers{deps: d}
	e.GET("/healthz", h.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	v1 := e.Group("/v1")
	v1.POST("/extract", h.extract)
	v1.GET("/tools", h.listTools)
	v1.POST("/tools/:name", h.callTool)
	v1.POST("/tool_calls", h.runToolCalls)
	return e
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, addr string, e *echo.Echo) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("listening")
		errCh <- e.Start(addr)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type handlers struct {
	deps Deps
}

func (h *handlers) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": h.deps.Version})
}

func (h *handlers) extract(c echo.Context) error {
	var req extractRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	u := strings.TrimSpace(req.URL)
	if u == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url is required")
	}
	return c.JSON(http.StatusOK, h.deps.Extractor.Extract(c.Request().Context(), u))
}

func (h *handlers) listTools(c echo.Context) error {
	if h.deps.Tools == nil {
		return c.JSON(http.StatusOK, map[string]any{"tools": []openai.Tool{}, "catalog": []llmtools.ToolMeta{}})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"tools":   llmtools.EncodeTools(h.deps.Tools.Specs()),
		"catalog": h.deps.Tools.Catalog(),
	})
}

func (h *handlers) callTool(c echo.Context) error {
	if h.deps.Tools == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no tools registered")
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "read body")
	}
	out, err := h.deps.Tools.Invoke(c.Request().Context(), c.Param("name"), json.RawMessage(body))
	switch {
	case errors.Is(err, llmtools.ErrUnknownTool):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, llmtools.ErrInvalidArguments):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSONBlob(http.StatusOK, out)
}

// runToolCalls executes the tool calls of a chat completion response and
// returns the tool messages to append to the conversation.
func (h *handlers) runToolCalls(c echo.Context) error {
	if h.deps.Tools == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no tools registered")
	}
	var resp openai.ChatCompletionResponse
	if err := json.NewDecoder(c.Request().Body).Decode(&resp); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid chat completion response")
	}
	calls := llmtools.ParseToolCalls(resp)
	if len(calls) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no tool calls in response")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"messages": llmtools.RunToolCalls(c.Request().Context(), h.deps.Tools, calls),
	})
}
