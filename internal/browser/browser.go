// Package browser renders pages in headless Chrome so client-side content is
// present in the returned HTML.
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
)

// ErrInvalidURL is returned before a browser is launched for URLs that are not
// absolute http(s) addresses.
var ErrInvalidURL = errors.New("invalid URL for rendering")

// Renderer launches a fresh headless browser per call. Instances hold only
// configuration and are safe for concurrent use.
type Renderer struct {
	// Timeout bounds a whole render including browser start. Zero means no limit
	// beyond the caller's context.
	Timeout time.Duration
	// UserAgent overrides the browser's default.
	UserAgent string
	// ExecPath points at a Chrome/Chromium binary. Empty uses chromedp's lookup.
	ExecPath string
	// Settle is an extra wait after the body is ready, for late scripts.
	Settle time.Duration
	// Headful disables headless mode for debugging.
	Headful bool
}

// Render navigates to rawURL, waits for the body and returns the outer HTML of
// the document.
func (r *Renderer) Render(ctx context.Context, rawURL string) (string, error) {
	if err := checkURL(rawURL); err != nil {
		return "", err
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, r.allocatorOptions()...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx, chromedp.WithLogf(func(format string, args ...any) {
		log.Debug().Str("component", "chromedp").Msgf(format, args...)
	}))
	defer cancelBrowser()

	started := time.Now()
	var html string
	tasks := chromedp.Tasks{
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if r.Settle > 0 {
		tasks = append(tasks, chromedp.Sleep(r.Settle))
	}
	tasks = append(tasks, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	if err := chromedp.Run(bctx, tasks); err != nil {
		return "", fmt.Errorf("render %s: %w", rawURL, err)
	}
	log.Debug().Str("url", rawURL).Dur("duration", time.Since(started)).Int("bytes", len(html)).Msg("page rendered")
	return html, nil
}

func (r *Renderer) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", !r.Headful),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.WindowSize(1366, 900),
	)
	if r.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(r.UserAgent))
	}
	if r.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.ExecPath))
	}
	return opts
}

func checkURL(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return nil
}
