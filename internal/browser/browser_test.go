package browser

import (
	"context"
	"errors"
	"testing"
)

func TestRender_RejectsInvalidURLWithoutLaunching(t *testing.T) {
	r := &Renderer{ExecPath: "/nonexistent/chrome"}
	for _, u := range []string{"", "ftp://example.com/file", "/relative/path", "http://"} {
		_, err := r.Render(context.Background(), u)
		if !errors.Is(err, ErrInvalidURL) {
			t.Fatalf("%q: expected ErrInvalidURL, got %v", u, err)
		}
	}
}

func TestRender_MissingBinaryFails(t *testing.T) {
	r := &Renderer{ExecPath: "/nonexistent/chrome"}
	_, err := r.Render(context.Background(), "https://example.com/")
	if err == nil {
		t.Fatalf("expected error when the browser binary does not exist")
	}
	if errors.Is(err, ErrInvalidURL) {
		t.Fatalf("unexpected ErrInvalidURL: %v", err)
	}
}

func TestAllocatorOptions(t *testing.T) {
	base := len((&Renderer{}).allocatorOptions())
	full := len((&Renderer{UserAgent: "ua", ExecPath: "/bin/chrome"}).allocatorOptions())
	if full != base+2 {
		t.Fatalf("expected two extra options, got %d vs %d", full, base)
	}
}
