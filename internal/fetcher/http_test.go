package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/IshaanNene/ProductGoat/internal/config"
	"github.com/IshaanNene/ProductGoat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Fetcher.RateLimit = 0
	cfg.Engine.RequestTimeout = 5 * time.Second
	return cfg
}

func newRequest(t *testing.T, url string) *types.Request {
	t.Helper()
	req, err := types.NewRequest(url)
	if err != nil {
		t.Fatal(err)
	}
	return req
}

func TestHTTPFetcherSendsHeaderSet(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Fetcher.UserAgent = "ProductGoat-Test/1.0"
	cfg.Fetcher.AcceptLanguage = "de-DE"
	cfg.Fetcher.Headers = map[string]string{"X-Shop": "eu"}

	f, err := NewHTTPFetcher(cfg, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	resp, err := f.Fetch(context.Background(), newRequest(t, srv.URL))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if resp.StatusCode != http.StatusOK || string(resp.Body) != "<html><body>ok</body></html>" {
		t.Errorf("unexpected response %d %q", resp.StatusCode, resp.Body)
	}

	for k, want := range map[string]string{
		"User-Agent":      "ProductGoat-Test/1.0",
		"Accept-Language": "de-DE",
		"X-Shop":          "eu",
	} {
		if got.Get(k) != want {
			t.Errorf("header %s: expected %q, got %q", k, want, got.Get(k))
		}
	}
}

func TestHTTPFetcherDecodesBodies(t *testing.T) {
	const page = "<html><body>compressed</body></html>"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		switch r.URL.Path {
		case "/gzip":
			zw := gzip.NewWriter(&buf)
			zw.Write([]byte(page))
			zw.Close()
			w.Header().Set("Content-Encoding", "gzip")
		case "/br":
			bw := brotli.NewWriter(&buf)
			bw.Write([]byte(page))
			bw.Close()
			w.Header().Set("Content-Encoding", "br")
		}
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	f, err := NewHTTPFetcher(testConfig(), testLogger)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	for _, path := range []string{"/gzip", "/br"} {
		resp, err := f.Fetch(context.Background(), newRequest(t, srv.URL+path))
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		if string(resp.Body) != page {
			t.Errorf("%s: expected decoded body, got %q", path, resp.Body)
		}
	}
}

func TestHTTPFetcherStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "robot check", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f, err := NewHTTPFetcher(testConfig(), testLogger)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	_, err = f.Fetch(context.Background(), newRequest(t, srv.URL))
	var ferr *types.FetchError
	if !errors.As(err, &ferr) || ferr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected FetchError with status 503, got %v", err)
	}
}

func TestHTTPFetcherMaxBodySize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := 4096
		if r.URL.Path == "/exact" {
			n = 100
		}
		w.Write(bytes.Repeat([]byte("a"), n))
	}))
	defer srv.Close()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg := testConfig()
	cfg.Fetcher.MaxBodySize = 100
	f, err := NewHTTPFetcher(cfg, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	resp, err := f.Fetch(context.Background(), newRequest(t, srv.URL+"/exact"))
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Body) != 100 || logs.Len() != 0 {
		t.Errorf("body at the cap should pass silently, got %d bytes, logs %q", len(resp.Body), logs.String())
	}

	resp, err = f.Fetch(context.Background(), newRequest(t, srv.URL+"/big"))
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Body) != 100 {
		t.Errorf("expected body capped at 100 bytes, got %d", len(resp.Body))
	}
	if out := logs.String(); !strings.Contains(out, "response body truncated") || !strings.Contains(out, srv.URL+"/big") {
		t.Errorf("expected truncation warning with url, got %q", out)
	}
}

func TestHTTPFetcherHonoursCancellation(t *testing.T) {
	cfg := testConfig()
	cfg.Fetcher.RateLimit = 0.001
	f, err := NewHTTPFetcher(cfg, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	// The first call consumes the only token.
	f.limiter.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := f.Fetch(ctx, newRequest(t, "http://127.0.0.1:1/")); err == nil {
		t.Error("expected rate-limited fetch to fail once the context expires")
	}
}

func TestHeaderSetDropsEmptyValues(t *testing.T) {
	cfg := config.DefaultConfig().Fetcher
	cfg.AcceptLanguage = ""
	h := HeaderSet(&cfg)
	if _, ok := h["Accept-Language"]; ok {
		t.Error("empty Accept-Language should not be sent")
	}
	if h.Get("User-Agent") == "" {
		t.Error("user agent should be set")
	}
}

func TestNewRejectsUnknownType(t *testing.T) {
	cfg := testConfig()
	cfg.Fetcher.Type = "carrier-pigeon"
	if _, err := New(cfg, testLogger); err == nil {
		t.Error("expected error for unknown fetcher type")
	}
}
