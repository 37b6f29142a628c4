package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/time/rate"

	"github.com/IshaanNene/ProductGoat/internal/config"
	"github.com/IshaanNene/ProductGoat/internal/types"
)

// BrowserFetcher implements Fetcher using a headless Chromium via Rod, for
// storefronts that render product data client-side.
type BrowserFetcher struct {
	browser  *rod.Browser
	cfg      *config.Config
	headers  http.Header
	limiter  *rate.Limiter
	logger   *slog.Logger
	pagePool chan *rod.Page
}

// NewBrowserFetcher launches a browser and connects to it.
func NewBrowserFetcher(cfg *config.Config, logger *slog.Logger) (*BrowserFetcher, error) {
	bf := &BrowserFetcher{
		cfg:      cfg,
		headers:  HeaderSet(&cfg.Fetcher),
		limiter:  newLimiter(cfg.Fetcher.RateLimit, cfg.Fetcher.Burst),
		logger:   logger.With("component", "browser_fetcher"),
		pagePool: make(chan *rod.Page, max(cfg.Engine.Concurrency, 1)),
	}

	launchURL, err := launcher.New().
		Headless(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	bf.browser = browser

	bf.logger.Info("browser fetcher ready", "max_pages", cap(bf.pagePool))
	return bf, nil
}

// Fetch navigates to a URL and returns the rendered page content. Rod does
// not expose the document status code, so successful navigations report 200.
func (bf *BrowserFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	if err := bf.limiter.Wait(ctx); err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err}
	}
	start := time.Now()

	page, err := bf.getPage()
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err}
	}
	defer bf.putPage(page)

	if ua := bf.headers.Get("User-Agent"); ua != "" {
		err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      ua,
			AcceptLanguage: bf.headers.Get("Accept-Language"),
		})
		if err != nil {
			bf.logger.Warn("failed to set user agent", "error", err)
		}
	}

	extra := make([]string, 0, len(bf.headers)*2)
	for k := range bf.headers {
		switch k {
		case "User-Agent", "Accept-Encoding":
			continue
		}
		extra = append(extra, k, bf.headers.Get(k))
	}
	for k := range req.Headers {
		extra = append(extra, k, req.Headers.Get(k))
	}
	if len(extra) > 0 {
		if cleanup, err := page.SetExtraHeaders(extra); err == nil {
			defer cleanup()
		}
	}

	timeout := bf.cfg.Engine.RequestTimeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	p := page.Context(ctx).Timeout(timeout)

	if err := p.Navigate(req.URLString()); err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err}
	}
	if err := p.WaitStable(300 * time.Millisecond); err != nil {
		bf.logger.Warn("page stability timeout, continuing", "url", req.URLString(), "error", err)
	}

	html, err := p.HTML()
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err}
	}

	finalURL := req.URLString()
	if info, err := p.Info(); err == nil && info != nil {
		finalURL = info.URL
	}

	duration := time.Since(start)
	bf.logger.Debug("browser fetch complete",
		"url", req.URLString(),
		"final_url", finalURL,
		"size", len(html),
		"duration", duration,
	)

	return types.NewBrowserResponse(req, http.StatusOK, []byte(html), finalURL, duration), nil
}

// Close shuts down the browser and releases resources.
func (bf *BrowserFetcher) Close() error {
	close(bf.pagePool)
	for page := range bf.pagePool {
		_ = page.Close()
	}
	if bf.browser != nil {
		return bf.browser.Close()
	}
	return nil
}

// Type returns the fetcher type identifier.
func (bf *BrowserFetcher) Type() string {
	return "browser"
}

func (bf *BrowserFetcher) getPage() (*rod.Page, error) {
	select {
	case page := <-bf.pagePool:
		return page, nil
	default:
		return bf.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
}

func (bf *BrowserFetcher) putPage(page *rod.Page) {
	_ = page.Navigate("about:blank")

	select {
	case bf.pagePool <- page:
	default:
		_ = page.Close()
	}
}
