// Package engine drives a scrape run: it fetches product URLs with bounded
// concurrency, turns each response into a page, hands the pages to the
// extractor and stores the resulting batch.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/IshaanNene/ProductGoat/internal/config"
	"github.com/IshaanNene/ProductGoat/internal/extract"
	"github.com/IshaanNene/ProductGoat/internal/parser"
	"github.com/IshaanNene/ProductGoat/internal/types"
)

// State represents the engine's current lifecycle state.
type State int32

const (
	StateIdle     State = 0
	StateRunning  State = 1
	StateStopping State = 2
	StateStopped  State = 3
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stats tracks run statistics.
type Stats struct {
	RequestsSent     atomic.Int64
	RequestsFailed   atomic.Int64
	ResponsesOK      atomic.Int64
	PagesInvalid     atomic.Int64
	BytesDownloaded  atomic.Int64
	RecordsExtracted atomic.Int64
	StartTime        time.Time
}

// Snapshot returns a copy of stats safe for reading.
func (s *Stats) Snapshot() map[string]any {
	return map[string]any{
		"requests_sent":     s.RequestsSent.Load(),
		"requests_failed":   s.RequestsFailed.Load(),
		"responses_ok":      s.ResponsesOK.Load(),
		"pages_invalid":     s.PagesInvalid.Load(),
		"bytes_downloaded":  s.BytesDownloaded.Load(),
		"records_extracted": s.RecordsExtracted.Load(),
		"elapsed":           time.Since(s.StartTime).Round(time.Millisecond).String(),
	}
}

// Fetcher is the interface for all fetcher implementations.
type Fetcher interface {
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)
	Close() error
}

// Storage is the interface for all export backends.
type Storage interface {
	Store(batch *types.Batch) error
	Close() error
}

// FetchObserver is notified of every fetch attempt.
type FetchObserver interface {
	ObserveFetch(url string, resp *types.Response, err error)
}

// Engine is the scrape orchestrator.
type Engine struct {
	cfg       *config.Config
	logger    *slog.Logger
	fetcher   Fetcher
	extractor *extract.Extractor
	storage   Storage
	observer  FetchObserver

	state  atomic.Int32
	stats  *Stats
	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates a new Engine with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: logger.With("component", "engine"),
		stats:  &Stats{},
	}
}

// SetFetcher sets the page fetcher.
func (e *Engine) SetFetcher(f Fetcher) { e.fetcher = f }

// SetExtractor sets the field extractor.
func (e *Engine) SetExtractor(x *extract.Extractor) { e.extractor = x }

// SetStorage sets the export backend. A nil storage skips export.
func (e *Engine) SetStorage(s Storage) { e.storage = s }

// SetFetchObserver attaches a fetch observer, typically a metrics collector.
func (e *Engine) SetFetchObserver(o FetchObserver) { e.observer = o }

// Run fetches every URL, extracts one record per URL in input order and
// stores the batch. URLs that cannot be fetched or parsed produce invalid
// records rather than aborting the run. The returned error reports
// cancellation or an export failure; the batch is returned either way.
func (e *Engine) Run(ctx context.Context, urls []string) (*types.Batch, error) {
	if e.fetcher == nil || e.extractor == nil {
		return nil, errors.New("engine: fetcher and extractor are required")
	}
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) &&
		!e.state.CompareAndSwap(int32(StateStopped), int32(StateRunning)) {
		return nil, fmt.Errorf("engine is in state %s, cannot start", State(e.state.Load()))
	}
	defer e.state.Store(int32(StateStopped))

	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()
	defer cancel()

	e.stats = &Stats{StartTime: time.Now()}
	e.logger.Info("engine starting",
		"urls", len(urls),
		"concurrency", e.cfg.Engine.Concurrency,
	)

	pages := e.FetchPages(ctx, urls)
	batch := e.extractor.Run(pages)
	e.stats.RecordsExtracted.Add(int64(batch.Len()))

	var err error
	if e.storage != nil {
		if serr := e.storage.Store(batch); serr != nil {
			e.logger.Error("storage error", "error", serr, "records", batch.Len())
			err = serr
		}
	}

	e.logger.Info("engine stopped", "stats", e.stats.Snapshot())

	if cerr := ctx.Err(); cerr != nil && err == nil && e.State() != StateStopping {
		err = cerr
	}
	return batch, err
}

// FetchPages fetches urls with bounded concurrency and returns one page per
// URL, in input order. Failures become invalid pages.
func (e *Engine) FetchPages(ctx context.Context, urls []string) []*parser.Page {
	pages := make([]*parser.Page, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(e.cfg.Engine.Concurrency, 1))
	for i, raw := range urls {
		g.Go(func() error {
			pages[i] = e.fetchPage(gctx, i, raw)
			return nil
		})
	}
	_ = g.Wait()

	return pages
}

func (e *Engine) fetchPage(ctx context.Context, index int, raw string) *parser.Page {
	req, err := types.NewRequest(raw)
	if err != nil {
		e.logger.Warn("skipping invalid url", "index", index, "url", raw, "error", err)
		e.stats.PagesInvalid.Add(1)
		return parser.InvalidPage(raw, err)
	}
	req.Index = index
	req.Timeout = e.cfg.Engine.RequestTimeout

	if err := ctx.Err(); err != nil {
		e.stats.PagesInvalid.Add(1)
		return parser.InvalidPage(raw, err)
	}

	e.stats.RequestsSent.Add(1)
	resp, err := e.fetcher.Fetch(ctx, req)
	if e.observer != nil {
		e.observer.ObserveFetch(raw, resp, err)
	}
	if err != nil {
		e.stats.RequestsFailed.Add(1)
		e.stats.PagesInvalid.Add(1)
		e.logger.Warn("fetch failed", "index", req.Index, "url", raw, "error", err)
		return parser.InvalidPage(raw, err)
	}
	e.stats.ResponsesOK.Add(1)
	e.stats.BytesDownloaded.Add(int64(len(resp.Body)))

	page, err := parser.FromResponse(resp)
	if err != nil {
		e.stats.PagesInvalid.Add(1)
		e.logger.Warn("parse failed",
			"index", req.Index,
			"url", raw,
			"content_type", resp.ContentType,
			"error", err,
		)
		return parser.InvalidPage(raw, err)
	}
	return page
}

// Stop cancels an in-flight run. Pages not yet fetched become invalid.
func (e *Engine) Stop() {
	if !e.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return
	}
	e.logger.Info("engine stopping...")
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	e.mu.Unlock()
}

// Close releases the fetcher and storage.
func (e *Engine) Close() error {
	var errs []error
	if e.fetcher != nil {
		if err := e.fetcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("fetcher close: %w", err))
		}
	}
	if e.storage != nil {
		if err := e.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage close: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Stats returns the statistics of the current or last run.
func (e *Engine) Stats() *Stats {
	return e.stats
}

// State returns the current engine state.
func (e *Engine) State() State {
	return State(e.state.Load())
}
