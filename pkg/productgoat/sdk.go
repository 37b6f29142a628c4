// Package productgoat provides a public SDK for embedding ProductGoat as a
// library.
//
// Example usage:
//
//	s, err := productgoat.New(
//	    productgoat.WithConcurrency(4),
//	    productgoat.WithOutput("json", "./output/products.json"),
//	)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	batch, err := s.Scrape(ctx, "https://shop.example/p/1", "https://shop.example/p/2")
//	for _, rec := range batch.Records() {
//	    fmt.Println(rec.Value("title"), rec.Value("price"))
//	}
package productgoat

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/IshaanNene/ProductGoat/internal/config"
	"github.com/IshaanNene/ProductGoat/internal/engine"
	"github.com/IshaanNene/ProductGoat/internal/extract"
	"github.com/IshaanNene/ProductGoat/internal/fetcher"
	"github.com/IshaanNene/ProductGoat/internal/parser"
	"github.com/IshaanNene/ProductGoat/internal/storage"
	"github.com/IshaanNene/ProductGoat/internal/types"
)

type (
	// Field defines one extractable field and its fallback chain.
	Field = config.FieldConfig
	// Strategy is one (locator, accessor) step of a fallback chain.
	Strategy = config.StrategyConfig
	// Record is the fixed-schema result for one page.
	Record = types.Record
	// Batch is the ordered set of records from one run.
	Batch = types.Batch
)

// ByID locates an element by id and reads it with accessor ("" for text).
func ByID(id, accessor string) Strategy {
	return Strategy{Kind: "id", Value: id, Accessor: accessor}
}

// ByCSS locates the first element matching a CSS selector.
func ByCSS(selector, accessor string) Strategy {
	return Strategy{Kind: "css", Selector: selector, Accessor: accessor}
}

// ByXPath locates the first node matching an XPath expression.
func ByXPath(expr, accessor string) Strategy {
	return Strategy{Kind: "xpath", Selector: expr, Accessor: accessor}
}

// ByTag locates the first <tag> whose attr equals value.
func ByTag(tag, attr, value, accessor string) Strategy {
	return Strategy{Kind: "tag", Tag: tag, Attr: attr, Value: value, Accessor: accessor}
}

// ByJSONLD reads a dotted path from the page's JSON-LD Product data.
func ByJSONLD(path string) Strategy {
	return Strategy{Kind: "jsonld", Selector: path}
}

// ByRegex matches a pattern against the raw markup.
func ByRegex(pattern string) Strategy {
	return Strategy{Kind: "regex", Selector: pattern}
}

// Option configures a Scraper.
type Option func(*settings)

type settings struct {
	cfg    *config.Config
	export bool
	logger *slog.Logger
}

// WithConfig replaces the defaults with a copy of a loaded configuration.
// Options after it still apply. A nil config keeps the defaults.
func WithConfig(cfg *config.Config) Option {
	return func(s *settings) {
		if cfg == nil {
			return
		}
		c := *cfg
		c.Fetcher.Headers = maps.Clone(cfg.Fetcher.Headers)
		c.Extract.Fields = cloneFields(cfg.Extract.Fields)
		s.cfg = &c
	}
}

func cloneFields(fields []Field) []Field {
	if fields == nil {
		return nil
	}
	out := make([]Field, len(fields))
	for i, f := range fields {
		f.Normalize = slices.Clone(f.Normalize)
		f.Strategies = slices.Clone(f.Strategies)
		out[i] = f
	}
	return out
}

// WithConcurrency sets the number of pages fetched concurrently.
func WithConcurrency(n int) Option {
	return func(s *settings) { s.cfg.Engine.Concurrency = n }
}

// WithRateLimit sets the request rate in requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *settings) {
		s.cfg.Fetcher.RateLimit = rps
		s.cfg.Fetcher.Burst = burst
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) { s.cfg.Engine.RequestTimeout = d }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *settings) { s.cfg.Fetcher.UserAgent = ua }
}

// WithAcceptLanguage sets the Accept-Language header.
func WithAcceptLanguage(lang string) Option {
	return func(s *settings) { s.cfg.Fetcher.AcceptLanguage = lang }
}

// WithHeader adds an extra request header.
func WithHeader(key, value string) Option {
	return func(s *settings) {
		if s.cfg.Fetcher.Headers == nil {
			s.cfg.Fetcher.Headers = make(map[string]string)
		}
		s.cfg.Fetcher.Headers[key] = value
	}
}

// WithBrowser fetches pages through a headless browser.
func WithBrowser() Option {
	return func(s *settings) { s.cfg.Fetcher.Type = "browser" }
}

// WithFields replaces the built-in product fields.
func WithFields(fields ...Field) Option {
	return func(s *settings) { s.cfg.Extract.Fields = cloneFields(fields) }
}

// WithOutput exports every scraped batch to path in the given format.
func WithOutput(format, path string) Option {
	return func(s *settings) {
		s.cfg.Storage.Type = format
		s.cfg.Storage.OutputPath = path
		s.export = true
	}
}

// WithURLColumn adds a leading url column to exports.
func WithURLColumn() Option {
	return func(s *settings) { s.cfg.Storage.IncludeURL = true }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithVerbose enables debug-level logging.
func WithVerbose() Option {
	return func(s *settings) { s.cfg.Logging.Level = "debug" }
}

// Scraper is the high-level API for using ProductGoat as a library.
type Scraper struct {
	cfg       *config.Config
	export    bool
	extractor *extract.Extractor
	logger    *slog.Logger

	mu      sync.Mutex
	fetcher fetcher.Fetcher
}

// newFetcher builds the fetcher on the first Scrape.
var newFetcher = func(cfg *config.Config, logger *slog.Logger) (fetcher.Fetcher, error) {
	return fetcher.New(cfg, logger)
}

// New creates a Scraper. Field definitions are compiled up front so a bad
// selector fails here rather than mid-run.
func New(opts ...Option) (*Scraper, error) {
	s := &settings{cfg: config.DefaultConfig()}
	for _, opt := range opts {
		opt(s)
	}

	if err := config.Validate(s.cfg); err != nil {
		return nil, err
	}

	logger := s.logger
	if logger == nil {
		level := slog.LevelInfo
		if s.cfg.Logging.Level == "debug" {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	fields, err := extract.BuildFieldSet(s.cfg.Extract.Fields)
	if err != nil {
		return nil, err
	}

	return &Scraper{
		cfg:       s.cfg,
		export:    s.export,
		extractor: extract.New(fields, logger, extract.WithWorkers(s.cfg.Engine.ExtractWorkers)),
		logger:    logger,
	}, nil
}

// Fields returns the active field names in column order.
func (s *Scraper) Fields() []string {
	return s.extractor.Fields().Schema().Names()
}

// Scrape fetches the URLs and returns one record per URL, in input order.
// Pages that cannot be fetched yield all-empty records.
func (s *Scraper) Scrape(ctx context.Context, urls ...string) (*Batch, error) {
	f, err := s.getFetcher()
	if err != nil {
		return nil, err
	}

	eng := engine.New(s.cfg, s.logger)
	eng.SetFetcher(f)
	eng.SetExtractor(s.extractor)

	batch, err := eng.Run(ctx, urls)
	if err != nil {
		return batch, err
	}
	if s.export {
		if err := s.Export(batch, s.cfg.Storage.Type, s.cfg.Storage.OutputPath); err != nil {
			return batch, err
		}
	}
	return batch, nil
}

// ExtractHTML extracts a record from markup that was fetched elsewhere.
func (s *Scraper) ExtractHTML(url string, html []byte) (*Record, error) {
	page, err := parser.NewPage(url, html)
	if err != nil {
		return nil, err
	}
	return s.extractor.Extract(page), nil
}

// Export writes a batch to path in the given format (csv, json, jsonl,
// xlsx).
func (s *Scraper) Export(batch *Batch, format, path string) error {
	store, err := storage.NewFileStorage(format, path, s.cfg.Storage.IncludeURL, s.logger)
	if err != nil {
		return err
	}
	if err := store.Store(batch); err != nil {
		store.Close()
		return err
	}
	return store.Close()
}

// getFetcher creates the fetcher on first use. Concurrent scrapes share it.
func (s *Scraper) getFetcher() (fetcher.Fetcher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetcher == nil {
		f, err := newFetcher(s.cfg, s.logger)
		if err != nil {
			return nil, fmt.Errorf("create fetcher: %w", err)
		}
		s.fetcher = f
	}
	return s.fetcher, nil
}

// Close releases the fetcher.
func (s *Scraper) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetcher == nil {
		return nil
	}
	err := s.fetcher.Close()
	s.fetcher = nil
	return err
}
