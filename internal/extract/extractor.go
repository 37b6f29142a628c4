// Package extract pulls named product fields out of parsed pages. Each field
// has an ordered chain of strategies; the first one that yields a non-empty
// value wins and a field whose chain is exhausted is recorded as absent.
package extract

import (
	"log/slog"
	"time"

	"github.com/IshaanNene/ProductGoat/internal/parser"
	"github.com/IshaanNene/ProductGoat/internal/types"
)

// Observer is notified of every record an Extractor produces.
type Observer interface {
	ObserveRecord(rec *types.Record)
}

// Extractor runs a field set over pages with logging and observation.
type Extractor struct {
	fields   *FieldSet
	workers  int
	observer Observer
	logger   *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithWorkers sets the number of pages extracted concurrently.
func WithWorkers(n int) Option {
	return func(e *Extractor) { e.workers = n }
}

// WithObserver attaches an observer, typically a metrics collector.
func WithObserver(o Observer) Option {
	return func(e *Extractor) { e.observer = o }
}

// New creates an Extractor for a field set.
func New(fields *FieldSet, logger *slog.Logger, opts ...Option) *Extractor {
	e := &Extractor{
		fields:  fields,
		workers: 1,
		logger:  logger.With("component", "extractor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fields returns the extractor's field set.
func (e *Extractor) Fields() *FieldSet { return e.fields }

// Extract assembles the record for a single page.
func (e *Extractor) Extract(page *parser.Page) *types.Record {
	rec := Assemble(page, e.fields)
	e.observe(rec, page)
	return rec
}

// Run extracts all pages and aggregates the batch.
func (e *Extractor) Run(pages []*parser.Page) *types.Batch {
	start := time.Now()
	batch := RunParallel(pages, e.fields, e.workers)

	for i, rec := range batch.Records() {
		e.observe(rec, pages[i])
	}

	e.logger.Info("extraction complete",
		"pages", batch.Len(),
		"invalid_pages", batch.InvalidPages(),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return batch
}

func (e *Extractor) observe(rec *types.Record, page *parser.Page) {
	switch {
	case rec.Invalid():
		e.logger.Warn("invalid page", "url", rec.URL(), "error", page.Err())
	case !rec.Complete():
		e.logger.Debug("fields absent", "url", rec.URL(), "fields", rec.AbsentFields())
	}
	if e.observer != nil {
		e.observer.ObserveRecord(rec)
	}
}
