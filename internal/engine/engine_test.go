package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/IshaanNene/ProductGoat/internal/config"
	"github.com/IshaanNene/ProductGoat/internal/extract"
	"github.com/IshaanNene/ProductGoat/internal/fetcher"
	"github.com/IshaanNene/ProductGoat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func productServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/broken":
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		case "/empty":
			w.WriteHeader(http.StatusOK)
		default:
			// Later pages answer first so ordering is exercised.
			if r.URL.Path == "/p/0" {
				time.Sleep(30 * time.Millisecond)
			}
			fmt.Fprintf(w, `<html><body>
<span id="productTitle">Product %s</span>
<span id="priceblock_ourprice">$10.00</span>
</body></html>`, r.URL.Path)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newEngine(t *testing.T, store Storage) *Engine {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Fetcher.RateLimit = 0
	cfg.Engine.Concurrency = 4

	f, err := fetcher.NewHTTPFetcher(cfg, testLogger)
	if err != nil {
		t.Fatal(err)
	}

	e := New(cfg, testLogger)
	e.SetFetcher(f)
	e.SetExtractor(extract.New(extract.DefaultFieldSet(), testLogger))
	e.SetStorage(store)
	t.Cleanup(func() { e.Close() })
	return e
}

type memStorage struct {
	mu      sync.Mutex
	batches []*types.Batch
	err     error
}

func (m *memStorage) Store(b *types.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, b)
	return m.err
}

func (m *memStorage) Close() error { return nil }

func TestRunKeepsInputOrder(t *testing.T) {
	srv := productServer(t)
	store := &memStorage{}
	e := newEngine(t, store)

	urls := []string{srv.URL + "/p/0", srv.URL + "/p/1", srv.URL + "/p/2"}
	batch, err := e.Run(context.Background(), urls)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if batch.Len() != 3 {
		t.Fatalf("expected 3 records, got %d", batch.Len())
	}
	for i, u := range urls {
		rec := batch.Record(i)
		if rec.URL() != u {
			t.Errorf("record %d: expected url %s, got %s", i, u, rec.URL())
		}
		if want := fmt.Sprintf("Product /p/%d", i); rec.Value("title") != want {
			t.Errorf("record %d: expected title %q, got %q", i, want, rec.Value("title"))
		}
	}
	if len(store.batches) != 1 || store.batches[0] != batch {
		t.Error("batch should be handed to storage once")
	}
	if e.State() != StateStopped {
		t.Errorf("expected stopped state, got %s", e.State())
	}
}

func TestRunTurnsFailuresIntoInvalidRecords(t *testing.T) {
	srv := productServer(t)
	e := newEngine(t, nil)

	urls := []string{
		srv.URL + "/p/1",
		srv.URL + "/broken",
		"not a url",
		srv.URL + "/empty",
		srv.URL + "/p/2",
	}
	batch, err := e.Run(context.Background(), urls)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if batch.Len() != len(urls) {
		t.Fatalf("expected %d records, got %d", len(urls), batch.Len())
	}
	if batch.InvalidPages() != 3 {
		t.Errorf("expected 3 invalid pages, got %d", batch.InvalidPages())
	}
	for _, i := range []int{1, 2, 3} {
		if !batch.Record(i).Invalid() {
			t.Errorf("record %d should be invalid", i)
		}
	}
	if batch.Record(4).Value("price") != "$10.00" {
		t.Errorf("record after failures should extract normally, got %q", batch.Record(4).Value("price"))
	}

	stats := e.Stats()
	if stats.RequestsFailed.Load() != 1 || stats.PagesInvalid.Load() != 3 {
		t.Errorf("unexpected stats %v", stats.Snapshot())
	}
}

func TestRunLogsFailureContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("   "))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg := config.DefaultConfig()
	cfg.Fetcher.RateLimit = 0
	f, err := fetcher.NewHTTPFetcher(cfg, logger)
	if err != nil {
		t.Fatal(err)
	}
	e := New(cfg, logger)
	e.SetFetcher(f)
	e.SetExtractor(extract.New(extract.DefaultFieldSet(), testLogger))
	defer e.Close()

	batch, err := e.Run(context.Background(), []string{"ftp://shop.test/x", srv.URL + "/manual.pdf"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if batch.InvalidPages() != 2 {
		t.Fatalf("expected 2 invalid pages, got %d", batch.InvalidPages())
	}

	out := buf.String()
	for _, want := range []string{
		`msg="parse failed"`,
		"index=1",
		"content_type=application/pdf",
		`msg="skipping invalid url"`,
		"index=0",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}

func TestRunReportsStorageError(t *testing.T) {
	srv := productServer(t)
	store := &memStorage{err: errors.New("disk full")}
	e := newEngine(t, store)

	batch, err := e.Run(context.Background(), []string{srv.URL + "/p/1"})
	if err == nil {
		t.Fatal("expected storage error")
	}
	if batch == nil || batch.Len() != 1 {
		t.Error("batch should still be returned")
	}
}

func TestRunCancelledContext(t *testing.T) {
	srv := productServer(t)
	e := newEngine(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch, err := e.Run(ctx, []string{srv.URL + "/p/1", srv.URL + "/p/2"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if batch.Len() != 2 || batch.InvalidPages() != 2 {
		t.Errorf("cancelled run should yield 2 invalid records, got len=%d invalid=%d", batch.Len(), batch.InvalidPages())
	}
}

func TestRunRequiresCollaborators(t *testing.T) {
	e := New(config.DefaultConfig(), testLogger)
	if _, err := e.Run(context.Background(), nil); err == nil {
		t.Error("expected error without fetcher and extractor")
	}
}

// TestLiveScrape fetches a real product page.
func TestLiveScrape(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping live test")
	}

	fields, err := extract.BuildFieldSet([]config.FieldConfig{
		{Name: "title", Strategies: []config.StrategyConfig{{Kind: "css", Selector: ".product_main h1"}}},
		{Name: "price", Strategies: []config.StrategyConfig{{Kind: "css", Selector: ".product_main .price_color"}}},
		{Name: "availability", Strategies: []config.StrategyConfig{{Kind: "css", Selector: ".product_main .availability"}}},
	})
	if err != nil {
		t.Fatal(err)
	}

	e := newEngine(t, nil)
	e.SetExtractor(extract.New(fields, testLogger))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	batch, err := e.Run(ctx, []string{"https://books.toscrape.com/catalogue/a-light-in-the-attic_1000/index.html"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	rec := batch.Record(0)
	t.Logf("record: %v", rec.Map())

	if rec.Value("title") != "A Light in the Attic" {
		t.Errorf("unexpected title %q", rec.Value("title"))
	}
	if rec.IsAbsent("price") {
		t.Error("price should be present")
	}
}
