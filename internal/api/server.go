// Package api serves field extraction over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/ProductGoat/internal/config"
	"github.com/IshaanNene/ProductGoat/internal/extract"
	"github.com/IshaanNene/ProductGoat/internal/parser"
	"github.com/IshaanNene/ProductGoat/internal/types"
)

const (
	maxHTMLBytes   = 10 * 1024 * 1024
	defaultMaxURLs = 100
)

// ScrapeFunc fetches and extracts a list of URLs.
type ScrapeFunc func(ctx context.Context, urls []string) (*types.Batch, error)

// Server exposes the extractor as a small JSON API.
type Server struct {
	mux       *http.ServeMux
	port      int
	extractor *extract.Extractor
	scrape    ScrapeFunc
	maxURLs   int
	logger    *slog.Logger
	server    *http.Server

	extracted atomic.Int64
	scraped   atomic.Int64
	invalid   atomic.Int64
}

// Field is one extracted value in API output.
type Field struct {
	Name    string `json:"name"`
	Value   string `json:"value"`
	Present bool   `json:"present"`
}

// Record is the API form of a record. Fields keep schema order.
type Record struct {
	URL     string  `json:"url"`
	Invalid bool    `json:"invalid,omitempty"`
	Fields  []Field `json:"fields"`
}

// BatchResponse is returned by the scrape endpoint.
type BatchResponse struct {
	Records []Record       `json:"records"`
	Invalid int            `json:"invalid"`
	Absent  map[string]int `json:"absent"`
}

// NewServer creates an API server around an extractor.
func NewServer(port int, extractor *extract.Extractor, logger *slog.Logger) *Server {
	s := &Server{
		mux:       http.NewServeMux(),
		port:      port,
		extractor: extractor,
		maxURLs:   defaultMaxURLs,
		logger:    logger.With("component", "api_server"),
	}

	s.registerRoutes()
	return s
}

// SetScraper enables the scrape endpoint.
func (s *Server) SetScraper(fn ScrapeFunc) {
	s.scrape = fn
}

// SetMaxURLs caps the number of URLs accepted per scrape request.
func (s *Server) SetMaxURLs(n int) {
	if n > 0 {
		s.maxURLs = n
	}
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start starts the API server in the background.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server starting", "addr", addr)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Shutdown stops the server if it was started.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/fields", s.handleFields)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)
	s.mux.HandleFunc("POST /api/extract", s.handleExtract)
	s.mux.HandleFunc("POST /api/scrape", s.handleScrape)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": config.Version,
	})
}

func (s *Server) handleFields(w http.ResponseWriter, r *http.Request) {
	type field struct {
		Name       string   `json:"name"`
		Strategies []string `json:"strategies"`
	}
	specs := s.extractor.Fields().Specs()
	out := make([]field, len(specs))
	for i, spec := range specs {
		out[i] = field{Name: spec.Name, Strategies: make([]string, len(spec.Strategies))}
		for j, st := range spec.Strategies {
			out[i].Strategies[j] = st.String()
		}
	}
	s.jsonResponse(w, http.StatusOK, out)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]int64{
		"pages_extracted": s.extracted.Load(),
		"urls_scraped":    s.scraped.Load(),
		"pages_invalid":   s.invalid.Load(),
	})
}

// handleExtract accepts either raw HTML (with the page URL in the "url" query
// parameter) or a JSON body of the form {"url": ..., "html": ...}.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxHTMLBytes))
	if err != nil {
		s.jsonResponse(w, http.StatusRequestEntityTooLarge, map[string]string{"error": err.Error()})
		return
	}

	url := r.URL.Query().Get("url")
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req struct {
			URL  string `json:"url"`
			HTML string `json:"html"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
			return
		}
		url, body = req.URL, []byte(req.HTML)
	}

	page, err := parser.NewPage(url, body)
	if err != nil {
		page = parser.InvalidPage(url, err)
	}
	rec := s.extractor.Extract(page)
	s.extracted.Add(1)
	if rec.Invalid() {
		s.invalid.Add(1)
	}
	s.jsonResponse(w, http.StatusOK, toRecord(rec))
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	if s.scrape == nil {
		s.jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"error": "scraping not enabled"})
		return
	}

	var req struct {
		URLs []string `json:"urls"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if len(req.URLs) == 0 {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "no urls"})
		return
	}
	if len(req.URLs) > s.maxURLs {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("too many urls: %d > %d", len(req.URLs), s.maxURLs),
		})
		return
	}

	batch, err := s.scrape(r.Context(), req.URLs)
	if batch == nil {
		if err == nil {
			err = errors.New("scrape returned no batch")
		}
		s.logger.Error("scrape failed", "error", err)
		s.jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		s.logger.Warn("scrape finished with error", "error", err)
	}

	s.scraped.Add(int64(batch.Len()))
	s.invalid.Add(int64(batch.InvalidPages()))

	resp := BatchResponse{
		Records: make([]Record, batch.Len()),
		Invalid: batch.InvalidPages(),
		Absent:  batch.AbsentCounts(),
	}
	for i, rec := range batch.Records() {
		resp.Records[i] = toRecord(rec)
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

func toRecord(rec *types.Record) Record {
	names := rec.Fields()
	out := Record{URL: rec.URL(), Invalid: rec.Invalid(), Fields: make([]Field, len(names))}
	for i, name := range names {
		out.Fields[i] = Field{Name: name, Value: rec.Value(name), Present: !rec.IsAbsent(name)}
	}
	return out
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug("write response", "error", err)
	}
}
