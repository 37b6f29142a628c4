// Package observability exposes scrape and extraction metrics in Prometheus
// format.
package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/IshaanNene/ProductGoat/internal/types"
)

const namespace = "productgoat"

// Metrics collects fetch and extraction metrics. It implements the engine's
// fetch observer and the extractor's record observer.
type Metrics struct {
	registry *prometheus.Registry

	fetchesTotal    *prometheus.CounterVec
	fetchDuration   prometheus.Histogram
	bytesDownloaded prometheus.Counter
	recordsTotal    *prometheus.CounterVec
	fieldsAbsent    *prometheus.CounterVec
	fieldsPresent   *prometheus.CounterVec

	server *http.Server
	logger *slog.Logger
}

// NewMetrics creates a Metrics instance with its own registry.
func NewMetrics(logger *slog.Logger) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Page fetches by outcome and HTTP status.",
		}, []string{"outcome", "status"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of successful page fetches.",
			Buckets:   prometheus.DefBuckets,
		}),
		bytesDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_downloaded_total",
			Help:      "Decoded response bytes downloaded.",
		}),
		recordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records produced, by validity.",
		}, []string{"status"}),
		fieldsAbsent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "field_absent_total",
			Help:      "Records where every strategy for the field failed.",
		}, []string{"field"}),
		fieldsPresent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "field_present_total",
			Help:      "Records where the field was extracted.",
		}, []string{"field"}),
		logger: logger.With("component", "metrics"),
	}

	m.registry.MustRegister(
		m.fetchesTotal,
		m.fetchDuration,
		m.bytesDownloaded,
		m.recordsTotal,
		m.fieldsAbsent,
		m.fieldsPresent,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveFetch records one fetch attempt.
func (m *Metrics) ObserveFetch(_ string, resp *types.Response, err error) {
	if err != nil {
		status := "none"
		var ferr *types.FetchError
		if errors.As(err, &ferr) && ferr.StatusCode > 0 {
			status = strconv.Itoa(ferr.StatusCode)
		}
		m.fetchesTotal.WithLabelValues("error", status).Inc()
		return
	}
	m.fetchesTotal.WithLabelValues("ok", strconv.Itoa(resp.StatusCode)).Inc()
	m.fetchDuration.Observe(resp.FetchDuration.Seconds())
	m.bytesDownloaded.Add(float64(len(resp.Body)))
}

// ObserveRecord records field coverage of one record.
func (m *Metrics) ObserveRecord(rec *types.Record) {
	if rec.Invalid() {
		m.recordsTotal.WithLabelValues("invalid").Inc()
	} else {
		m.recordsTotal.WithLabelValues("valid").Inc()
	}
	for _, f := range rec.Fields() {
		if rec.IsAbsent(f) {
			m.fieldsAbsent.WithLabelValues(f).Inc()
		} else {
			m.fieldsPresent.WithLabelValues(f).Inc()
		}
	}
}

// Handler returns the HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// StartServer starts the metrics HTTP server in the background.
func (m *Metrics) StartServer(port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	m.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.logger.Info("metrics server starting", "addr", addr, "path", path)

	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return nil
}

// Shutdown stops the metrics server if it was started.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}
