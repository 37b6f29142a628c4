package observability

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/IshaanNene/ProductGoat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func counter(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if matches(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matches(metric *dto.Metric, labels map[string]string) bool {
	for _, lp := range metric.GetLabel() {
		if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
			return false
		}
	}
	return true
}

func TestObserveRecord(t *testing.T) {
	m := NewMetrics(testLogger)
	schema, _ := types.NewSchema([]string{"title", "price"})

	m.ObserveRecord(types.NewRecord("u1", schema, []types.Result{types.Found("A"), types.Absent}))
	m.ObserveRecord(types.InvalidRecord("u2", schema))

	if got := counter(t, m, "productgoat_field_absent_total", map[string]string{"field": "price"}); got != 2 {
		t.Errorf("expected 2 absent prices, got %v", got)
	}
	if got := counter(t, m, "productgoat_field_present_total", map[string]string{"field": "title"}); got != 1 {
		t.Errorf("expected 1 present title, got %v", got)
	}
	if got := counter(t, m, "productgoat_records_total", map[string]string{"status": "invalid"}); got != 1 {
		t.Errorf("expected 1 invalid record, got %v", got)
	}
}

func TestObserveFetch(t *testing.T) {
	m := NewMetrics(testLogger)

	m.ObserveFetch("u", &types.Response{StatusCode: 200, Body: []byte("abcd"), FetchDuration: time.Millisecond}, nil)
	m.ObserveFetch("u", nil, &types.FetchError{URL: "u", StatusCode: 503, Err: errors.New("busy")})
	m.ObserveFetch("u", nil, errors.New("dial"))

	if got := counter(t, m, "productgoat_fetches_total", map[string]string{"outcome": "error", "status": "503"}); got != 1 {
		t.Errorf("expected 1 503 error, got %v", got)
	}
	if got := counter(t, m, "productgoat_fetches_total", map[string]string{"outcome": "error", "status": "none"}); got != 1 {
		t.Errorf("expected 1 network error, got %v", got)
	}
	if got := counter(t, m, "productgoat_bytes_downloaded_total", nil); got != 4 {
		t.Errorf("expected 4 bytes, got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewMetrics(testLogger)
	schema, _ := types.NewSchema([]string{"title"})
	m.ObserveRecord(types.NewRecord("u", schema, []types.Result{types.Absent}))

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), `productgoat_field_absent_total{field="title"} 1`) {
		t.Errorf("expected absent counter in exposition, got:\n%s", body)
	}
}
