package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/IshaanNene/ProductGoat/internal/config"
	"github.com/IshaanNene/ProductGoat/internal/types"
)

func TestReadURLs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	content := "# products\nhttps://shop.test/1\n\n  https://shop.test/2  \n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	urls, err := readURLs(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(urls, " ") != "https://shop.test/1 https://shop.test/2" {
		t.Errorf("unexpected urls %v", urls)
	}

	urls, err = readURLs("-", strings.NewReader("https://shop.test/3\n"))
	if err != nil || len(urls) != 1 {
		t.Errorf("stdin: got %v, %v", urls, err)
	}
}

func TestApplyCLIOverridesInfersFormat(t *testing.T) {
	t.Cleanup(func() { outputPath, outputType, useBrowser = "", "", false })

	outputPath = "out/products.xlsx"
	useBrowser = true
	cfg := config.DefaultConfig()
	applyCLIOverrides(cfg)

	if cfg.Storage.Type != "xlsx" || cfg.Storage.OutputPath != "out/products.xlsx" {
		t.Errorf("expected xlsx output, got %s %s", cfg.Storage.Type, cfg.Storage.OutputPath)
	}
	if cfg.Fetcher.Type != "browser" {
		t.Errorf("expected browser fetcher, got %s", cfg.Fetcher.Type)
	}

	outputType = "JSON"
	applyCLIOverrides(cfg)
	if cfg.Storage.Type != "json" {
		t.Errorf("explicit format should win, got %s", cfg.Storage.Type)
	}
}

func TestPrintSummary(t *testing.T) {
	schema, _ := types.NewSchema([]string{"title", "price"})
	batch := types.NewBatch(schema, []*types.Record{
		types.NewRecord("u1", schema, []types.Result{types.Found("A"), types.Found("$1")}),
		types.InvalidRecord("u2", schema),
	})

	var buf bytes.Buffer
	printSummary(&buf, batch, time.Second, "out.csv")

	out := buf.String()
	for _, want := range []string{"2 pages processed", "(1 invalid)", "title", "50.0%", "out.csv"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestSetupLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), `"msg":"shown"`) {
		t.Errorf("unexpected log output %s", buf.String())
	}
}
