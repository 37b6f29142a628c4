package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestDefaultProductFields(t *testing.T) {
	want := []string{"title", "price", "rating", "reviews", "availability", "brand"}
	fields := DefaultProductFields()
	if len(fields) != len(want) {
		t.Fatalf("expected %d fields, got %d", len(want), len(fields))
	}
	for i, f := range fields {
		if f.Name != want[i] {
			t.Errorf("field %d: expected %q, got %q", i, want[i], f.Name)
		}
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		substr string
	}{
		{"zero concurrency", func(c *Config) { c.Engine.Concurrency = 0 }, "engine.concurrency"},
		{"bad fetcher", func(c *Config) { c.Fetcher.Type = "ftp" }, "fetcher.type"},
		{"no fields", func(c *Config) { c.Extract.Fields = nil }, "extract.fields"},
		{"field without strategies", func(c *Config) {
			c.Extract.Fields = []FieldConfig{{Name: "title"}}
		}, "no strategies"},
		{"bad storage", func(c *Config) { c.Storage.Type = "parquet" }, "storage.type"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"burst missing", func(c *Config) { c.Fetcher.Burst = 0 }, "fetcher.burst"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("expected error containing %q, got %v", tt.substr, err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "productgoat.yaml")
	yml := `
engine:
  concurrency: 8
  request_timeout: 5s
fetcher:
  accept_language: de-DE
storage:
  type: json
extract:
  fields:
    - name: title
      strategies:
        - kind: css
          selector: h1
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Engine.Concurrency != 8 {
		t.Errorf("expected concurrency 8, got %d", cfg.Engine.Concurrency)
	}
	if cfg.Engine.RequestTimeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %s", cfg.Engine.RequestTimeout)
	}
	if cfg.Fetcher.AcceptLanguage != "de-DE" {
		t.Errorf("expected de-DE, got %q", cfg.Fetcher.AcceptLanguage)
	}
	if cfg.Fetcher.UserAgent == "" {
		t.Error("default user agent should survive a partial file")
	}
	if len(cfg.Extract.Fields) != 1 || cfg.Extract.Fields[0].Name != "title" {
		t.Errorf("configured fields should replace defaults, got %+v", cfg.Extract.Fields)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestDumpRoundTripsFieldNames(t *testing.T) {
	out, err := Dump(DefaultConfig())
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if !strings.Contains(string(out), "name: availability") {
		t.Errorf("dump should list fields, got:\n%s", out)
	}
}

func TestValidateURL(t *testing.T) {
	if err := ValidateURL("https://shop.test/p/1"); err != nil {
		t.Errorf("expected valid URL, got %v", err)
	}
	for _, bad := range []string{"ftp://shop.test", "https://", "::"} {
		if err := ValidateURL(bad); err == nil {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}
