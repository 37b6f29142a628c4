package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for invalid values. Field definitions
// are checked in depth when the extractor compiles them.
func Validate(cfg *Config) error {
	if cfg.Engine.Concurrency < 1 {
		return fmt.Errorf("engine.concurrency must be >= 1, got %d", cfg.Engine.Concurrency)
	}
	if cfg.Engine.Concurrency > 256 {
		return fmt.Errorf("engine.concurrency must be <= 256, got %d", cfg.Engine.Concurrency)
	}
	if cfg.Engine.ExtractWorkers < 1 {
		return fmt.Errorf("engine.extract_workers must be >= 1, got %d", cfg.Engine.ExtractWorkers)
	}
	if cfg.Engine.RequestTimeout <= 0 {
		return fmt.Errorf("engine.request_timeout must be > 0")
	}

	if cfg.Fetcher.Type != "http" && cfg.Fetcher.Type != "browser" {
		return fmt.Errorf("fetcher.type must be 'http' or 'browser', got %q", cfg.Fetcher.Type)
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}
	if cfg.Fetcher.RateLimit < 0 {
		return fmt.Errorf("fetcher.rate_limit must be >= 0 (0 disables limiting)")
	}
	if cfg.Fetcher.RateLimit > 0 && cfg.Fetcher.Burst < 1 {
		return fmt.Errorf("fetcher.burst must be >= 1 when rate_limit is set")
	}

	if len(cfg.Extract.Fields) == 0 {
		return fmt.Errorf("extract.fields must define at least one field")
	}
	for i, f := range cfg.Extract.Fields {
		if f.Name == "" {
			return fmt.Errorf("extract.fields[%d] has no name", i)
		}
		if len(f.Strategies) == 0 {
			return fmt.Errorf("extract.fields[%d] (%s) has no strategies", i, f.Name)
		}
	}

	validStorageTypes := map[string]bool{
		"json": true, "jsonl": true, "csv": true, "xlsx": true,
	}
	if !validStorageTypes[cfg.Storage.Type] {
		return fmt.Errorf("storage.type %q is not supported (valid: csv, json, jsonl, xlsx)", cfg.Storage.Type)
	}
	if cfg.Storage.OutputPath == "" {
		return fmt.Errorf("storage.output_path must be set")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// ValidateURL checks if a URL string can be fetched.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
