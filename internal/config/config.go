package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for ProductGoat.
type Config struct {
	Engine  EngineConfig  `mapstructure:"engine"  yaml:"engine"`
	Fetcher FetcherConfig `mapstructure:"fetcher" yaml:"fetcher"`
	Extract ExtractConfig `mapstructure:"extract" yaml:"extract"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// EngineConfig controls the scrape runner.
type EngineConfig struct {
	Concurrency    int           `mapstructure:"concurrency"     yaml:"concurrency"`
	ExtractWorkers int           `mapstructure:"extract_workers" yaml:"extract_workers"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// FetcherConfig controls the page fetcher. The header set is handed to the
// fetcher at construction time.
type FetcherConfig struct {
	Type            string            `mapstructure:"type"             yaml:"type"`
	UserAgent       string            `mapstructure:"user_agent"       yaml:"user_agent"`
	AcceptLanguage  string            `mapstructure:"accept_language"  yaml:"accept_language"`
	Headers         map[string]string `mapstructure:"headers"          yaml:"headers,omitempty"`
	RateLimit       float64           `mapstructure:"rate_limit"       yaml:"rate_limit"`
	Burst           int               `mapstructure:"burst"            yaml:"burst"`
	FollowRedirects bool              `mapstructure:"follow_redirects" yaml:"follow_redirects"`
	MaxRedirects    int               `mapstructure:"max_redirects"    yaml:"max_redirects"`
	MaxBodySize     int64             `mapstructure:"max_body_size"    yaml:"max_body_size"`
	TLSInsecure     bool              `mapstructure:"tls_insecure"     yaml:"tls_insecure"`
	IdleConnTimeout time.Duration     `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int               `mapstructure:"max_idle_conns"   yaml:"max_idle_conns"`
}

// ExtractConfig holds the field table. An empty list selects the built-in
// product fields.
type ExtractConfig struct {
	Fields []FieldConfig `mapstructure:"fields" yaml:"fields"`
}

// FieldConfig defines one extractable field and its ordered fallback chain.
type FieldConfig struct {
	Name       string           `mapstructure:"name"       yaml:"name"`
	Normalize  []string         `mapstructure:"normalize"  yaml:"normalize,omitempty"`
	Strategies []StrategyConfig `mapstructure:"strategies" yaml:"strategies"`
}

// StrategyConfig defines one (locator, accessor) pair.
//
// Kind is one of id, tag, css, xpath, jsonld, regex. For id the Value is the
// element id; for tag, Tag/Attr/Value form the predicate; for css, xpath and
// regex the Selector holds the expression; for jsonld it holds a dotted path.
// Accessor is text (default), string or attr:<name>.
type StrategyConfig struct {
	Kind     string `mapstructure:"kind"     yaml:"kind"`
	Selector string `mapstructure:"selector" yaml:"selector,omitempty"`
	Tag      string `mapstructure:"tag"      yaml:"tag,omitempty"`
	Attr     string `mapstructure:"attr"     yaml:"attr,omitempty"`
	Value    string `mapstructure:"value"    yaml:"value,omitempty"`
	Accessor string `mapstructure:"accessor" yaml:"accessor,omitempty"`
}

// StorageConfig controls export.
type StorageConfig struct {
	Type       string `mapstructure:"type"        yaml:"type"`
	OutputPath string `mapstructure:"output_path" yaml:"output_path"`
	IncludeURL bool   `mapstructure:"include_url" yaml:"include_url"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Concurrency:    4,
			ExtractWorkers: 4,
			RequestTimeout: 30 * time.Second,
		},
		Fetcher: FetcherConfig{
			Type:            "http",
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			AcceptLanguage:  "en-US,en;q=0.9",
			RateLimit:       1,
			Burst:           1,
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    100,
		},
		Extract: ExtractConfig{
			Fields: DefaultProductFields(),
		},
		Storage: StorageConfig{
			Type:       "csv",
			OutputPath: "./output/products.csv",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

// DefaultProductFields is the built-in field table for retail product
// pages. Each chain starts with the classic storefront ids and falls back to
// layout variants, embedded JSON-LD and page metadata.
func DefaultProductFields() []FieldConfig {
	return []FieldConfig{
		{
			Name:      "title",
			Normalize: []string{"unescape", "collapse"},
			Strategies: []StrategyConfig{
				{Kind: "id", Value: "productTitle"},
				{Kind: "css", Selector: "h1[itemprop=name], h1.product-title, h1.product_title"},
				{Kind: "jsonld", Selector: "name"},
				{Kind: "tag", Tag: "meta", Attr: "property", Value: "og:title", Accessor: "attr:content"},
			},
		},
		{
			Name:      "price",
			Normalize: []string{"nfkc", "collapse"},
			Strategies: []StrategyConfig{
				{Kind: "id", Value: "priceblock_ourprice"},
				{Kind: "id", Value: "priceblock_dealprice"},
				{Kind: "css", Selector: "#corePrice_feature_div .a-offscreen"},
				{Kind: "tag", Tag: "meta", Attr: "itemprop", Value: "price", Accessor: "attr:content"},
				{Kind: "jsonld", Selector: "offers.price"},
			},
		},
		{
			Name:      "rating",
			Normalize: []string{"first_number"},
			Strategies: []StrategyConfig{
				{Kind: "css", Selector: "i.a-icon-star span.a-icon-alt"},
				{Kind: "id", Value: "acrPopover", Accessor: "attr:title"},
				{Kind: "jsonld", Selector: "aggregateRating.ratingValue"},
			},
		},
		{
			Name:      "reviews",
			Normalize: []string{"digits"},
			Strategies: []StrategyConfig{
				{Kind: "id", Value: "acrCustomerReviewText", Accessor: "string"},
				{Kind: "jsonld", Selector: "aggregateRating.reviewCount"},
				{Kind: "tag", Tag: "meta", Attr: "itemprop", Value: "reviewCount", Accessor: "attr:content"},
			},
		},
		{
			Name:      "availability",
			Normalize: []string{"collapse"},
			Strategies: []StrategyConfig{
				{Kind: "xpath", Selector: "//div[@id='availability']/span"},
				{Kind: "id", Value: "availability"},
				{Kind: "css", Selector: ".availability, .stock"},
			},
		},
		{
			Name:      "brand",
			Normalize: []string{"brand"},
			Strategies: []StrategyConfig{
				{Kind: "id", Value: "bylineInfo"},
				{Kind: "jsonld", Selector: "brand.name"},
				{Kind: "jsonld", Selector: "brand"},
				{Kind: "tag", Tag: "meta", Attr: "property", Value: "product:brand", Accessor: "attr:content"},
			},
		},
	}
}
