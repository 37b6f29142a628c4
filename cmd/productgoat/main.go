package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/ProductGoat/internal/config"
	"github.com/IshaanNene/ProductGoat/internal/storage"
)

var (
	cfgFile        string
	verbose        bool
	outputPath     string
	outputType     string
	includeURL     bool
	concurrent     int
	rateLimit      float64
	userAgent      string
	acceptLanguage string
	useBrowser     bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "productgoat",
		Short: "ProductGoat — product page field extractor",
		Long: `ProductGoat fetches retail product pages and extracts a fixed set of fields
(title, price, rating, reviews, availability, brand) into CSV, JSON or XLSX.

Every field has an ordered chain of fallback strategies: element ids, CSS,
XPath, meta tags, embedded JSON-LD and regular expressions. The first strategy
that yields a value wins; a field whose chain is exhausted is left empty.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(scrapeCmd())
	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(fieldsCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// addOutputFlags registers the export flags shared by scrape and extract.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (format inferred from extension)")
	cmd.Flags().StringVarP(&outputType, "format", "f", "", "output format: csv, json, jsonl, xlsx")
	cmd.Flags().BoolVar(&includeURL, "include-url", false, "add a leading url column")
}

// loadConfig loads, overrides and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	applyCLIOverrides(cfg)

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cfg *config.Config) {
	if concurrent > 0 {
		cfg.Engine.Concurrency = concurrent
	}
	if rateLimit > 0 {
		cfg.Fetcher.RateLimit = rateLimit
	}
	if userAgent != "" {
		cfg.Fetcher.UserAgent = userAgent
	}
	if acceptLanguage != "" {
		cfg.Fetcher.AcceptLanguage = acceptLanguage
	}
	if useBrowser {
		cfg.Fetcher.Type = "browser"
	}
	if outputPath != "" {
		cfg.Storage.OutputPath = outputPath
		if outputType == "" {
			if t, ok := storage.TypeFromPath(outputPath); ok {
				cfg.Storage.Type = t
			}
		}
	}
	if outputType != "" {
		cfg.Storage.Type = strings.ToLower(outputType)
	}
	if includeURL {
		cfg.Storage.IncludeURL = true
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
}

// setupLogger creates a structured logger from the logging config.
func setupLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ProductGoat %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand, which prints the effective
// configuration as YAML.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			out, err := config.Dump(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
