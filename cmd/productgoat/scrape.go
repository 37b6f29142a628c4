package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/ProductGoat/internal/config"
	"github.com/IshaanNene/ProductGoat/internal/engine"
	"github.com/IshaanNene/ProductGoat/internal/extract"
	"github.com/IshaanNene/ProductGoat/internal/fetcher"
	"github.com/IshaanNene/ProductGoat/internal/observability"
	"github.com/IshaanNene/ProductGoat/internal/parser"
	"github.com/IshaanNene/ProductGoat/internal/storage"
	"github.com/IshaanNene/ProductGoat/internal/types"
)

var inputFile string

// scrapeCmd creates the "scrape" subcommand.
func scrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape [url...]",
		Short: "Fetch product pages and extract fields",
		Long: `Fetch each product URL, extract the configured fields and write one row per
URL, in input order. Pages that cannot be fetched produce an empty row.`,
		RunE: runScrape,
	}

	cmd.Flags().StringVarP(&inputFile, "input", "i", "", "file with one URL per line ('-' for stdin)")
	cmd.Flags().IntVarP(&concurrent, "concurrency", "n", 0, "number of concurrent fetches")
	cmd.Flags().Float64Var(&rateLimit, "rate", 0, "requests per second")
	cmd.Flags().StringVar(&userAgent, "user-agent", "", "User-Agent header")
	cmd.Flags().StringVar(&acceptLanguage, "accept-language", "", "Accept-Language header")
	cmd.Flags().BoolVar(&useBrowser, "browser", false, "render pages in a headless browser")
	addOutputFlags(cmd)

	return cmd
}

// runScrape executes the scrape command.
func runScrape(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging, os.Stderr)

	urls := append([]string(nil), args...)
	if inputFile != "" {
		more, err := readURLs(inputFile, cmd.InOrStdin())
		if err != nil {
			return err
		}
		urls = append(urls, more...)
	}
	if len(urls) == 0 {
		return errors.New("no URLs given; pass them as arguments or with --input")
	}

	fields, err := extract.BuildFieldSet(cfg.Extract.Fields)
	if err != nil {
		return err
	}

	logger.Info("starting scrape",
		"urls", len(urls),
		"fields", fields.Len(),
		"concurrency", cfg.Engine.Concurrency,
		"fetcher", cfg.Fetcher.Type,
		"output", cfg.Storage.OutputPath,
		"format", cfg.Storage.Type,
	)

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(logger)
		if err := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Warn("failed to start metrics server", "error", err)
		}
		defer metrics.Shutdown(context.Background())
	}

	opts := []extract.Option{extract.WithWorkers(cfg.Engine.ExtractWorkers)}
	if metrics != nil {
		opts = append(opts, extract.WithObserver(metrics))
	}

	f, err := fetcher.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		f.Close()
		return fmt.Errorf("create storage: %w", err)
	}

	eng := engine.New(cfg, logger)
	eng.SetFetcher(f)
	eng.SetExtractor(extract.New(fields, logger, opts...))
	eng.SetStorage(store)
	if metrics != nil {
		eng.SetFetchObserver(metrics)
	}
	defer func() {
		if err := eng.Close(); err != nil {
			logger.Error("close error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		if sig, ok := <-sigCh; ok {
			logger.Info("received signal, shutting down...", "signal", sig)
			eng.Stop()
		}
	}()

	start := time.Now()
	batch, err := eng.Run(cmd.Context(), urls)
	if batch != nil {
		printSummary(cmd.OutOrStdout(), batch, time.Since(start), cfg.Storage.OutputPath)
	}
	return err
}

// extractCmd creates the "extract" subcommand for saved HTML files.
func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <file.html...>",
		Short: "Extract fields from saved HTML files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runExtract,
	}
	addOutputFlags(cmd)
	return cmd
}

// runExtract runs the extractor over local files without fetching.
func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging, os.Stderr)

	fields, err := extract.BuildFieldSet(cfg.Extract.Fields)
	if err != nil {
		return err
	}

	pages := make([]*parser.Page, len(args))
	for i, path := range args {
		pages[i] = loadPage(path)
	}

	start := time.Now()
	batch := extract.New(fields, logger, extract.WithWorkers(cfg.Engine.ExtractWorkers)).Run(pages)

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return err
	}
	if err := store.Store(batch); err != nil {
		store.Close()
		return err
	}
	if err := store.Close(); err != nil {
		return err
	}

	printSummary(cmd.OutOrStdout(), batch, time.Since(start), cfg.Storage.OutputPath)
	return nil
}

func loadPage(path string) *parser.Page {
	body, err := os.ReadFile(path)
	if err != nil {
		return parser.InvalidPage(path, err)
	}
	page, err := parser.NewPage(path, body)
	if err != nil {
		return parser.InvalidPage(path, err)
	}
	return page
}

// readURLs reads one URL per line, skipping blanks and # comments.
func readURLs(path string, stdin io.Reader) ([]string, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	var urls []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return urls, nil
}

// printSummary reports per-field coverage for a batch.
func printSummary(w io.Writer, batch *types.Batch, elapsed time.Duration, output string) {
	fmt.Fprintf(w, "\n✅ %d pages processed in %s (%d invalid)\n",
		batch.Len(), elapsed.Round(time.Millisecond), batch.InvalidPages())

	for _, s := range batch.Summary() {
		fmt.Fprintf(w, "   %-14s %4d/%-4d %5.1f%%\n", s.Name, s.Present, batch.Len(), s.FillRatio*100)
	}
	if output != "" {
		fmt.Fprintf(w, "   Output:        %s\n", output)
	}
}

// fieldsCmd creates the "fields" subcommand listing the active field table.
func fieldsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fields",
		Short: "List the configured fields and their fallback chains",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fields, err := extract.BuildFieldSet(cfg.Extract.Fields)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for i, spec := range fields.Specs() {
				fc := cfg.Extract.Fields[i]
				norm := "collapse"
				if len(fc.Normalize) > 0 {
					norm = strings.Join(fc.Normalize, " | ")
				}
				fmt.Fprintf(w, "%s  (normalize: %s)\n", spec.Name, norm)
				for j, s := range spec.Strategies {
					fmt.Fprintf(w, "  %d. %s\n", j+1, s)
				}
			}
			fmt.Fprintf(w, "\nnormalizers: %s\n", strings.Join(extract.NormalizerNames(), ", "))
			return nil
		},
	}
}
