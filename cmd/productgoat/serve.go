package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/ProductGoat/internal/api"
	"github.com/IshaanNene/ProductGoat/internal/config"
	"github.com/IshaanNene/ProductGoat/internal/engine"
	"github.com/IshaanNene/ProductGoat/internal/extract"
	"github.com/IshaanNene/ProductGoat/internal/fetcher"
	"github.com/IshaanNene/ProductGoat/internal/observability"
	"github.com/IshaanNene/ProductGoat/internal/types"
)

var (
	servePort    int
	serveMaxURLs int
)

// serveCmd creates the "serve" subcommand exposing extraction over HTTP.
func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve field extraction over a JSON HTTP API",
		Long: `Start an HTTP server with the following endpoints:

  POST /api/extract   extract fields from posted HTML
  POST /api/scrape    fetch {"urls": [...]} and extract each page
  GET  /api/fields    list the active fields and their strategies
  GET  /api/stats     request counters
  GET  /api/health    liveness`,
		RunE: runServe,
	}

	cmd.Flags().IntVarP(&servePort, "port", "p", 8080, "listen port")
	cmd.Flags().IntVar(&serveMaxURLs, "max-urls", 100, "maximum URLs per scrape request")
	cmd.Flags().IntVarP(&concurrent, "concurrency", "n", 0, "number of concurrent fetches per request")
	cmd.Flags().Float64Var(&rateLimit, "rate", 0, "requests per second")
	cmd.Flags().BoolVar(&useBrowser, "browser", false, "render pages in a headless browser")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging, os.Stderr)

	fields, err := extract.BuildFieldSet(cfg.Extract.Fields)
	if err != nil {
		return err
	}

	var metrics *observability.Metrics
	opts := []extract.Option{extract.WithWorkers(cfg.Engine.ExtractWorkers)}
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(logger)
		if err := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Warn("failed to start metrics server", "error", err)
		}
		defer metrics.Shutdown(context.Background())
		opts = append(opts, extract.WithObserver(metrics))
	}
	extractor := extract.New(fields, logger, opts...)

	f, err := fetcher.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	defer f.Close()

	srv := api.NewServer(servePort, extractor, logger)
	srv.SetMaxURLs(serveMaxURLs)
	srv.SetScraper(scrapeFunc(cfg, f, extractor, metrics, logger))
	if err := srv.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// scrapeFunc runs each request on a fresh engine. The fetcher is shared.
func scrapeFunc(cfg *config.Config, f fetcher.Fetcher, x *extract.Extractor, metrics *observability.Metrics, logger *slog.Logger) api.ScrapeFunc {
	return func(ctx context.Context, urls []string) (*types.Batch, error) {
		eng := engine.New(cfg, logger)
		eng.SetFetcher(f)
		eng.SetExtractor(x)
		if metrics != nil {
			eng.SetFetchObserver(metrics)
		}
		return eng.Run(ctx, urls)
	}
}
