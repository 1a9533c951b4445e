package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/cobra"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/examples/httpfetcher"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/config"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/crawler"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/itemchain"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/observability"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/requestqueue"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/storage"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/storageapi"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/types"
)

var (
	cfgFile       string
	verbose       bool
	outputPath    string
	outputType    string
	depth         int
	minConcurrent int
	maxConcurrent int
	delay         string
	userAgent     string
	maxRequests   int
	maxRetries    int
	sameDomain    bool
	metricsPort   int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "webstalk",
		Short: "WebStalk — a request-processing crawl scheduler",
		Long: `WebStalk drives a task pipeline of fetch/handle/retry attempts over a
request queue, with per-domain pacing, a rotating session pool, an
autoscaled worker pool, and a pluggable storage/event-bus boundary.`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(crawlCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// crawlCmd creates the "crawl" subcommand.
func crawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url...]",
		Short: "Run a crawl from one or more seed URLs",
		Long:  "Start a crawl from the given seed URL(s), following links and recording each page's title, status code, content type and link count into the configured dataset.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runCrawl,
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "./output", "output directory or file path")
	cmd.Flags().StringVarP(&outputType, "format", "f", "json", "output format: json, jsonl, csv")
	cmd.Flags().IntVarP(&depth, "depth", "d", 3, "maximum crawl depth")
	cmd.Flags().IntVar(&minConcurrent, "min-concurrency", 0, "minimum concurrent workers (0 = config default)")
	cmd.Flags().IntVarP(&maxConcurrent, "max-concurrency", "n", 0, "maximum concurrent workers (0 = config default)")
	cmd.Flags().StringVar(&delay, "same-domain-delay", "", "minimum delay between requests to the same domain, e.g. 1s")
	cmd.Flags().StringVar(&userAgent, "user-agent", "", "custom User-Agent string (disables rotation)")
	cmd.Flags().IntVarP(&maxRequests, "max-requests", "m", 0, "maximum total requests for this crawl (0 = unlimited)")
	cmd.Flags().IntVar(&maxRetries, "max-retries", -1, "max retries per failed request (-1 = use config default)")
	cmd.Flags().BoolVar(&sameDomain, "same-domain", false, "restrict discovered links to the seed's registrable domain")
	cmd.Flags().IntVar(&metricsPort, "metrics-port", 0, "serve Prometheus metrics on this port (0 = disabled)")

	return cmd
}

// runCrawl executes the crawl command.
func runCrawl(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for _, rawURL := range args {
		if err := config.ValidateURL(rawURL); err != nil {
			return fmt.Errorf("invalid URL %q: %w", rawURL, err)
		}
	}

	logger.Info("starting crawl",
		"seeds", args,
		"max_depth", cfg.Crawler.MaxCrawlDepth,
		"min_concurrency", cfg.Crawler.MinConcurrency,
		"max_concurrency", cfg.Crawler.MaxConcurrency,
		"output", cfg.Storage.OutputPath,
		"format", cfg.Storage.Type,
	)

	dataset, err := storage.NewFileStorage(cfg.Storage.Type, cfg.Storage.OutputPath, logger)
	if err != nil {
		return fmt.Errorf("create dataset: %w", err)
	}
	chain := itemchain.New(dataset, cfg.Storage.BatchSize, logger)
	chain.Use(&itemchain.RequiredFieldsMiddleware{Fields: []string{"title"}, MinDepth: 1}).
		Use(itemchain.NewFingerprintMiddleware())

	var userAgents []string
	if userAgent != "" {
		userAgents = []string{userAgent}
	}
	fetcher := httpfetcher.NewFetcher(cfg.Fetcher, time.Duration(cfg.Crawler.RequestHandlerTimeoutSecs)*time.Second, userAgents, logger)
	defer fetcher.Close()

	enqueueStrategy := types.EnqueueStrategyAll
	if sameDomain {
		enqueueStrategy = types.EnqueueStrategySameDomain
	}

	requestHandler := defaultRequestHandler(chain, enqueueStrategy, logger)

	opts := crawler.OptionsFromConfig(cfg.Crawler)
	opts.ID = "cli-crawl"
	opts.RequestHandler = requestHandler
	opts.StatusMessageCallback = func(message string) {
		logger.Info("status", "message", message)
	}

	storageClient := storageapi.NewFileStorageClient(config.StorageDir(), logger)

	manager, err := requestqueue.NewManager(nil, requestqueue.NewQueue())
	if err != nil {
		return fmt.Errorf("create request manager: %w", err)
	}
	requests := storageapi.NewDefaultRequestProvider("default", manager, config.StorageDir())

	crw, err := crawler.New(opts, requests, storageClient, fetcher, chain.Push, logger)
	if err != nil {
		return fmt.Errorf("create crawler: %w", err)
	}

	if cfg.Metrics.Enabled || metricsPort > 0 {
		port := cfg.Metrics.Port
		if metricsPort > 0 {
			port = metricsPort
		}
		metrics := observability.NewMetrics(crw.Stats(), nil, logger)
		if err := metrics.StartServer(port, cfg.Metrics.Path); err != nil {
			logger.Warn("failed to start metrics server", "error", err)
		}
	}

	seeds := make([]*types.Request, 0, len(args))
	for _, rawURL := range args {
		req, err := types.NewRequest(rawURL)
		if err != nil {
			logger.Warn("seed skipped", "url", rawURL, "reason", err)
			continue
		}
		req.EnqueueStrategy = enqueueStrategy
		seeds = append(seeds, req)
	}
	ctx := context.Background()
	if err := crw.AddRequests(ctx, seeds); err != nil {
		return err
	}

	start := time.Now()
	runErr := crw.Run(ctx)
	elapsed := time.Since(start)

	if closeErr := chain.Close(); closeErr != nil {
		logger.Warn("dataset close failed", "error", closeErr)
	}

	snap := crw.Stats().Snapshot()
	fmt.Printf("\nCrawl finished in %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("  Requests:  %d started, %d finished, %d failed\n", snap.RequestsStarted, snap.RequestsFinished, snap.RequestsFailed)
	fmt.Printf("  Output:    %s\n", cfg.Storage.OutputPath)
	if len(snap.TopErrors) > 0 {
		fmt.Printf("  Top errors:\n")
		for _, e := range snap.TopErrors {
			fmt.Printf("    %s (%d)\n", e.Fingerprint, e.Count)
		}
	}

	return runErr
}

// defaultRequestHandler records a page's <title>, status code, content type
// and link count in an Item, then enqueues every absolute link found on the
// page. A
// real deployment supplies its own RequestHandler; this is the crawl
// command's built-in handler for a bare `webstalk crawl <url>` invocation.
func defaultRequestHandler(chain *itemchain.Chain, strategy types.EnqueueStrategy, logger *slog.Logger) func(*types.Context) error {
	return func(cc *types.Context) error {
		doc, err := cc.Response.Document()
		if err != nil {
			return fmt.Errorf("parse document: %w", err)
		}

		item := types.NewItem(cc.Request.URLString())
		item.SpiderName = "webstalk-crawl"
		item.Depth = cc.Request.CrawlDepth
		item.Set("title", strings.TrimSpace(doc.Find("title").First().Text()))
		item.Set("status_code", cc.Response.StatusCode)
		item.Set("content_type", cc.Response.ContentType)

		var links []string
		doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
			href, ok := sel.Attr("href")
			if !ok {
				return
			}
			base := cc.Request.LoadedURL
			if base == nil {
				base = cc.Request.URL
			}
			abs, err := base.Parse(href)
			if err != nil {
				return
			}
			if abs.Scheme != "http" && abs.Scheme != "https" {
				return
			}
			links = append(links, abs.String())
		})
		item.Set("link_count", len(links))

		if err := cc.PushData(item); err != nil {
			return fmt.Errorf("push item: %w", err)
		}
		if len(links) > 0 {
			if err := cc.EnqueueLinks(links, types.WithStrategy(strategy)); err != nil {
				cc.Log.Warn("enqueue links failed", "error", err)
			}
		}
		return nil
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("WebStalk %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Crawler:\n")
			fmt.Printf("  Min/Max Concurrency:    %d / %d\n", cfg.Crawler.MinConcurrency, cfg.Crawler.MaxConcurrency)
			fmt.Printf("  Max Crawl Depth:        %d\n", cfg.Crawler.MaxCrawlDepth)
			fmt.Printf("  Request Handler Timeout: %ds\n", cfg.Crawler.RequestHandlerTimeoutSecs)
			fmt.Printf("  Same Domain Delay:      %ds\n", cfg.Crawler.SameDomainDelaySecs)
			fmt.Printf("  Respect robots.txt:     %v\n", cfg.Crawler.RespectRobotsTxtFile)
			fmt.Printf("  Max Retries:            %d\n", cfg.Crawler.MaxRequestRetries)
			fmt.Printf("  Use Session Pool:       %v\n", cfg.Crawler.UseSessionPool)
			fmt.Printf("\nFetcher:\n")
			fmt.Printf("  Type:              %s\n", cfg.Fetcher.Type)
			fmt.Printf("  Follow Redirects:  %v\n", cfg.Fetcher.FollowRedirects)
			fmt.Printf("  Max Body Size:     %d bytes\n", cfg.Fetcher.MaxBodySize)
			fmt.Printf("\nProxy:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Proxy.Enabled)
			fmt.Printf("  Rotation:          %s\n", cfg.Proxy.Rotation)
			fmt.Printf("  Count:             %d\n", len(cfg.Proxy.URLs))
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Type:              %s\n", cfg.Storage.Type)
			fmt.Printf("  Output Path:       %s\n", cfg.Storage.OutputPath)
			fmt.Printf("  Storage Dir (KV):  %s\n", config.StorageDir())
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Port:              %d\n", cfg.Metrics.Port)
			return nil
		},
	}
}

// setupLogger creates a structured logger.
func setupLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose || config.VerboseLog() {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cfg *config.Config) {
	cfg.Crawler.MaxCrawlDepth = depth
	if minConcurrent > 0 {
		cfg.Crawler.MinConcurrency = minConcurrent
	}
	if maxConcurrent > 0 {
		cfg.Crawler.MaxConcurrency = maxConcurrent
	}
	if delay != "" {
		if d, err := time.ParseDuration(delay); err == nil {
			cfg.Crawler.SameDomainDelaySecs = int(d.Seconds())
		}
	}
	if outputPath != "" {
		cfg.Storage.OutputPath = outputPath
	}
	if outputType != "" {
		cfg.Storage.Type = strings.ToLower(outputType)
	}
	if maxRequests > 0 {
		cfg.Crawler.MaxRequestsPerCrawl = maxRequests
	}
	if maxRetries >= 0 {
		cfg.Crawler.MaxRequestRetries = maxRetries
	}
}

