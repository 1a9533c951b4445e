package integration

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/examples/httpfetcher"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/config"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/crawler"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/itemchain"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/requestqueue"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/storage"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/storageapi"
	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Quotes</title></head><body>
			<div class="quote"><span class="text">First quote</span><small class="author">A</small></div>
			<a href="/page/2">next</a>
		</body></html>`))
	})
	mux.HandleFunc("/page/2", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Quotes 2</title></head><body>
			<div class="quote"><span class="text">Second quote</span><small class="author">B</small></div>
		</body></html>`))
	})
	return httptest.NewServer(mux)
}

// TestLiveFetch exercises the HTTP fetcher against a real listening socket —
// the teacher's equivalent hit quotes.toscrape.com directly; this pins the
// same assertions to a local server so the suite doesn't depend on outbound
// network reachability.
func TestLiveFetch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	srv := testServer(t)
	defer srv.Close()

	cfg := config.DefaultConfig()
	f := httpfetcher.NewFetcher(cfg.Fetcher, 15*time.Second, nil, testLogger)
	defer f.Close()

	req, err := types.NewRequest(srv.URL)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	resp, err := f.Fetch(ctx, req)
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}

	t.Logf("Status: %d", resp.StatusCode)
	t.Logf("Content-Type: %s", resp.ContentType)
	t.Logf("Body size: %d bytes", len(resp.Body))

	if resp.StatusCode != 200 {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if len(resp.Body) < 50 {
		t.Error("body too short")
	}
}

// TestLiveParse exercises goquery-based extraction against a fetched page,
// mirroring the teacher's CSS-parser integration check.
func TestLiveParse(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	srv := testServer(t)
	defer srv.Close()

	cfg := config.DefaultConfig()
	f := httpfetcher.NewFetcher(cfg.Fetcher, 15*time.Second, nil, testLogger)
	defer f.Close()

	req, _ := types.NewRequest(srv.URL)
	resp, err := f.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	doc, err := resp.Document()
	if err != nil {
		t.Fatalf("parse document: %v", err)
	}

	title := doc.Find("title").Text()
	if title != "Quotes" {
		t.Errorf("expected title %q, got %q", "Quotes", title)
	}

	quote := doc.Find(".quote .text").Text()
	if quote != "First quote" {
		t.Errorf("expected quote text %q, got %q", "First quote", quote)
	}

	links := 0
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) { links++ })
	if links < 1 {
		t.Error("expected at least one link on the seed page")
	}
}

// TestLiveCrawl runs a full crawl cycle through internal/crawler end to end:
// fetcher, request queue, request handler, and itemchain dataset writer,
// matching the scope of the teacher's engine-level integration test.
func TestLiveCrawl(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	srv := testServer(t)
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.Crawler.MaxCrawlDepth = 2
	cfg.Crawler.MaxConcurrency = 2
	cfg.Crawler.SameDomainDelaySecs = 0
	cfg.Storage.Type = "jsonl"
	cfg.Storage.OutputPath = t.TempDir()

	dataset, err := storage.NewFileStorage(cfg.Storage.Type, cfg.Storage.OutputPath, testLogger)
	if err != nil {
		t.Fatalf("new file storage: %v", err)
	}
	chain := itemchain.New(dataset, 10, testLogger)
	chain.Use(&itemchain.TrimMiddleware{})

	fetcher := httpfetcher.NewFetcher(cfg.Fetcher, 15*time.Second, nil, testLogger)
	defer fetcher.Close()

	opts := crawler.OptionsFromConfig(cfg.Crawler)
	opts.ID = "integration-crawl"
	opts.RequestHandler = func(cc *types.Context) error {
		doc, err := cc.Response.Document()
		if err != nil {
			return err
		}
		item := types.NewItem(cc.Request.URLString())
		item.Set("title", doc.Find("title").Text())
		if err := cc.PushData(item); err != nil {
			return err
		}

		var hrefs []string
		doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			if href, ok := s.Attr("href"); ok {
				hrefs = append(hrefs, href)
			}
		})
		if len(hrefs) > 0 {
			if err := cc.EnqueueLinks(hrefs); err != nil {
				return err
			}
		}
		return nil
	}

	storageClient := storageapi.NewFileStorageClient(t.TempDir(), testLogger)
	manager, err := requestqueue.NewManager(nil, requestqueue.NewQueue())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	requests := storageapi.NewDefaultRequestProvider("integration", manager, t.TempDir())

	crw, err := crawler.New(opts, requests, storageClient, fetcher, chain.Push, testLogger)
	if err != nil {
		t.Fatalf("new crawler: %v", err)
	}

	seed, err := types.NewRequest(srv.URL)
	if err != nil {
		t.Fatalf("new seed request: %v", err)
	}
	if err := crw.AddRequests(context.Background(), []*types.Request{seed}); err != nil {
		t.Fatalf("add requests: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := crw.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := chain.Close(); err != nil {
		t.Fatalf("close chain: %v", err)
	}

	snap := crw.Stats().Snapshot()
	t.Logf("Results: %+v", snap)

	if snap.RequestsFinished < 1 {
		t.Error("expected at least 1 request finished")
	}

	entries, err := os.ReadDir(cfg.Storage.OutputPath)
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	var found bool
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".jsonl") {
			found = true
		}
	}
	if !found {
		t.Error("expected a jsonl output file")
	}
}
