// Package observability exposes a running Crawler's stats as Prometheus
// text-exposition metrics, the way the teacher's own observability package
// hand-rolls it (no client_golang dependency in the pack for this repo's
// scale; the teacher never reaches for one either).
package observability

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/stats"
)

// Metrics renders a *stats.Stats snapshot (plus an optional live gauge
// source) in Prometheus text exposition format. It owns no counters of its
// own — stats.Stats is the single source of truth spec §7 names, so a
// status message callback and /metrics scrape can never disagree.
type Metrics struct {
	stats  *stats.Stats
	gauges func() map[string]int64 // optional: active_workers, queue_depth, ...
	logger *slog.Logger
}

// NewMetrics wires Metrics to a running crawl's Stats. gauges may be nil;
// when set it supplies point-in-time values (pool concurrency, queue
// depth) that don't belong on Stats itself.
func NewMetrics(s *stats.Stats, gauges func() map[string]int64, logger *slog.Logger) *Metrics {
	return &Metrics{
		stats:  s,
		gauges: gauges,
		logger: logger.With("component", "metrics"),
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	snap := m.stats.Snapshot()
	counters := []struct {
		name string
		help string
		val  int64
	}{
		{"crawler_requests_started_total", "Total request attempts started", snap.RequestsStarted},
		{"crawler_requests_finished_total", "Total requests permanently finished", snap.RequestsFinished},
		{"crawler_requests_failed_total", "Total requests permanently failed", snap.RequestsFailed},
		{"crawler_handler_duration_mean_ms", "Mean request-handler duration in milliseconds", snap.MeanHandlerDuration.Milliseconds()},
		{"crawler_elapsed_seconds", "Seconds since the crawl started", int64(snap.Elapsed.Seconds())},
	}
	for _, c := range counters {
		fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", c.name)
		fmt.Fprintf(w, "%s %d\n", c.name, c.val)
	}

	fmt.Fprintf(w, "# HELP crawler_retry_histogram Requests finished, bucketed by retry count\n")
	fmt.Fprintf(w, "# TYPE crawler_retry_histogram counter\n")
	for retries, count := range snap.RetryHistogram {
		fmt.Fprintf(w, "crawler_retry_histogram{retries=\"%d\"} %d\n", retries, count)
	}

	if m.gauges == nil {
		return
	}
	for name, val := range m.gauges() {
		metric := "crawler_" + name
		fmt.Fprintf(w, "# TYPE %s gauge\n", metric)
		fmt.Fprintf(w, "%s %d\n", metric, val)
	}
}

// StartServer starts the metrics HTTP server in the background.
func (m *Metrics) StartServer(port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	m.logger.Info("metrics server starting", "addr", addr, "path", path)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return nil
}
