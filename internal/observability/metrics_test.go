package observability

import (
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/stats"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func TestServeHTTPRendersStatsSnapshot(t *testing.T) {
	s := stats.New()
	s.RecordStart()
	s.RecordFinished(1, 0)
	s.RecordFailed("boom")

	m := NewMetrics(s, nil, testLogger)
	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "crawler_requests_started_total 1") {
		t.Errorf("expected requests_started counter, got:\n%s", body)
	}
	if !strings.Contains(body, "crawler_requests_failed_total 1") {
		t.Errorf("expected requests_failed counter, got:\n%s", body)
	}
	if !strings.Contains(body, `crawler_retry_histogram{retries="1"} 1`) {
		t.Errorf("expected retry histogram entry, got:\n%s", body)
	}
}

func TestServeHTTPIncludesGauges(t *testing.T) {
	s := stats.New()
	m := NewMetrics(s, func() map[string]int64 {
		return map[string]int64{"active_workers": 4, "queue_depth": 12}
	}, testLogger)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "crawler_active_workers 4") {
		t.Errorf("expected active_workers gauge, got:\n%s", body)
	}
	if !strings.Contains(body, "crawler_queue_depth 12") {
		t.Errorf("expected queue_depth gauge, got:\n%s", body)
	}
}

func TestServeHTTPWithoutGaugesOmitsThem(t *testing.T) {
	s := stats.New()
	m := NewMetrics(s, nil, testLogger)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, req)

	if strings.Contains(rec.Body.String(), "active_workers") {
		t.Error("expected no gauge output when gauges func is nil")
	}
}
