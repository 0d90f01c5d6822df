package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"EasyPriceMonitor/internal/config"
	"EasyPriceMonitor/internal/usecase"
)

func testConfig(t *testing.T, watchlist string, handlers ...string) config.Config {
	t.Helper()
	dir := t.TempDir()

	path := filepath.Join(dir, "products.json")
	if err := os.WriteFile(path, []byte(watchlist), 0o600); err != nil {
		t.Fatalf("write watchlist: %v", err)
	}

	return config.Config{
		Logging:   config.LoggingConfig{Level: "error"},
		Watchlist: path,
		Handlers:  handlers,
		CSV:       config.CSVConfig{Path: filepath.Join(dir, "history.csv")},
		SQLite:    config.SQLiteConfig{Path: filepath.Join(dir, "history.db")},
		Alerts:    config.AlertConfig{Enabled: true, PercentDropThreshold: 5},
		HTTP:      config.HTTPConfig{Timeout: 5 * time.Second},
	}
}

func TestRunOnceEndToEnd(t *testing.T) {
	t.Parallel()

	var cents atomic.Int64
	cents.Store(10000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		c := cents.Load()
		fmt.Fprintf(w, `<html><body><span class="parts__Price-sc-1">%d,</span><span class="parts__DecimalPrice-sc-2">%02d zł</span></body></html>`, c/100, c%100)
	}))
	defer server.Close()

	watchlist := fmt.Sprintf(`{"products":[{"id":1,"name":"Widget","shops":[
		{"name":"x-kom","url":%q},
		{"name":"allegro","url":"https://allegro.pl/widget"}
	]}]}`, server.URL+"/p/1-widget.html")

	cfg := testConfig(t, watchlist, "csv", "sqlite", "excel")
	application, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	first, err := application.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Observations != 1 || first.FetchFailures != 1 || len(first.Alerts) != 0 {
		t.Fatalf("unexpected first report: %+v", first)
	}

	cents.Store(9000)
	second, err := application.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Candidates != 2 || len(second.Alerts) != 1 {
		t.Fatalf("expected both handlers to detect the drop once, got %+v", second)
	}
	if handlers := second.Alerts[0].Handlers; len(handlers) != 2 || handlers[0] != "csv" || handlers[1] != "sqlite" {
		t.Fatalf("unexpected contributing handlers: %v", handlers)
	}
}

func TestRunOnceWithoutHandlers(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, `{"products":[]}`, "excel")
	application, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if _, err := application.RunOnce(context.Background()); !errors.Is(err, usecase.ErrNoHandlers) {
		t.Fatalf("expected ErrNoHandlers, got %v", err)
	}
}

func TestServeFailsOnMissingWatchlist(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, `{"products":[]}`, "csv")
	cfg.Watchlist = filepath.Join(t.TempDir(), "missing.json")
	cfg.Scheduler.Interval = time.Hour

	application, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if err := application.Serve(context.Background()); err == nil {
		t.Fatalf("expected watchlist error")
	}
}

func TestServeIntervalStopsOnCancel(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, `{"products":[]}`, "csv")
	cfg.Scheduler.Interval = time.Hour

	application, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Serve did not stop after cancel")
	}
}
