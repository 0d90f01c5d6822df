package usecase

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"EasyPriceMonitor/internal/alert"
	"EasyPriceMonitor/internal/config"
	"EasyPriceMonitor/internal/domain"
	"EasyPriceMonitor/internal/infrastructure/storage"
	"EasyPriceMonitor/internal/ports"
)

type fakeSource struct {
	prices map[int]string
	calls  int
}

func (s *fakeSource) FetchAll(_ context.Context, products []domain.Product) []domain.FetchResult {
	s.calls++
	var results []domain.FetchResult
	for _, p := range products {
		for _, entry := range p.Shops {
			r := domain.FetchResult{Product: p, Shop: entry}
			if price, ok := s.prices[p.ID]; ok {
				r.Price = decimal.RequireFromString(price)
			} else {
				r.Err = domain.NewFetchError(entry.Name, entry.URL, domain.ErrNetwork, nil)
			}
			results = append(results, r)
		}
	}
	return results
}

type fakeHandler struct {
	name       string
	previous   map[int]string
	persistErr error
	lookupErr  error
	persisted  []domain.PriceObservation
	closed     bool
}

func (h *fakeHandler) Name() string { return h.name }

func (h *fakeHandler) PreviousPrice(_ context.Context, productID int, _ string) (decimal.Decimal, bool, error) {
	if h.lookupErr != nil {
		return decimal.Zero, false, h.lookupErr
	}
	price, ok := h.previous[productID]
	if !ok {
		return decimal.Zero, false, nil
	}
	return decimal.RequireFromString(price), true, nil
}

func (h *fakeHandler) Persist(_ context.Context, obs domain.PriceObservation) error {
	if h.persistErr != nil {
		return h.persistErr
	}
	h.persisted = append(h.persisted, obs)
	return nil
}

func (h *fakeHandler) Close() error {
	h.closed = true
	return nil
}

type fakeNotifier struct {
	sent [][]domain.ConsolidatedAlert
	err  error
}

func (n *fakeNotifier) Channel() string { return "fake" }

func (n *fakeNotifier) Notify(_ context.Context, alerts []domain.ConsolidatedAlert) error {
	if len(alerts) == 0 {
		return nil
	}
	n.sent = append(n.sent, alerts)
	return n.err
}

func widgetList() []domain.Product {
	return []domain.Product{{ID: 1, Name: "Widget", Shops: []domain.ShopEntry{{Name: "x-kom", URL: "https://x-kom.pl/1"}}}}
}

func newTestPipeline(products []domain.Product, source ports.PriceSource, cfg config.AlertConfig, notifier ports.Notifier, handlers ...ports.PriceHandler) *Pipeline {
	p := NewPipeline(PipelineDeps{
		Watchlist: func() ([]domain.Product, error) { return products, nil },
		Source:    source,
		Handlers: func(context.Context) ([]ports.PriceHandler, error) {
			return handlers, nil
		},
		Evaluator: alert.NewEvaluator(cfg),
		Notifiers: []ports.Notifier{notifier},
	})
	p.newRunID = func() string { return "run-1" }
	return p
}

func TestPipelineCSVScenarios(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.csv")
	cfg := config.AlertConfig{Enabled: true, PercentDropThreshold: 5}
	notifier := &fakeNotifier{}

	run := func(price string) domain.RunReport {
		t.Helper()
		opener := func(context.Context) ([]ports.PriceHandler, error) {
			h, err := storage.OpenCSV(path)
			if err != nil {
				return nil, err
			}
			return []ports.PriceHandler{h}, nil
		}
		p := NewPipeline(PipelineDeps{
			Watchlist: func() ([]domain.Product, error) { return widgetList(), nil },
			Source:    &fakeSource{prices: map[int]string{1: price}},
			Handlers:  opener,
			Evaluator: alert.NewEvaluator(cfg),
			Notifiers: []ports.Notifier{notifier},
		})
		report, err := p.Run(ctx, time.Now())
		if err != nil {
			t.Fatalf("Run error: %v", err)
		}
		return report
	}

	// first run has no baseline
	first := run("100.00")
	if first.Observations != 1 || len(first.Alerts) != 0 || len(notifier.sent) != 0 {
		t.Fatalf("first run must not alert: %+v", first)
	}

	second := run("90.00")
	if len(second.Alerts) != 1 || len(notifier.sent) != 1 {
		t.Fatalf("expected one alert and one notification, got %+v", second)
	}
	if !second.Alerts[0].PercentChange.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("unexpected percent: %s", second.Alerts[0].PercentChange)
	}
}

func TestPipelineTwoHandlersSameDrop(t *testing.T) {
	t.Parallel()

	csv := &fakeHandler{name: "csv", previous: map[int]string{1: "100.00"}}
	mysql := &fakeHandler{name: "mysql", previous: map[int]string{1: "100.00"}}
	notifier := &fakeNotifier{}

	p := newTestPipeline(widgetList(), &fakeSource{prices: map[int]string{1: "80.00"}},
		config.AlertConfig{Enabled: true, PercentDropThreshold: 3.5}, notifier, csv, mysql)

	report, err := p.Run(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if report.Candidates != 2 {
		t.Fatalf("expected a candidate per handler, got %d", report.Candidates)
	}
	if len(report.Alerts) != 1 || len(notifier.sent) != 1 || len(notifier.sent[0]) != 1 {
		t.Fatalf("expected exactly one alert and one send, got %+v", report)
	}
	if !report.Alerts[0].PercentChange.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("unexpected percent: %s", report.Alerts[0].PercentChange)
	}
	if len(csv.persisted) != 1 || len(mysql.persisted) != 1 {
		t.Fatalf("both handlers must persist the observation")
	}
	if !csv.closed || !mysql.closed {
		t.Fatalf("handlers must be closed after the run")
	}
	if report.RunID != "run-1" {
		t.Fatalf("unexpected run id %q", report.RunID)
	}
}

func TestPipelineAllowlistWithFailedFetch(t *testing.T) {
	t.Parallel()

	products := append(widgetList(), domain.Product{ID: 2, Name: "Battery", Shops: []domain.ShopEntry{{Name: "x-kom", URL: "https://x-kom.pl/2"}}})
	csv := &fakeHandler{name: "csv", previous: map[int]string{1: "100.00", 2: "10.00"}}
	notifier := &fakeNotifier{}

	p := newTestPipeline(products, &fakeSource{prices: map[int]string{1: "50.00"}},
		config.AlertConfig{Enabled: true, PercentDropThreshold: 5, ProductIDs: []int{2}}, notifier, csv)

	report, err := p.Run(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if report.FetchFailures != 1 || report.Observations != 1 {
		t.Fatalf("unexpected counts: %+v", report)
	}
	if len(report.Alerts) != 0 || len(notifier.sent) != 0 {
		t.Fatalf("expected zero alerts and zero sends, got %+v", report)
	}
}

func TestPipelineDivergedHistories(t *testing.T) {
	t.Parallel()

	csv := &fakeHandler{name: "csv", previous: map[int]string{1: "100.00"}}
	mysql := &fakeHandler{name: "mysql", previous: map[int]string{1: "95.00"}}
	notifier := &fakeNotifier{}

	p := newTestPipeline(widgetList(), &fakeSource{prices: map[int]string{1: "90.00"}},
		config.AlertConfig{Enabled: true, PercentDropThreshold: 5}, notifier, mysql, csv)

	report, err := p.Run(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(report.Alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(report.Alerts))
	}
	a := report.Alerts[0]
	if !a.PercentChange.Equal(decimal.NewFromInt(10)) || !a.OldPrice.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected csv drop as representative, got %+v", a)
	}
	if len(a.Handlers) != 2 || a.Handlers[0] != "csv" || a.Handlers[1] != "mysql" {
		t.Fatalf("unexpected handlers: %v", a.Handlers)
	}
}

func TestPipelineHandlerFailures(t *testing.T) {
	t.Parallel()

	broken := &fakeHandler{name: "mysql", previous: map[int]string{1: "100.00"}, persistErr: errors.New("table locked")}
	blind := &fakeHandler{name: "sqlite", lookupErr: errors.New("disk I/O error")}
	csv := &fakeHandler{name: "csv", previous: map[int]string{1: "100.00"}}
	notifier := &fakeNotifier{err: errors.New("smtp down")}

	p := newTestPipeline(widgetList(), &fakeSource{prices: map[int]string{1: "50.00"}},
		config.AlertConfig{Enabled: true, PercentDropThreshold: 5}, notifier, broken, blind, csv)

	report, err := p.Run(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if report.Candidates != 1 {
		t.Fatalf("only the healthy handler may produce a candidate, got %d", report.Candidates)
	}
	if len(blind.persisted) != 1 {
		t.Fatalf("a failed lookup must not block persistence")
	}
	if len(csv.persisted) != 1 {
		t.Fatalf("a failing handler must not block the others")
	}
	if len(notifier.sent) != 1 || report.Notified != 0 {
		t.Fatalf("send must be attempted once and not counted, got %d/%d", len(notifier.sent), report.Notified)
	}
	if !broken.closed || !blind.closed || !csv.closed {
		t.Fatalf("every handler must be closed")
	}
}

func TestPipelineAlertsDisabled(t *testing.T) {
	t.Parallel()

	csv := &fakeHandler{name: "csv", previous: map[int]string{1: "100.00"}}
	notifier := &fakeNotifier{}

	p := newTestPipeline(widgetList(), &fakeSource{prices: map[int]string{1: "10.00"}},
		config.AlertConfig{Enabled: false, PercentDropThreshold: 5}, notifier, csv)

	report, err := p.Run(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(report.Alerts) != 0 || len(notifier.sent) != 0 || len(csv.persisted) != 1 {
		t.Fatalf("disabled alerts must still persist but never notify: %+v", report)
	}
}

func TestPipelineFatalErrors(t *testing.T) {
	t.Parallel()

	source := &fakeSource{}

	noHandlers := newTestPipeline(widgetList(), source, config.AlertConfig{}, &fakeNotifier{})
	if _, err := noHandlers.Run(context.Background(), time.Now()); !errors.Is(err, ErrNoHandlers) {
		t.Fatalf("expected ErrNoHandlers, got %v", err)
	}

	badWatchlist := NewPipeline(PipelineDeps{
		Watchlist: func() ([]domain.Product, error) {
			return nil, &domain.ConfigError{Field: "watchlist", Reason: "missing"}
		},
		Source:   source,
		Handlers: func(context.Context) ([]ports.PriceHandler, error) { return nil, nil },
	})
	_, err := badWatchlist.Run(context.Background(), time.Now())
	var cfgErr *domain.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}

	if source.calls != 0 {
		t.Fatalf("nothing may be fetched after a fatal error")
	}
}
