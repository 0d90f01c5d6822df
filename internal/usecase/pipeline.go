package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"EasyPriceMonitor/internal/alert"
	"EasyPriceMonitor/internal/domain"
	"EasyPriceMonitor/internal/ports"
)

// ErrNoHandlers is returned when a run has no storage handler to work with.
var ErrNoHandlers = errors.New("no storage handler could be constructed")

// WatchlistLoader returns the products to monitor in this run.
type WatchlistLoader func() ([]domain.Product, error)

// HandlerOpener constructs the storage handlers selected for a run. Handlers
// that fail to open are left out; the pipeline closes the rest when the run ends.
type HandlerOpener func(ctx context.Context) ([]ports.PriceHandler, error)

// PipelineDeps wires all driven adapters into the monitoring pipeline.
type PipelineDeps struct {
	Watchlist WatchlistLoader
	Source    ports.PriceSource
	Handlers  HandlerOpener
	Evaluator *alert.Evaluator
	Notifiers []ports.Notifier
	Logger    *slog.Logger
}

// Pipeline implements one price monitoring run: fetch, persist and diff per
// handler, consolidate, notify.
type Pipeline struct {
	watchlist WatchlistLoader
	source    ports.PriceSource
	handlers  HandlerOpener
	evaluator *alert.Evaluator
	notifiers []ports.Notifier
	logger    *slog.Logger
	newRunID  func() string
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		watchlist: deps.Watchlist,
		source:    deps.Source,
		handlers:  deps.Handlers,
		evaluator: deps.Evaluator,
		notifiers: deps.Notifiers,
		logger:    logger,
		newRunID:  uuid.NewString,
	}
}

// Run executes a single monitoring pass. Only a missing watchlist or the
// absence of any handler is returned as an error; fetch, persist and send
// failures are logged and counted in the report.
func (p *Pipeline) Run(ctx context.Context, startedAt time.Time) (domain.RunReport, error) {
	report := domain.RunReport{RunID: p.newRunID(), StartedAt: startedAt}
	log := p.logger.With("run_id", report.RunID)

	if p.watchlist == nil || p.source == nil || p.handlers == nil {
		return report, errors.New("pipeline is not fully wired")
	}

	products, err := p.watchlist()
	if err != nil {
		return report, fmt.Errorf("load watchlist: %w", err)
	}

	handlers, err := p.handlers(ctx)
	defer closeHandlers(log, handlers)
	if err != nil {
		return report, err
	}
	if len(handlers) == 0 {
		return report, ErrNoHandlers
	}

	log.Info("run started", "products", len(products), "handlers", handlerNames(handlers))

	var (
		candidates []domain.AlertCandidate
		perHandler = make(map[string]int, len(handlers))
	)
	for _, result := range p.source.FetchAll(ctx, products) {
		if result.Err != nil {
			report.FetchFailures++
			continue
		}
		report.Observations++

		obs := result.Observation(startedAt)
		for _, h := range handlers {
			if c, ok := p.record(ctx, log, h, obs); ok {
				candidates = append(candidates, c)
				perHandler[h.Name()]++
			}
		}
	}
	report.Candidates = len(candidates)
	for _, h := range handlers {
		log.Info("checked price history", "handler", h.Name(), "candidates", perHandler[h.Name()])
	}

	if p.evaluator == nil || !p.evaluator.Enabled() {
		log.Info("alerts are disabled in config", "observations", report.Observations, "fetch_failures", report.FetchFailures)
		return report, nil
	}

	report.Alerts = alert.Consolidate(candidates)
	if len(handlers) > 1 && len(report.Alerts) > 0 {
		log.Info(fmt.Sprintf("Consolidated %d unique price change(s) from %s",
			len(report.Alerts), strings.Join(handlerNames(handlers), " and ")))
	}
	if len(report.Alerts) == 0 {
		log.Info("no price changes exceeded the alert threshold",
			"observations", report.Observations, "fetch_failures", report.FetchFailures)
		return report, nil
	}

	for _, n := range p.notifiers {
		if err := n.Notify(ctx, report.Alerts); err != nil {
			log.Error("notification failed", "channel", n.Channel(), "error", err)
			continue
		}
		report.Notified++
	}
	if len(p.notifiers) == 0 {
		log.Warn("alerts raised but no notification channel is configured", "alerts", len(report.Alerts))
	}

	log.Info("run finished", "observations", report.Observations, "fetch_failures", report.FetchFailures,
		"alerts", len(report.Alerts), "notified", report.Notified)
	return report, nil
}

// record reads the handler's previous price, persists obs and evaluates the
// diff. A failed persist discards the comparison for this handler.
func (p *Pipeline) record(ctx context.Context, log *slog.Logger, h ports.PriceHandler, obs domain.PriceObservation) (domain.AlertCandidate, bool) {
	attrs := []any{"handler", h.Name(), "product_id", obs.ProductID, "shop", obs.ShopName}

	previous, hasPrevious, lookupErr := h.PreviousPrice(ctx, obs.ProductID, obs.ShopName)
	if lookupErr != nil {
		log.Warn("previous price lookup failed", append(attrs, "error", lookupErr)...)
	}

	if err := h.Persist(ctx, obs); err != nil {
		log.Error("persist failed", append(attrs, "error", err)...)
		return domain.AlertCandidate{}, false
	}
	if lookupErr != nil || p.evaluator == nil {
		return domain.AlertCandidate{}, false
	}

	if hasPrevious && !previous.Equal(obs.Price) {
		log.Debug("price change detected", append(attrs,
			"previous", previous.StringFixed(2), "current", obs.Price.StringFixed(2))...)
	}

	candidate, ok := p.evaluator.Evaluate(obs, h.Name(), previous, hasPrevious)
	switch {
	case ok:
		log.Info("price drop above threshold", append(attrs,
			"product", obs.ProductName,
			"previous", candidate.OldPrice.StringFixed(2),
			"current", candidate.NewPrice.StringFixed(2),
			"percent", candidate.PercentChange.StringFixed(2))...)
	case p.evaluator.Enabled() && p.evaluator.Watches(obs.ProductID) && hasPrevious && previous.IsPositive() && obs.Price.LessThan(previous):
		log.Info("price drop below threshold", append(attrs,
			"product", obs.ProductName,
			"percent", alert.PercentDrop(previous, obs.Price).StringFixed(2))...)
	}
	return candidate, ok
}

func closeHandlers(log *slog.Logger, handlers []ports.PriceHandler) {
	for _, h := range handlers {
		if err := h.Close(); err != nil {
			log.Warn("close handler failed", "handler", h.Name(), "error", err)
		}
	}
}

func handlerNames(handlers []ports.PriceHandler) []string {
	names := make([]string, len(handlers))
	for i, h := range handlers {
		names[i] = h.Name()
	}
	return names
}
