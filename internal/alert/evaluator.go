// Package alert turns per-handler price diffs into run-level drop alerts.
package alert

import (
	"github.com/shopspring/decimal"

	"EasyPriceMonitor/internal/config"
	"EasyPriceMonitor/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Evaluator decides whether a previous/new price pair is a qualifying drop.
type Evaluator struct {
	enabled   bool
	threshold decimal.Decimal
	allowed   map[int]struct{}
}

// NewEvaluator captures the alert settings for the duration of a run.
func NewEvaluator(cfg config.AlertConfig) *Evaluator {
	e := &Evaluator{
		enabled:   cfg.Enabled,
		threshold: decimal.NewFromFloat(cfg.PercentDropThreshold),
	}
	if len(cfg.ProductIDs) > 0 {
		e.allowed = make(map[int]struct{}, len(cfg.ProductIDs))
		for _, id := range cfg.ProductIDs {
			e.allowed[id] = struct{}{}
		}
	}
	return e
}

// Enabled reports whether alerting is switched on.
func (e *Evaluator) Enabled() bool {
	return e.enabled
}

// Watches reports whether productID passes the allowlist.
func (e *Evaluator) Watches(productID int) bool {
	if e.allowed == nil {
		return true
	}
	_, ok := e.allowed[productID]
	return ok
}

// Evaluate returns a candidate when the drop from previous to current reaches
// the threshold. hasPrevious is false on a product's first observation.
func (e *Evaluator) Evaluate(obs domain.PriceObservation, handler string, previous decimal.Decimal, hasPrevious bool) (domain.AlertCandidate, bool) {
	if !e.enabled || !hasPrevious || !e.Watches(obs.ProductID) {
		return domain.AlertCandidate{}, false
	}
	if !previous.IsPositive() || !obs.Price.LessThan(previous) {
		return domain.AlertCandidate{}, false
	}

	percent := PercentDrop(previous, obs.Price)
	if percent.LessThan(e.threshold) {
		return domain.AlertCandidate{}, false
	}

	return domain.AlertCandidate{
		ProductID:     obs.ProductID,
		ProductName:   obs.ProductName,
		ShopName:      obs.ShopName,
		URL:           obs.URL,
		OldPrice:      previous,
		NewPrice:      obs.Price,
		PercentChange: percent,
		SourceHandler: handler,
	}, true
}

// PercentDrop is (previous - current) / previous * 100. previous must be positive.
func PercentDrop(previous, current decimal.Decimal) decimal.Decimal {
	return previous.Sub(current).Mul(hundred).Div(previous)
}
