package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is stored next to every price; the shipped shops quote PLN.
const DefaultCurrency = "PLN"

// ShopEntry points a product at one shop's product page.
type ShopEntry struct {
	Name string
	URL  string
}

// Product is a watchlist entry. IDs are stable across runs.
type Product struct {
	ID    int
	Name  string
	Shops []ShopEntry
}

// PriceObservation is a single fetched price. Handlers keep their own copies.
type PriceObservation struct {
	ProductID   int
	ProductName string
	ShopName    string
	URL         string
	Price       decimal.Decimal
	Currency    string
	Timestamp   time.Time
}

// FetchResult is what the orchestrator emits per product/shop pair.
// Err is set when no price could be obtained.
type FetchResult struct {
	Product Product
	Shop    ShopEntry
	Price   decimal.Decimal
	Err     error
}

// Observation converts a successful fetch into a persisted record.
func (r FetchResult) Observation(at time.Time) PriceObservation {
	return PriceObservation{
		ProductID:   r.Product.ID,
		ProductName: r.Product.Name,
		ShopName:    r.Shop.Name,
		URL:         r.Shop.URL,
		Price:       r.Price,
		Currency:    DefaultCurrency,
		Timestamp:   at,
	}
}

// AlertCandidate is one handler's view of a qualifying drop.
type AlertCandidate struct {
	ProductID     int
	ProductName   string
	ShopName      string
	URL           string
	OldPrice      decimal.Decimal
	NewPrice      decimal.Decimal
	PercentChange decimal.Decimal
	SourceHandler string
}

// ConsolidatedAlert is the run-level, per-product alert handed to notifiers.
type ConsolidatedAlert struct {
	ProductID     int
	ProductName   string
	ShopName      string
	URL           string
	OldPrice      decimal.Decimal
	NewPrice      decimal.Decimal
	PercentChange decimal.Decimal
	Handlers      []string
}

// Difference returns the signed change (negative for drops).
func (a ConsolidatedAlert) Difference() decimal.Decimal {
	return a.NewPrice.Sub(a.OldPrice)
}

// RunReport summarises one pipeline execution.
type RunReport struct {
	RunID         string
	StartedAt     time.Time
	Observations  int
	FetchFailures int
	Candidates    int
	Alerts        []ConsolidatedAlert
	Notified      int
}
