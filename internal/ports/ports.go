package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"EasyPriceMonitor/internal/domain"
)

// PriceSource fetches current prices for the whole watchlist.
type PriceSource interface {
	FetchAll(ctx context.Context, products []domain.Product) []domain.FetchResult
}

// PriceHandler persists observations and answers "what did I record last".
// Each handler only sees its own storage.
type PriceHandler interface {
	Name() string
	PreviousPrice(ctx context.Context, productID int, shop string) (decimal.Decimal, bool, error)
	Persist(ctx context.Context, obs domain.PriceObservation) error
	Close() error
}

// Notifier delivers consolidated alerts over one channel.
type Notifier interface {
	Channel() string
	Notify(ctx context.Context, alerts []domain.ConsolidatedAlert) error
}

// Scheduler controls when runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
