package shops

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"EasyPriceMonitor/internal/config"
	"EasyPriceMonitor/internal/domain"
	"EasyPriceMonitor/internal/ports"
	"EasyPriceMonitor/internal/shop"
)

// WatchlistSource implements PriceSource by dispatching every shop entry of
// the watchlist to its registered plugin, one fetch at a time.
//
// The randomized pause between fetches is a courtesy towards the shops, not a
// rate-limit guarantee.
type WatchlistSource struct {
	registry *shop.Registry
	delay    config.DelayConfig
	logger   *slog.Logger

	sleep    func(ctx context.Context, d time.Duration) error
	randIntN func(n int) int
}

var _ ports.PriceSource = (*WatchlistSource)(nil)

// NewWatchlistSource wires the plugin registry with the delay settings.
func NewWatchlistSource(reg *shop.Registry, delay config.DelayConfig, log *slog.Logger) *WatchlistSource {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &WatchlistSource{
		registry: reg,
		delay:    delay,
		logger:   log,
		sleep:    sleepContext,
		randIntN: rand.IntN,
	}
}

// FetchAll fetches every product/shop pair once. Failures are reported in the
// result and never stop the remaining fetches; a cancelled context does.
func (s *WatchlistSource) FetchAll(ctx context.Context, products []domain.Product) []domain.FetchResult {
	var (
		results []domain.FetchResult
		fetched int
	)

	for _, product := range products {
		s.logger.Info("monitoring product", "product_id", product.ID, "product", product.Name, "shops", len(product.Shops))

		for _, entry := range product.Shops {
			result := domain.FetchResult{Product: product, Shop: entry}

			plugin, err := s.registry.Resolve(entry.Name)
			if err != nil {
				s.logger.Error("shop is not supported, skipping", "product_id", product.ID, "shop", entry.Name, "error", err)
				result.Err = err
				results = append(results, result)
				continue
			}

			if fetched > 0 {
				if err := s.pause(ctx); err != nil {
					return results
				}
			}
			if ctx.Err() != nil {
				return results
			}
			fetched++

			price, err := plugin.FetchPrice(ctx, entry.URL)
			if err == nil && price.IsNegative() {
				err = domain.NewFetchError(entry.Name, entry.URL, domain.ErrParse, fmt.Errorf("negative price %s", price))
			}
			if err != nil {
				s.logger.Error("fetch failed", "product_id", product.ID, "product", product.Name, "shop", entry.Name, "error", err)
				result.Err = err
				results = append(results, result)
				continue
			}

			s.logger.Info("price fetched", "product_id", product.ID, "product", product.Name, "shop", entry.Name,
				"price", price.StringFixed(2), "currency", domain.DefaultCurrency)
			result.Price = price
			results = append(results, result)
		}
	}

	return results
}

func (s *WatchlistSource) pause(ctx context.Context) error {
	if !s.delay.Enabled {
		return nil
	}

	lo, hi := s.delay.MinSeconds, s.delay.MaxSeconds
	if hi < lo {
		hi = lo
	}
	seconds := lo + s.randIntN(hi-lo+1)
	if seconds <= 0 {
		return nil
	}

	d := time.Duration(seconds) * time.Second
	s.logger.Info("waiting before next request", "seconds", seconds, "until", time.Now().Add(d).Format(time.DateTime))
	return s.sleep(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
