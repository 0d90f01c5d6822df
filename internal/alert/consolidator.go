package alert

import (
	"slices"

	"EasyPriceMonitor/internal/domain"
)

// Consolidate collapses candidates to one alert per product. The candidate
// with the largest drop represents the product; on a tie the earliest one
// wins. Products keep the order in which they were first seen.
func Consolidate(candidates []domain.AlertCandidate) []domain.ConsolidatedAlert {
	var (
		alerts []domain.ConsolidatedAlert
		index  = make(map[int]int)
	)

	for _, c := range candidates {
		i, ok := index[c.ProductID]
		if !ok {
			index[c.ProductID] = len(alerts)
			alerts = append(alerts, fromCandidate(c))
			continue
		}

		a := &alerts[i]
		if !slices.Contains(a.Handlers, c.SourceHandler) {
			a.Handlers = append(a.Handlers, c.SourceHandler)
		}
		if c.PercentChange.GreaterThan(a.PercentChange) {
			handlers := a.Handlers
			*a = fromCandidate(c)
			a.Handlers = handlers
		}
	}

	for i := range alerts {
		slices.Sort(alerts[i].Handlers)
	}
	return alerts
}

func fromCandidate(c domain.AlertCandidate) domain.ConsolidatedAlert {
	return domain.ConsolidatedAlert{
		ProductID:     c.ProductID,
		ProductName:   c.ProductName,
		ShopName:      c.ShopName,
		URL:           c.URL,
		OldPrice:      c.OldPrice,
		NewPrice:      c.NewPrice,
		PercentChange: c.PercentChange,
		Handlers:      []string{c.SourceHandler},
	}
}
