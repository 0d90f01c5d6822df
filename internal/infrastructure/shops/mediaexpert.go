package shops

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"EasyPriceMonitor/internal/domain"
	"EasyPriceMonitor/internal/shop"
)

const mediaExpertShopName = "mediaexpert"

// MediaExpert reads the price from the JSON-LD Product node embedded in
// mediaexpert.pl product pages.
type MediaExpert struct {
	fetcher *PageFetcher
}

var _ shop.Plugin = (*MediaExpert)(nil)

// NewMediaExpert wires the shared page fetcher.
func NewMediaExpert(fetcher *PageFetcher) *MediaExpert {
	return &MediaExpert{fetcher: fetcher}
}

// Name identifies the plugin inside the registry.
func (m *MediaExpert) Name() string {
	return mediaExpertShopName
}

// FetchPrice downloads the product page and scans its JSON-LD scripts.
func (m *MediaExpert) FetchPrice(ctx context.Context, url string) (decimal.Decimal, error) {
	doc, err := m.fetcher.Document(ctx, mediaExpertShopName, url)
	if err != nil {
		return decimal.Zero, err
	}

	price, err := extractJSONLDPrice(doc)
	if err != nil {
		return decimal.Zero, extractFailure(mediaExpertShopName, url, err)
	}
	return price, nil
}

func extractJSONLDPrice(doc *goquery.Document) (decimal.Decimal, error) {
	scripts := doc.Find(`script[type="application/ld+json"]`)
	if scripts.Length() == 0 {
		return decimal.Zero, fmt.Errorf("no JSON-LD scripts: %w", domain.ErrNotFound)
	}

	var (
		price   decimal.Decimal
		found   bool
		lastErr error
	)
	scripts.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		dec := json.NewDecoder(strings.NewReader(s.Text()))
		dec.UseNumber()

		var data any
		if err := dec.Decode(&data); err != nil {
			return true
		}

		p, ok, err := productPrice(data)
		if err != nil {
			lastErr = err
			return true
		}
		if ok {
			price, found = p, true
			return false
		}
		return true
	})

	if found {
		return price, nil
	}
	if lastErr != nil {
		return decimal.Zero, fmt.Errorf("%v: %w", lastErr, domain.ErrParse)
	}
	return decimal.Zero, fmt.Errorf("no Product offer in JSON-LD: %w", domain.ErrNotFound)
}

// productPrice walks a JSON-LD value looking for a Product node with offers,
// descending into arrays and @graph containers.
func productPrice(node any) (decimal.Decimal, bool, error) {
	switch v := node.(type) {
	case []any:
		for _, item := range v {
			if p, ok, err := productPrice(item); ok || err != nil {
				return p, ok, err
			}
		}
	case map[string]any:
		if isProductType(v["@type"]) {
			if offers, ok := v["offers"]; ok {
				return offerPrice(offers)
			}
		}
		if graph, ok := v["@graph"]; ok {
			return productPrice(graph)
		}
	}
	return decimal.Zero, false, nil
}

func isProductType(t any) bool {
	switch v := t.(type) {
	case string:
		return v == "Product"
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == "Product" {
				return true
			}
		}
	}
	return false
}

func offerPrice(offers any) (decimal.Decimal, bool, error) {
	switch v := offers.(type) {
	case []any:
		for _, item := range v {
			if p, ok, err := offerPrice(item); ok || err != nil {
				return p, ok, err
			}
		}
	case map[string]any:
		for _, key := range []string{"price", "lowPrice"} {
			raw, ok := v[key]
			if !ok {
				continue
			}
			p, err := jsonPrice(raw)
			if err != nil {
				return decimal.Zero, false, err
			}
			return p, true, nil
		}
	}
	return decimal.Zero, false, nil
}

func jsonPrice(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case json.Number:
		return decimal.NewFromString(v.String())
	case string:
		return parsePrice(v)
	default:
		return decimal.Zero, fmt.Errorf("unsupported price value %v", raw)
	}
}
