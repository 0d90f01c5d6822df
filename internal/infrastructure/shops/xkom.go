package shops

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"EasyPriceMonitor/internal/domain"
	"EasyPriceMonitor/internal/shop"
)

// x-kom renders the integer and fractional parts of a price in separate spans
// whose class names carry a build hash suffix.
const (
	xkomWholeSelector   = `span[class*="parts__Price-"]`
	xkomDecimalSelector = `span[class*="parts__DecimalPrice-"]`
	xkomShopName        = "x-kom"
)

// XKom extracts prices from x-kom.pl product pages.
type XKom struct {
	fetcher *PageFetcher
}

var _ shop.Plugin = (*XKom)(nil)

// NewXKom wires the shared page fetcher.
func NewXKom(fetcher *PageFetcher) *XKom {
	return &XKom{fetcher: fetcher}
}

// Name identifies the plugin inside the registry.
func (x *XKom) Name() string {
	return xkomShopName
}

// FetchPrice downloads the product page and reads the price spans.
func (x *XKom) FetchPrice(ctx context.Context, url string) (decimal.Decimal, error) {
	doc, err := x.fetcher.Document(ctx, xkomShopName, url)
	if err != nil {
		return decimal.Zero, err
	}

	price, err := extractXKomPrice(doc)
	if err != nil {
		return decimal.Zero, extractFailure(xkomShopName, url, err)
	}
	return price, nil
}

func extractXKomPrice(doc *goquery.Document) (decimal.Decimal, error) {
	whole := doc.Find(xkomWholeSelector).First()
	if whole.Length() == 0 {
		return decimal.Zero, fmt.Errorf("price span missing: %w", domain.ErrNotFound)
	}

	wholeDigits := digitsOnly(whole.Text())
	if wholeDigits == "" {
		return decimal.Zero, fmt.Errorf("price span %q has no digits: %w", strings.TrimSpace(whole.Text()), domain.ErrParse)
	}

	fraction := digitsOnly(doc.Find(xkomDecimalSelector).First().Text())
	if fraction == "" {
		fraction = "0"
	}

	price, err := decimal.NewFromString(wholeDigits + "." + fraction)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%v: %w", err, domain.ErrParse)
	}
	return price, nil
}
