package shops

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"EasyPriceMonitor/internal/domain"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultTimeout   = 20 * time.Second
)

// PageFetcher downloads product pages and hands them to plugins as goquery documents.
type PageFetcher struct {
	base *colly.Collector
}

// NewPageFetcher configures the collector; empty values fall back to defaults.
func NewPageFetcher(userAgent string, timeout time.Duration) *PageFetcher {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(timeout)

	return &PageFetcher{base: c}
}

// Document fetches pageURL. Errors are *domain.FetchError tagged with shop.
func (f *PageFetcher) Document(ctx context.Context, shop, pageURL string) (*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewFetchError(shop, pageURL, domain.ErrNetwork, err)
	}

	c := f.base.Clone()

	var (
		body   []byte
		status int
	)
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})
	c.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	if err := c.Visit(pageURL); err != nil {
		return nil, domain.NewFetchError(shop, pageURL, kindForStatus(status), err)
	}
	if len(body) == 0 {
		return nil, domain.NewFetchError(shop, pageURL, domain.ErrNotFound, fmt.Errorf("empty response (status %d)", status))
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, domain.NewFetchError(shop, pageURL, domain.ErrParse, fmt.Errorf("parse document: %w", err))
	}
	return doc, nil
}

func kindForStatus(status int) error {
	switch status {
	case http.StatusNotFound, http.StatusGone:
		return domain.ErrNotFound
	case http.StatusForbidden, http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return domain.ErrRateLimited
	default:
		return domain.ErrNetwork
	}
}
