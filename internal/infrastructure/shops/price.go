package shops

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"EasyPriceMonitor/internal/domain"
)

// parsePrice normalises shop formatted amounts such as "1 299,99 zł" or "2,499.00".
func parsePrice(text string) (decimal.Decimal, error) {
	var b strings.Builder
	for _, r := range text {
		switch {
		case unicode.IsDigit(r), r == ',', r == '.':
			b.WriteRune(r)
		case r == '-':
			return decimal.Zero, fmt.Errorf("negative price %q", text)
		}
	}

	cleaned := b.String()
	comma := strings.LastIndex(cleaned, ",")
	dot := strings.LastIndex(cleaned, ".")
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	case comma >= 0 && dot >= 0:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	case comma >= 0:
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	}
	cleaned = strings.Trim(cleaned, ".")

	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("no digits in %q", text)
	}

	price, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price %q: %w", text, err)
	}
	return price, nil
}

func digitsOnly(text string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, text)
}

// extractFailure classifies an extraction error: a missing price element is
// ErrNotFound, anything else is ErrParse.
func extractFailure(shop, url string, err error) error {
	kind := domain.ErrParse
	if errors.Is(err, domain.ErrNotFound) {
		kind = domain.ErrNotFound
	}
	return domain.NewFetchError(shop, url, kind, err)
}
