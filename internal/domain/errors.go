package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Fetch failure kinds. Plugins never return site specific errors; callers
// match these with errors.Is.
var (
	ErrNotFound    = errors.New("price not found")
	ErrParse       = errors.New("price could not be parsed")
	ErrNetwork     = errors.New("network failure")
	ErrRateLimited = errors.New("rate limited")
	ErrUnknownShop = errors.New("unknown shop")
)

// ConfigError reports a missing or malformed configuration field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// FetchError is returned by plugins for a single product page.
type FetchError struct {
	Shop string
	URL  string
	Kind error
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Shop, e.URL, e.Kind)
	}
	if errors.Is(e.Err, e.Kind) {
		return fmt.Sprintf("%s %s: %v", e.Shop, e.URL, e.Err)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Shop, e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewFetchError builds a FetchError of the given kind.
func NewFetchError(shop, url string, kind, err error) *FetchError {
	return &FetchError{Shop: shop, URL: url, Kind: kind, Err: err}
}

// PersistError wraps a failed write or read on one handler.
type PersistError struct {
	Handler   string
	ProductID int
	Shop      string
	Err       error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("%s handler: product %d at %s: %v", e.Handler, e.ProductID, e.Shop, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// SendError wraps a failed notification.
type SendError struct {
	Channel    string
	Recipients []string
	Err        error
}

func (e *SendError) Error() string {
	if len(e.Recipients) == 0 {
		return fmt.Sprintf("send via %s: %v", e.Channel, e.Err)
	}
	return fmt.Sprintf("send via %s to %s: %v", e.Channel, strings.Join(e.Recipients, ", "), e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }
