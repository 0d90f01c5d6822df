package shop

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"EasyPriceMonitor/internal/domain"
)

// Plugin turns a product URL of one shop into a normalized price.
// Failures are *domain.FetchError values.
type Plugin interface {
	Name() string
	FetchPrice(ctx context.Context, url string) (decimal.Decimal, error)
}

// Registry keeps a mapping from shop identifiers to their plugins.
type Registry struct {
	plugins map[string]Plugin
}

// NewRegistry builds a registry with the given plugins.
func NewRegistry(plugins ...Plugin) *Registry {
	r := &Registry{plugins: map[string]Plugin{}}
	for _, p := range plugins {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a plugin. Shop names are case-insensitive.
func (r *Registry) Register(plugin Plugin) {
	if r.plugins == nil {
		r.plugins = map[string]Plugin{}
	}
	r.plugins[normalize(plugin.Name())] = plugin
}

// Resolve returns the plugin for a shop or an error wrapping domain.ErrUnknownShop.
func (r *Registry) Resolve(name string) (Plugin, error) {
	if plugin, ok := r.plugins[normalize(name)]; ok {
		return plugin, nil
	}
	return nil, fmt.Errorf("shop %q: %w", name, domain.ErrUnknownShop)
}

// Names lists registered shops in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
