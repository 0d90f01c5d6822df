package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"EasyPriceMonitor/internal/domain"
)

type watchlistFile struct {
	Products []productEntry `json:"products" yaml:"products"`
}

type productEntry struct {
	ID    int         `json:"id" yaml:"id"`
	Name  string      `json:"name" yaml:"name"`
	Shops []shopEntry `json:"shops" yaml:"shops"`
}

type shopEntry struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

// LoadWatchlist reads the product list. Files ending in .json are decoded as
// JSON, everything else as YAML.
func LoadWatchlist(path string) ([]domain.Product, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.ConfigError{Field: "watchlist", Reason: err.Error()}
	}
	return ParseWatchlist(raw, strings.EqualFold(filepath.Ext(path), ".json"))
}

// ParseWatchlist decodes and validates a watchlist document.
func ParseWatchlist(raw []byte, isJSON bool) ([]domain.Product, error) {
	var file watchlistFile
	if isJSON {
		err := json.Unmarshal(raw, &file)
		if err != nil {
			return nil, &domain.ConfigError{Field: "watchlist", Reason: fmt.Sprintf("decode json: %v", err)}
		}
	} else if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, &domain.ConfigError{Field: "watchlist", Reason: fmt.Sprintf("decode yaml: %v", err)}
	}

	products := make([]domain.Product, 0, len(file.Products))
	seen := make(map[int]string, len(file.Products))
	for i, entry := range file.Products {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return nil, &domain.ConfigError{Field: fmt.Sprintf("products[%d].name", i), Reason: "name is required"}
		}
		if other, dup := seen[entry.ID]; dup {
			return nil, &domain.ConfigError{
				Field:  fmt.Sprintf("products[%d].id", i),
				Reason: fmt.Sprintf("id %d already used by %q", entry.ID, other),
			}
		}
		seen[entry.ID] = name

		product := domain.Product{ID: entry.ID, Name: name}
		for j, s := range entry.Shops {
			shopName := strings.ToLower(strings.TrimSpace(s.Name))
			url := strings.TrimSpace(s.URL)
			if shopName == "" || url == "" {
				return nil, &domain.ConfigError{
					Field:  fmt.Sprintf("products[%d].shops[%d]", i, j),
					Reason: "shop name and url are required",
				}
			}
			product.Shops = append(product.Shops, domain.ShopEntry{Name: shopName, URL: url})
		}
		products = append(products, product)
	}
	return products, nil
}
