package shop

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"EasyPriceMonitor/internal/domain"
)

type stubPlugin struct {
	name string
}

func (s stubPlugin) Name() string { return s.name }

func (s stubPlugin) FetchPrice(context.Context, string) (decimal.Decimal, error) {
	return decimal.NewFromInt(1), nil
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(stubPlugin{name: "x-kom"}, stubPlugin{name: "MediaExpert"})

	for _, name := range []string{"x-kom", "X-Kom", " mediaexpert "} {
		if _, err := reg.Resolve(name); err != nil {
			t.Fatalf("resolve %q: %v", name, err)
		}
	}

	_, err := reg.Resolve("allegro")
	if !errors.Is(err, domain.ErrUnknownShop) {
		t.Fatalf("expected ErrUnknownShop, got %v", err)
	}

	names := reg.Names()
	if len(names) != 2 || names[0] != "mediaexpert" || names[1] != "x-kom" {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestRegistryRegisterReplaces(t *testing.T) {
	t.Parallel()

	var reg Registry
	reg.Register(stubPlugin{name: "x-kom"})
	reg.Register(stubPlugin{name: "X-KOM"})

	if got := len(reg.Names()); got != 1 {
		t.Fatalf("expected 1 plugin, got %d", got)
	}
}
