package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"
)

func TestSQLiteHandler(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")
	at := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	h, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite error: %v", err)
	}
	if h.Name() != "sqlite" {
		t.Fatalf("unexpected name %q", h.Name())
	}

	if _, ok, err := h.PreviousPrice(ctx, 1, "x-kom"); err != nil || ok {
		t.Fatalf("expected empty history, got ok=%v err=%v", ok, err)
	}

	for i, price := range []string{"100.00", "95.50", "90.00"} {
		if err := h.Persist(ctx, obs(1, "x-kom", price, at.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("Persist error: %v", err)
		}
	}
	if err := h.Persist(ctx, obs(1, "mediaexpert", "120.00", at)); err != nil {
		t.Fatalf("Persist error: %v", err)
	}

	price, ok, err := h.PreviousPrice(ctx, 1, "x-kom")
	if err != nil || !ok || !price.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("expected 90, got %s ok=%v err=%v", price, ok, err)
	}
	price, _, _ = h.PreviousPrice(ctx, 1, "mediaexpert")
	if !price.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("expected 120, got %s", price)
	}

	if err := h.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	// schema creation is idempotent and history survives a reopen
	reopened, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer reopened.Close()

	price, ok, _ = reopened.PreviousPrice(ctx, 1, "x-kom")
	if !ok || !price.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("history lost after reopen: %s", price)
	}

	var products int
	if err := reopened.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&products); err != nil {
		t.Fatalf("count products: %v", err)
	}
	if products != 1 {
		t.Fatalf("product upsert must keep one row, got %d", products)
	}
}

func TestDialectStatements(t *testing.T) {
	t.Parallel()

	tests := []struct {
		d    dialect
		want string
	}{
		{d: mysqlDialect, want: "INSERT INTO products (id,name) VALUES (?,?) ON DUPLICATE KEY UPDATE name = VALUES(name)"},
		{d: postgresDialect, want: "INSERT INTO products (id,name) VALUES ($1,$2) ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name"},
		{d: sqliteDialect, want: "INSERT INTO products (id,name) VALUES (?,?) ON CONFLICT (id) DO UPDATE SET name = excluded.name"},
	}

	for _, tt := range tests {
		h := &SQLHandler{dialect: tt.d, builder: sq.StatementBuilder.PlaceholderFormat(tt.d.placeholder)}

		query, args, err := h.builder.Insert("products").Columns("id", "name").Values(1, "Widget").Suffix(tt.d.upsertProduct).ToSql()
		if err != nil {
			t.Fatalf("%s: ToSql error: %v", tt.d.handler, err)
		}
		if query != tt.want || len(args) != 2 {
			t.Fatalf("%s: got %q", tt.d.handler, query)
		}
	}
}

func TestOpenRequiresLocation(t *testing.T) {
	t.Parallel()

	if _, err := OpenSQLite(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty sqlite path")
	}
	if _, err := OpenPostgres(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty postgres dsn")
	}
}
