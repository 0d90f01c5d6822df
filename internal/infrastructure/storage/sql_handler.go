package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"EasyPriceMonitor/internal/domain"
	"EasyPriceMonitor/internal/ports"
)

// SQLHandler keeps price history in a relational database. MySQL, Postgres
// and SQLite share the same queries; only placeholders and DDL differ.
type SQLHandler struct {
	db      *sql.DB
	dialect dialect
	builder sq.StatementBuilderType
}

var _ ports.PriceHandler = (*SQLHandler)(nil)

// newSQLHandler wires an opened database and creates the tables if absent.
func newSQLHandler(ctx context.Context, db *sql.DB, d dialect) (*SQLHandler, error) {
	h := &SQLHandler{
		db:      db,
		dialect: d,
		builder: sq.StatementBuilder.PlaceholderFormat(d.placeholder),
	}
	if err := h.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return h, nil
}

// Name identifies the handler in logs and alerts.
func (h *SQLHandler) Name() string {
	return h.dialect.handler
}

func (h *SQLHandler) ensureSchema(ctx context.Context) error {
	for _, stmt := range h.dialect.schema {
		if _, err := h.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s handler: create schema: %w", h.dialect.handler, err)
		}
	}
	return nil
}

// PreviousPrice returns the most recent stored price for the pair.
func (h *SQLHandler) PreviousPrice(ctx context.Context, productID int, shop string) (decimal.Decimal, bool, error) {
	query, args, err := h.builder.
		Select("price").
		From("prices").
		Where(sq.Eq{"product_id": productID, "shop": shop}).
		OrderBy("observed_at DESC", "id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return decimal.Zero, false, h.persistError(productID, shop, fmt.Errorf("build query: %w", err))
	}

	var price decimal.Decimal
	err = h.db.QueryRowContext(ctx, query, args...).Scan(&price)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return decimal.Zero, false, nil
	case err != nil:
		return decimal.Zero, false, h.persistError(productID, shop, fmt.Errorf("query previous price: %w", err))
	}
	return price, true, nil
}

// Persist upserts the product and its shop URL, then appends the price row.
func (h *SQLHandler) Persist(ctx context.Context, obs domain.PriceObservation) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return h.persistError(obs.ProductID, obs.ShopName, fmt.Errorf("begin: %w", err))
	}

	if err := h.insert(ctx, tx, obs); err != nil {
		_ = tx.Rollback()
		return h.persistError(obs.ProductID, obs.ShopName, err)
	}

	if err := tx.Commit(); err != nil {
		return h.persistError(obs.ProductID, obs.ShopName, fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (h *SQLHandler) insert(ctx context.Context, tx *sql.Tx, obs domain.PriceObservation) error {
	currency := obs.Currency
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	statements := []sq.InsertBuilder{
		h.builder.Insert("products").
			Columns("id", "name").
			Values(obs.ProductID, obs.ProductName).
			Suffix(h.dialect.upsertProduct),
		h.builder.Insert("product_urls").
			Columns("product_id", "shop", "url").
			Values(obs.ProductID, obs.ShopName, obs.URL).
			Suffix(h.dialect.upsertURL),
		h.builder.Insert("prices").
			Columns("product_id", "shop", "price", "currency", "observed_at").
			Values(obs.ProductID, obs.ShopName, obs.Price.StringFixed(2), currency, obs.Timestamp.UTC()),
	}

	for _, stmt := range statements {
		query, args, err := stmt.ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert: %w", err)
		}
	}
	return nil
}

// Close releases the connection pool.
func (h *SQLHandler) Close() error {
	if h.db == nil {
		return nil
	}
	return h.db.Close()
}

func (h *SQLHandler) persistError(productID int, shop string, err error) error {
	return &domain.PersistError{Handler: h.dialect.handler, ProductID: productID, Shop: shop, Err: err}
}
