package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"EasyPriceMonitor/internal/config"
)

// dialect captures what differs between the supported SQL engines.
type dialect struct {
	handler       string
	driver        string
	placeholder   sq.PlaceholderFormat
	schema        []string
	upsertProduct string
	upsertURL     string
}

var mysqlDialect = dialect{
	handler:     "mysql",
	driver:      "mysql",
	placeholder: sq.Question,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS products (
			id INT NOT NULL PRIMARY KEY,
			name VARCHAR(255) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS product_urls (
			product_id INT NOT NULL,
			shop VARCHAR(64) NOT NULL,
			url TEXT NOT NULL,
			PRIMARY KEY (product_id, shop)
		)`,
		`CREATE TABLE IF NOT EXISTS prices (
			id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			product_id INT NOT NULL,
			shop VARCHAR(64) NOT NULL,
			price DECIMAL(10,2) NOT NULL,
			currency CHAR(3) NOT NULL,
			observed_at DATETIME(6) NOT NULL,
			INDEX idx_prices_lookup (product_id, shop, observed_at)
		)`,
	},
	upsertProduct: "ON DUPLICATE KEY UPDATE name = VALUES(name)",
	upsertURL:     "ON DUPLICATE KEY UPDATE url = VALUES(url)",
}

var postgresDialect = dialect{
	handler:     "postgres",
	driver:      "postgres",
	placeholder: sq.Dollar,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS products (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS product_urls (
			product_id INTEGER NOT NULL,
			shop TEXT NOT NULL,
			url TEXT NOT NULL,
			PRIMARY KEY (product_id, shop)
		)`,
		`CREATE TABLE IF NOT EXISTS prices (
			id BIGSERIAL PRIMARY KEY,
			product_id INTEGER NOT NULL,
			shop TEXT NOT NULL,
			price NUMERIC(10,2) NOT NULL,
			currency CHAR(3) NOT NULL,
			observed_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_prices_lookup ON prices (product_id, shop, observed_at)`,
	},
	upsertProduct: "ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name",
	upsertURL:     "ON CONFLICT (product_id, shop) DO UPDATE SET url = EXCLUDED.url",
}

var sqliteDialect = dialect{
	handler:     "sqlite",
	driver:      "sqlite",
	placeholder: sq.Question,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS products (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS product_urls (
			product_id INTEGER NOT NULL,
			shop TEXT NOT NULL,
			url TEXT NOT NULL,
			PRIMARY KEY (product_id, shop)
		)`,
		`CREATE TABLE IF NOT EXISTS prices (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			product_id INTEGER NOT NULL,
			shop TEXT NOT NULL,
			price TEXT NOT NULL,
			currency TEXT NOT NULL,
			observed_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_prices_lookup ON prices (product_id, shop, observed_at)`,
	},
	upsertProduct: "ON CONFLICT (id) DO UPDATE SET name = excluded.name",
	upsertURL:     "ON CONFLICT (product_id, shop) DO UPDATE SET url = excluded.url",
}

// OpenMySQL connects with the watchlist's MySQL parameters and prepares the schema.
func OpenMySQL(ctx context.Context, cfg config.MySQLConfig) (*SQLHandler, error) {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Timeout = 10 * time.Second

	return open(ctx, mysqlDialect, mc.FormatDSN())
}

// OpenPostgres connects using a lib/pq DSN and prepares the schema.
func OpenPostgres(ctx context.Context, dsn string) (*SQLHandler, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres handler: dsn is empty")
	}
	return open(ctx, postgresDialect, dsn)
}

// OpenSQLite opens (or creates) a local database file.
func OpenSQLite(ctx context.Context, path string) (*SQLHandler, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite handler: path is empty")
	}
	return open(ctx, sqliteDialect, path)
}

func open(ctx context.Context, d dialect, dsn string) (*SQLHandler, error) {
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s handler: open: %w", d.handler, err)
	}
	if d.driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}

	h, err := newSQLHandler(ctx, db, d)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return h, nil
}
