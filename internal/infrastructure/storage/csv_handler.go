package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"EasyPriceMonitor/internal/domain"
	"EasyPriceMonitor/internal/ports"
)

const csvHandlerName = "csv"

var csvHeader = []string{"product_id", "product", "shop", "price", "currency", "timestamp", "product_url"}

type priceKey struct {
	productID int
	shop      string
}

// CSVHandler appends observations to a CSV file. The latest price per
// product/shop pair is indexed once at open and kept current on every write.
type CSVHandler struct {
	path   string
	file   *os.File
	writer *csv.Writer
	latest map[priceKey]decimal.Decimal
}

var _ ports.PriceHandler = (*CSVHandler)(nil)

// OpenCSV indexes the existing history and opens the file for appending,
// writing the header when the file is new or empty.
func OpenCSV(path string) (*CSVHandler, error) {
	if path == "" {
		return nil, fmt.Errorf("csv handler: path is empty")
	}

	latest, err := indexHistory(path)
	if err != nil {
		return nil, fmt.Errorf("csv handler: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("csv handler: open %s: %w", path, err)
	}

	h := &CSVHandler{
		path:   path,
		file:   file,
		writer: csv.NewWriter(file),
		latest: latest,
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("csv handler: stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		if err := h.writeRow(csvHeader); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("csv handler: write header: %w", err)
		}
	}

	return h, nil
}

// Name identifies the handler in logs and alerts.
func (h *CSVHandler) Name() string {
	return csvHandlerName
}

// PreviousPrice answers from the in-memory index.
func (h *CSVHandler) PreviousPrice(_ context.Context, productID int, shop string) (decimal.Decimal, bool, error) {
	price, ok := h.latest[priceKey{productID: productID, shop: shop}]
	return price, ok, nil
}

// Persist appends one row and flushes it to disk.
func (h *CSVHandler) Persist(_ context.Context, obs domain.PriceObservation) error {
	currency := obs.Currency
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	row := []string{
		strconv.Itoa(obs.ProductID),
		obs.ProductName,
		obs.ShopName,
		obs.Price.StringFixed(2),
		currency,
		obs.Timestamp.UTC().Format(time.RFC3339),
		obs.URL,
	}
	if err := h.writeRow(row); err != nil {
		return &domain.PersistError{Handler: csvHandlerName, ProductID: obs.ProductID, Shop: obs.ShopName, Err: err}
	}

	h.latest[priceKey{productID: obs.ProductID, shop: obs.ShopName}] = obs.Price
	return nil
}

// Close flushes pending rows and closes the file.
func (h *CSVHandler) Close() error {
	if h.file == nil {
		return nil
	}
	h.writer.Flush()
	flushErr := h.writer.Error()
	closeErr := h.file.Close()
	h.file = nil
	return errors.Join(flushErr, closeErr)
}

func (h *CSVHandler) writeRow(row []string) error {
	if h.file == nil {
		return fmt.Errorf("%s is closed", h.path)
	}
	if err := h.writer.Write(row); err != nil {
		return err
	}
	h.writer.Flush()
	return h.writer.Error()
}

// indexHistory scans the file once and keeps the last price seen per pair.
// Rows that cannot be read are skipped.
func indexHistory(path string) (map[priceKey]decimal.Decimal, error) {
	latest := make(map[priceKey]decimal.Decimal)

	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return latest, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return latest, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	idCol, okID := cols["product_id"]
	shopCol, okShop := cols["shop"]
	priceCol, okPrice := cols["price"]
	if !okID || !okShop || !okPrice {
		return nil, fmt.Errorf("%s: header must contain product_id, shop and price columns", path)
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if len(record) <= max(idCol, shopCol, priceCol) {
			continue
		}

		id, err := strconv.Atoi(strings.TrimSpace(record[idCol]))
		if err != nil {
			continue
		}
		price, err := decimal.NewFromString(strings.TrimSpace(record[priceCol]))
		if err != nil {
			continue
		}
		latest[priceKey{productID: id, shop: strings.TrimSpace(record[shopCol])}] = price
	}

	return latest, nil
}
