package seed

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/salesql/salesql/internal/storage"
)

const parquetContentType = "application/vnd.apache.parquet"

type customerRow struct {
	ID      int32  `parquet:"id"`
	Name    string `parquet:"name"`
	Email   string `parquet:"email"`
	Country string `parquet:"country"`
	City    string `parquet:"city"`
}

type productRow struct {
	ID       int32   `parquet:"id"`
	Name     string  `parquet:"name"`
	Category string  `parquet:"category"`
	Price    float64 `parquet:"price"`
	Cost     float64 `parquet:"cost"`
	Margin   float64 `parquet:"margin"`
}

type saleRow struct {
	ProductID   int32   `parquet:"product_id"`
	CustomerID  int32   `parquet:"customer_id"`
	Quantity    int32   `parquet:"quantity"`
	TotalAmount float64 `parquet:"total_amount"`
	SaleDate    string  `parquet:"sale_date"`
}

// ExtractFile is one Parquet object written by Extract.
type ExtractFile struct {
	Table string
	Key   string
	Rows  int
	Size  int64
	ETag  string
}

// Extractor writes one Parquet file per table of a dataset.
type Extractor struct {
	store storage.ObjectStore
}

func NewExtractor(store storage.ObjectStore) (*Extractor, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	return &Extractor{store: store}, nil
}

// Extract uploads customers, products and sales. If any upload fails, the
// objects already written by this run are removed.
func (e *Extractor) Extract(ctx context.Context, ds Dataset, runAt time.Time, runID string) ([]ExtractFile, error) {
	encoded := []struct {
		table string
		rows  int
		data  func() ([]byte, error)
	}{
		{"customers", len(ds.Customers), func() ([]byte, error) { return encodeParquet(customerRows(ds.Customers)) }},
		{"products", len(ds.Products), func() ([]byte, error) { return encodeParquet(productRows(ds.Products)) }},
		{"sales", len(ds.Sales), func() ([]byte, error) { return encodeParquet(saleRows(ds.Sales)) }},
	}

	files := make([]ExtractFile, 0, len(encoded))
	for _, item := range encoded {
		file, err := e.put(ctx, item.table, item.rows, item.data, runAt, runID)
		if err != nil {
			e.cleanup(ctx, files)
			return nil, err
		}
		files = append(files, file)
	}
	return files, nil
}

func (e *Extractor) put(ctx context.Context, table string, rows int, encode func() ([]byte, error), runAt time.Time, runID string) (ExtractFile, error) {
	key, err := storage.BuildExtractPath(table, runAt, runID)
	if err != nil {
		return ExtractFile{}, err
	}
	data, err := encode()
	if err != nil {
		return ExtractFile{}, fmt.Errorf("encode %s: %w", table, err)
	}
	if _, err := e.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{ContentType: parquetContentType}); err != nil {
		return ExtractFile{}, fmt.Errorf("upload %s extract: %w", table, err)
	}
	// The store must report the object at its full size before the run counts it.
	info, err := e.store.Stat(ctx, key)
	if err == nil && info.Size != int64(len(data)) {
		err = fmt.Errorf("stored size %d, expected %d", info.Size, len(data))
	}
	if err != nil {
		_ = e.store.Delete(context.WithoutCancel(ctx), key)
		return ExtractFile{}, fmt.Errorf("verify %s extract: %w", table, err)
	}
	return ExtractFile{Table: table, Key: key, Rows: rows, Size: info.Size, ETag: info.ETag}, nil
}

func (e *Extractor) cleanup(ctx context.Context, files []ExtractFile) {
	for _, file := range files {
		_ = e.store.Delete(context.WithoutCancel(ctx), file.Key)
	}
}

func encodeParquet[T any](rows []T) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[T](buf)
	if _, err := writer.Write(rows); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

func customerRows(in []Customer) []customerRow {
	out := make([]customerRow, 0, len(in))
	for _, c := range in {
		out = append(out, customerRow(c))
	}
	return out
}

func productRows(in []Product) []productRow {
	out := make([]productRow, 0, len(in))
	for _, p := range in {
		out = append(out, productRow(p))
	}
	return out
}

func saleRows(in []Sale) []saleRow {
	out := make([]saleRow, 0, len(in))
	for _, s := range in {
		out = append(out, saleRow{
			ProductID:   s.ProductID,
			CustomerID:  s.CustomerID,
			Quantity:    s.Quantity,
			TotalAmount: s.TotalAmount,
			SaleDate:    s.SaleDate.Format(time.DateOnly),
		})
	}
	return out
}
