package seed

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Beginner is satisfied by *pgx.Conn and *pgxpool.Pool.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

var (
	customerColumns = []string{"id", "name", "email", "country", "city"}
	productColumns  = []string{"id", "name", "category", "price", "cost", "margin"}
	saleColumns     = []string{"product_id", "customer_id", "quantity", "total_amount", "sale_date"}
)

// LoadResult counts the rows copied per table.
type LoadResult struct {
	Customers int64
	Products  int64
	Sales     int64
}

type Loader struct {
	db Beginner
}

func NewLoader(db Beginner) (*Loader, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &Loader{db: db}, nil
}

// Load copies ds in a single transaction. With truncate set, all three tables
// are emptied and reloaded; otherwise only sales are appended and are
// expected to reference customers and products that already exist.
func (l *Loader) Load(ctx context.Context, ds Dataset, truncate bool) (LoadResult, error) {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return LoadResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var result LoadResult
	if truncate {
		if _, err := tx.Exec(ctx, `TRUNCATE sales, products, customers RESTART IDENTITY CASCADE`); err != nil {
			return LoadResult{}, fmt.Errorf("truncate tables: %w", err)
		}
		if result.Customers, err = tx.CopyFrom(ctx, pgx.Identifier{"customers"}, customerColumns, pgx.CopyFromSlice(len(ds.Customers), func(i int) ([]any, error) {
			c := ds.Customers[i]
			return []any{c.ID, c.Name, c.Email, c.Country, c.City}, nil
		})); err != nil {
			return LoadResult{}, fmt.Errorf("copy customers: %w", err)
		}
		if result.Products, err = tx.CopyFrom(ctx, pgx.Identifier{"products"}, productColumns, pgx.CopyFromSlice(len(ds.Products), func(i int) ([]any, error) {
			p := ds.Products[i]
			return []any{p.ID, p.Name, p.Category, p.Price, p.Cost, p.Margin}, nil
		})); err != nil {
			return LoadResult{}, fmt.Errorf("copy products: %w", err)
		}
		for _, table := range []string{"customers", "products"} {
			if _, err := tx.Exec(ctx, `SELECT setval(pg_get_serial_sequence($1, 'id'), COALESCE((SELECT MAX(id) FROM `+table+`), 0) + 1, false)`, table); err != nil {
				return LoadResult{}, fmt.Errorf("reset %s id sequence: %w", table, err)
			}
		}
	}

	if result.Sales, err = tx.CopyFrom(ctx, pgx.Identifier{"sales"}, saleColumns, pgx.CopyFromSlice(len(ds.Sales), func(i int) ([]any, error) {
		s := ds.Sales[i]
		return []any{s.ProductID, s.CustomerID, s.Quantity, s.TotalAmount, s.SaleDate}, nil
	})); err != nil {
		return LoadResult{}, fmt.Errorf("copy sales: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return LoadResult{}, fmt.Errorf("commit: %w", err)
	}
	return result, nil
}
