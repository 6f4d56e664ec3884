package sqlexec

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/parquet-go/parquet-go"

	"github.com/salesql/salesql/internal/query"
)

func mockOpener(db *sql.DB) Opener {
	return func(context.Context, string) (*sql.DB, error) {
		return db, nil
	}
}

func TestExecuteReturnsOrderedRows(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	mock.ExpectQuery(`SELECT \* FROM products ORDER BY price DESC LIMIT 10`).
		WillReturnRows(sqlmock.NewRows([]string{"name", "price"}).
			AddRow([]byte("Laptop"), 999.5).
			AddRow("Mouse", 19.0))

	executor := NewWithOpener(Config{DSN: "mock"}, mockOpener(db))
	result, err := executor.Execute(context.Background(), query.Request{SQL: "SELECT * FROM products ORDER BY price DESC LIMIT 10", MaxRows: 1})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("len(Rows) = %d, want 2 with limit mode none", len(result.Rows))
	}
	raw, err := json.Marshal(result.Rows)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(raw) != `[{"name":"Laptop","price":999.5},{"name":"Mouse","price":19}]` {
		t.Fatalf("rows = %s", raw)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestExecuteWrapModeInjectsLimit(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	mock.ExpectQuery("SELECT * FROM (\nSELECT * FROM sales\n) AS q LIMIT 3").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	executor := NewWithOpener(Config{DSN: "mock", LimitMode: query.LimitWrap}, mockOpener(db))
	if _, err := executor.Execute(context.Background(), query.Request{SQL: "SELECT * FROM sales;", MaxRows: 3}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestExecuteTruncateModeCapsRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	mock.ExpectQuery("SELECT id FROM sales").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2).AddRow(3))

	executor := NewWithOpener(Config{DSN: "mock", LimitMode: query.LimitTruncate}, mockOpener(db))
	result, err := executor.Execute(context.Background(), query.Request{SQL: "SELECT id FROM sales", MaxRows: 2})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("len(Rows) = %d", len(result.Rows))
	}
}

func TestExecuteClassifiesErrors(t *testing.T) {
	t.Run("open failure", func(t *testing.T) {
		executor := NewWithOpener(Config{DSN: "x"}, func(context.Context, string) (*sql.DB, error) {
			return nil, errors.New("bad dsn")
		})
		_, err := executor.Execute(context.Background(), query.Request{SQL: "SELECT 1"})
		if query.KindOf(err) != query.KindConnection {
			t.Fatalf("KindOf() = %q, err = %v", query.KindOf(err), err)
		}
	})

	t.Run("ping failure", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		if err != nil {
			t.Fatalf("sqlmock.New: %v", err)
		}
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))
		executor := NewWithOpener(Config{DSN: "x"}, mockOpener(db))
		_, err = executor.Execute(context.Background(), query.Request{SQL: "SELECT 1"})
		if query.KindOf(err) != query.KindConnection {
			t.Fatalf("KindOf() = %q, err = %v", query.KindOf(err), err)
		}
	})

	t.Run("query failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("sqlmock.New: %v", err)
		}
		mock.ExpectQuery("SELEKT").WillReturnError(errors.New(`syntax error at or near "SELEKT"`))
		executor := NewWithOpener(Config{DSN: "x"}, mockOpener(db))
		_, err = executor.Execute(context.Background(), query.Request{SQL: "SELEKT 1"})
		var queryErr *query.Error
		if !errors.As(err, &queryErr) || queryErr.Kind != query.KindExecution {
			t.Fatalf("err = %v, want execution error", err)
		}
	})

	t.Run("row failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("sqlmock.New: %v", err)
		}
		mock.ExpectQuery("SELECT id FROM sales").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).RowError(0, errors.New("stream broken")))
		executor := NewWithOpener(Config{DSN: "x"}, mockOpener(db))
		_, err = executor.Execute(context.Background(), query.Request{SQL: "SELECT id FROM sales"})
		if query.KindOf(err) != query.KindExecution {
			t.Fatalf("KindOf() = %q, err = %v", query.KindOf(err), err)
		}
	})
}

func TestPingReportsConnectionError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	mock.ExpectPing().WillReturnError(errors.New("down"))
	executor := NewWithOpener(Config{DSN: "x"}, mockOpener(db))
	if err := executor.Ping(context.Background()); query.KindOf(err) != query.KindConnection {
		t.Fatalf("Ping() error = %v", err)
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	if _, err := New(Config{Driver: "oracle", DSN: "x"}); err == nil {
		t.Fatal("New() expected error for unknown driver")
	}
	if _, err := New(Config{Driver: "sqlite"}); err == nil {
		t.Fatal("New() expected error for empty dsn")
	}
}

func TestSQLiteTopSalesOnEmptyTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sales.db")
	setup, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, stmt := range []string{
		`CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT, email TEXT, country TEXT, city TEXT)`,
		`CREATE TABLE products (id INTEGER PRIMARY KEY, name TEXT, category TEXT, price REAL, cost REAL, margin REAL)`,
		`CREATE TABLE sales (id INTEGER PRIMARY KEY, product_id INTEGER, customer_id INTEGER, quantity INTEGER, total_amount REAL, sale_date TEXT)`,
	} {
		if _, err := setup.Exec(stmt); err != nil {
			t.Fatalf("setup %q: %v", stmt, err)
		}
	}
	_ = setup.Close()

	executor, err := New(Config{Driver: "sqlite", DSN: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	result, err := executor.Execute(context.Background(), query.Request{SQL: `SELECT s.id, p.name, c.name AS customer, s.total_amount
FROM sales s JOIN products p ON s.product_id = p.id JOIN customers c ON s.customer_id = c.id
ORDER BY s.total_amount DESC LIMIT 10`})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Rows == nil || len(result.Rows) != 0 {
		t.Fatalf("Rows = %#v, want empty non-nil slice", result.Rows)
	}
	if len(result.Columns) != 4 {
		t.Fatalf("Columns = %#v", result.Columns)
	}

	if _, err := executor.Execute(context.Background(), query.Request{SQL: "SELECT * FROM missing_table"}); query.KindOf(err) != query.KindExecution {
		t.Fatalf("missing table error = %v", err)
	}
}

func TestSQLiteWrapModeKeepsTrailingComment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sales.db")
	setup, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, stmt := range []string{
		`CREATE TABLE sales (id INTEGER PRIMARY KEY, total_amount REAL)`,
		`INSERT INTO sales (total_amount) VALUES (10), (20), (30)`,
	} {
		if _, err := setup.Exec(stmt); err != nil {
			t.Fatalf("setup %q: %v", stmt, err)
		}
	}
	_ = setup.Close()

	executor, err := New(Config{Driver: "sqlite", DSN: path, LimitMode: query.LimitWrap})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	result, err := executor.Execute(context.Background(), query.Request{
		SQL:     "SELECT id FROM sales ORDER BY id DESC -- newest first",
		MaxRows: 2,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("len(Rows) = %d, want 2", len(result.Rows))
	}
}

type extractProduct struct {
	Name  string  `parquet:"name"`
	Price float64 `parquet:"price"`
}

func TestDuckDBQueriesParquetExtract(t *testing.T) {
	dir := t.TempDir()
	extract := filepath.Join(dir, "products.parquet")
	file, err := os.Create(extract)
	if err != nil {
		t.Fatalf("create extract: %v", err)
	}
	writer := parquet.NewGenericWriter[extractProduct](file)
	if _, err := writer.Write([]extractProduct{
		{Name: "Headset", Price: 89},
		{Name: "Laptop Pro 14", Price: 1499},
		{Name: "USB-C Kabel", Price: 15},
	}); err != nil {
		t.Fatalf("write extract: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	_ = file.Close()

	executor, err := New(Config{Driver: "duckdb", DSN: filepath.Join(dir, "sales.duckdb"), LimitMode: query.LimitWrap})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	result, err := executor.Execute(context.Background(), query.Request{
		SQL:     "SELECT name, price FROM read_parquet('" + extract + "') ORDER BY price DESC;",
		MaxRows: 2,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("len(Rows) = %d, want 2", len(result.Rows))
	}
	name, _ := result.Rows[0].Get("name")
	price, _ := result.Rows[0].Get("price")
	if name != "Laptop Pro 14" || price != float64(1499) {
		t.Fatalf("first row = %v/%v", name, price)
	}
}
