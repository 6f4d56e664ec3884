package seed

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

var fixedNow = time.Date(2026, 2, 19, 7, 30, 0, 0, time.UTC)

func newTestGenerator(seed int64) *Generator {
	g := NewGenerator(seed)
	g.now = func() time.Time { return fixedNow }
	return g
}

func TestGeneratorDeterministicForSeed(t *testing.T) {
	cfg := DefaultConfig()
	first := newTestGenerator(42).Generate(cfg)
	second := newTestGenerator(42).Generate(cfg)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("datasets differ for the same seed")
	}

	other := newTestGenerator(43).Generate(cfg)
	if reflect.DeepEqual(first.Sales, other.Sales) {
		t.Fatal("datasets equal for different seeds")
	}
}

func TestGeneratorHonoursBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sales = 500
	ds := newTestGenerator(7).Generate(cfg)

	if len(ds.Customers) != 50 || len(ds.Products) != 20 || len(ds.Sales) != 500 {
		t.Fatalf("sizes = %d/%d/%d", len(ds.Customers), len(ds.Products), len(ds.Sales))
	}
	oldest := fixedNow.Truncate(24*time.Hour).AddDate(0, 0, -365)
	for i, sale := range ds.Sales {
		if sale.ProductID < 1 || sale.ProductID > 20 {
			t.Fatalf("sale %d product_id = %d", i, sale.ProductID)
		}
		if sale.CustomerID < 1 || sale.CustomerID > 50 {
			t.Fatalf("sale %d customer_id = %d", i, sale.CustomerID)
		}
		if sale.Quantity < 1 || sale.Quantity > 5 {
			t.Fatalf("sale %d quantity = %d", i, sale.Quantity)
		}
		if sale.TotalAmount < 10 || sale.TotalAmount > 2000 {
			t.Fatalf("sale %d total_amount = %v", i, sale.TotalAmount)
		}
		if sale.SaleDate.Before(oldest) || sale.SaleDate.After(fixedNow) {
			t.Fatalf("sale %d sale_date = %s", i, sale.SaleDate)
		}
	}
}

func TestGeneratorProducts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Products = 25
	ds := newTestGenerator(1).Generate(cfg)

	seen := map[string]bool{}
	for _, product := range ds.Products {
		if seen[product.Name] {
			t.Fatalf("duplicate product name %q", product.Name)
		}
		seen[product.Name] = true
		if product.Cost <= 0 || product.Cost >= product.Price {
			t.Fatalf("product %q cost = %v price = %v", product.Name, product.Cost, product.Price)
		}
		if product.Margin <= 0 || product.Margin >= 100 {
			t.Fatalf("product %q margin = %v", product.Name, product.Margin)
		}
	}
	if ds.Products[20].Name != "Laptop Pro 14 2" {
		t.Fatalf("Products[20].Name = %q", ds.Products[20].Name)
	}
}

func TestGeneratorCustomerEmailsAreASCII(t *testing.T) {
	ds := newTestGenerator(3).Generate(DefaultConfig())
	for _, customer := range ds.Customers {
		if !strings.HasSuffix(customer.Email, "@example.com") {
			t.Fatalf("email = %q", customer.Email)
		}
		for _, r := range customer.Email {
			if r > 127 {
				t.Fatalf("email %q contains non-ASCII rune", customer.Email)
			}
		}
	}
}
