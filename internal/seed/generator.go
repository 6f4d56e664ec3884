// Package seed generates demo sales data, loads it into PostgreSQL and
// optionally lands Parquet extracts of it in object storage.
package seed

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

type Customer struct {
	ID      int32
	Name    string
	Email   string
	Country string
	City    string
}

type Product struct {
	ID       int32
	Name     string
	Category string
	Price    float64
	Cost     float64
	Margin   float64
}

type Sale struct {
	ProductID   int32
	CustomerID  int32
	Quantity    int32
	TotalAmount float64
	SaleDate    time.Time
}

// Dataset is one generated batch. Sales reference customer and product IDs
// in 1..len(Customers) and 1..len(Products).
type Dataset struct {
	Customers []Customer
	Products  []Product
	Sales     []Sale
}

type catalogItem struct {
	name     string
	category string
	price    float64
}

var catalog = []catalogItem{
	{"Laptop Pro 14", "Elektronik", 1499},
	{"Laptop Air 13", "Elektronik", 1099},
	{"Monitor 27 Zoll", "Elektronik", 329},
	{"Docking Station", "Elektronik", 189},
	{"Kabellose Maus", "Zubehör", 39},
	{"Mechanische Tastatur", "Zubehör", 119},
	{"USB-C Kabel", "Zubehör", 15},
	{"Headset", "Zubehör", 89},
	{"Webcam HD", "Zubehör", 69},
	{"Bürostuhl Ergo", "Möbel", 449},
	{"Schreibtisch höhenverstellbar", "Möbel", 699},
	{"Rollcontainer", "Möbel", 159},
	{"Druckerpapier A4", "Bürobedarf", 25},
	{"Notizbücher 5er", "Bürobedarf", 19},
	{"Kugelschreiber Set", "Bürobedarf", 12},
	{"Laserdrucker", "Elektronik", 279},
	{"Toner Schwarz", "Bürobedarf", 79},
	{"Cloud Backup Lizenz", "Software", 120},
	{"Office Suite Lizenz", "Software", 249},
	{"Antivirus Lizenz", "Software", 49},
}

var (
	firstNames = []string{"Anna", "Ben", "Clara", "David", "Emma", "Felix", "Greta", "Hannah", "Jonas", "Lena", "Max", "Mia", "Noah", "Paul", "Sophie"}
	lastNames  = []string{"Müller", "Schmidt", "Schneider", "Fischer", "Weber", "Meyer", "Wagner", "Becker", "Hoffmann", "Koch"}
	locations  = []struct{ country, city string }{
		{"Deutschland", "Berlin"},
		{"Deutschland", "München"},
		{"Deutschland", "Hamburg"},
		{"Deutschland", "Köln"},
		{"Österreich", "Wien"},
		{"Schweiz", "Zürich"},
	}
)

type Generator struct {
	rnd *rand.Rand
	now func() time.Time
}

func NewGenerator(seed int64) *Generator {
	return &Generator{
		rnd: rand.New(rand.NewSource(seed)),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Generate builds customers, products and sales. Sale dates fall within the
// last days days, amounts within 10 to 2000 and quantities within 1 to 5.
func (g *Generator) Generate(cfg Config) Dataset {
	ds := Dataset{
		Customers: make([]Customer, 0, cfg.Customers),
		Products:  make([]Product, 0, cfg.Products),
		Sales:     make([]Sale, 0, cfg.Sales),
	}
	for i := 1; i <= cfg.Customers; i++ {
		ds.Customers = append(ds.Customers, g.customer(int32(i)))
	}
	for i := 1; i <= cfg.Products; i++ {
		ds.Products = append(ds.Products, g.product(int32(i)))
	}

	today := g.now().Truncate(24 * time.Hour)
	for i := 0; i < cfg.Sales; i++ {
		ds.Sales = append(ds.Sales, Sale{
			ProductID:   int32(g.rnd.Intn(cfg.Products) + 1),
			CustomerID:  int32(g.rnd.Intn(cfg.Customers) + 1),
			Quantity:    int32(g.rnd.Intn(5) + 1),
			TotalAmount: round2(10 + g.rnd.Float64()*1990),
			SaleDate:    today.AddDate(0, 0, -g.rnd.Intn(cfg.Days+1)),
		})
	}
	return ds
}

func (g *Generator) customer(id int32) Customer {
	first := pickOne(g.rnd, firstNames)
	last := pickOne(g.rnd, lastNames)
	location := locations[g.rnd.Intn(len(locations))]
	return Customer{
		ID:      id,
		Name:    first + " " + last,
		Email:   fmt.Sprintf("%s.%s%d@example.com", asciiFold(first), asciiFold(last), id),
		Country: location.country,
		City:    location.city,
	}
}

func (g *Generator) product(id int32) Product {
	item := catalog[int(id-1)%len(catalog)]
	name := item.name
	if int(id) > len(catalog) {
		name = fmt.Sprintf("%s %d", item.name, (int(id)-1)/len(catalog)+1)
	}
	cost := round2(item.price * (0.45 + g.rnd.Float64()*0.35))
	return Product{
		ID:       id,
		Name:     name,
		Category: item.category,
		Price:    item.price,
		Cost:     cost,
		Margin:   round2((item.price - cost) / item.price * 100),
	}
}

var umlauts = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss", "Ä", "Ae", "Ö", "Oe", "Ü", "Ue")

func asciiFold(value string) string {
	return strings.ToLower(umlauts.Replace(value))
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
