// Package schemactx holds the static description of the sales schema that
// prefixes every completion prompt.
package schemactx

import (
	"fmt"
	"strings"
)

type Column struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

type Table struct {
	Name        string   `json:"-"`
	Description string   `json:"description"`
	Columns     []Column `json:"columns"`
}

type Schema struct {
	Tables map[string]Table `json:"tables"`
}

var tables = []Table{
	{
		Name:        "sales",
		Description: "Sales transactions (Verkäufe)",
		Columns: []Column{
			{Name: "id", Type: "integer", Description: "primary key"},
			{Name: "product_id", Type: "integer", Description: "foreign key -> products.id"},
			{Name: "customer_id", Type: "integer", Description: "foreign key -> customers.id"},
			{Name: "quantity", Type: "integer", Description: "units sold"},
			{Name: "total_amount", Type: "decimal", Description: "total revenue in EUR"},
			{Name: "sale_date", Type: "date", Description: "date of sale"},
			{Name: "created_at", Type: "timestamp", Description: "row creation time"},
		},
	},
	{
		Name:        "products",
		Description: "Product catalog (Produkte)",
		Columns: []Column{
			{Name: "id", Type: "integer", Description: "primary key"},
			{Name: "name", Type: "varchar", Description: "product name"},
			{Name: "category", Type: "varchar", Description: "category such as Electronics, Clothing, Food"},
			{Name: "price", Type: "decimal", Description: "sales price in EUR"},
			{Name: "cost", Type: "decimal", Description: "purchase cost in EUR"},
			{Name: "margin", Type: "decimal", Description: "profit margin in percent"},
			{Name: "created_at", Type: "timestamp", Description: "row creation time"},
		},
	},
	{
		Name:        "customers",
		Description: "Customers (Kunden)",
		Columns: []Column{
			{Name: "id", Type: "integer", Description: "primary key"},
			{Name: "name", Type: "varchar", Description: "customer name"},
			{Name: "email", Type: "varchar", Description: "email address"},
			{Name: "country", Type: "varchar", Description: "country"},
			{Name: "city", Type: "varchar", Description: "city"},
			{Name: "created_at", Type: "timestamp", Description: "row creation time"},
		},
	},
}

var rules = []string{
	"Return ONLY the SQL query. No markdown, no explanations.",
	"Generate SELECT statements only.",
	"Use JOINs when more than one table is needed.",
	"Use aggregate functions (SUM, AVG, COUNT) for calculations.",
	"Use ORDER BY when sorting is mentioned.",
	"Use LIMIT when \"Top X\" is mentioned.",
	"German month names map to month numbers (e.g. August = month 8).",
}

var promptContext = build()

// Context returns the prompt prefix. It is computed once and never changes.
func Context() string {
	return promptContext
}

// Tables lists the table names in prompt order.
func Tables() []string {
	names := make([]string, 0, len(tables))
	for _, table := range tables {
		names = append(names, table.Name)
	}
	return names
}

func Describe() Schema {
	out := Schema{Tables: make(map[string]Table, len(tables))}
	for _, table := range tables {
		columns := make([]Column, len(table.Columns))
		copy(columns, table.Columns)
		out.Tables[table.Name] = Table{
			Name:        table.Name,
			Description: table.Description,
			Columns:     columns,
		}
	}
	return out
}

func build() string {
	var b strings.Builder
	b.WriteString("You are a SQL expert. Generate PostgreSQL queries for the following schema:\n\n")
	b.WriteString("TABLES:\n")
	for i, table := range tables {
		fmt.Fprintf(&b, "\n%d. %s (%s)\n", i+1, table.Name, table.Description)
		for _, column := range table.Columns {
			fmt.Fprintf(&b, "   - %s: %s (%s)\n", column.Name, column.Type, column.Description)
		}
	}
	b.WriteString("\nRULES:\n")
	for _, rule := range rules {
		fmt.Fprintf(&b, "- %s\n", rule)
	}
	return b.String()
}
