// Package fallback supplies canned demo queries when no completion provider
// can answer. It is a labeled substitute, not a translation strategy.
package fallback

import "strings"

const (
	TopSalesSQL = `SELECT s.id, p.name, c.name AS customer, s.quantity, s.total_amount, s.sale_date
FROM sales s
JOIN products p ON s.product_id = p.id
JOIN customers c ON s.customer_id = c.id
ORDER BY s.total_amount DESC
LIMIT 10`
	ProductsSQL    = "SELECT * FROM products ORDER BY price DESC LIMIT 10"
	CustomersSQL   = "SELECT * FROM customers LIMIT 10"
	RecentSalesSQL = "SELECT * FROM sales ORDER BY sale_date DESC LIMIT 10"
)

const (
	TemplateTop      = "top_sales"
	TemplateProduct  = "products"
	TemplateCustomer = "customers"
	TemplateDefault  = "recent_sales"
)

type rule struct {
	template string
	keywords []string
	sql      string
}

// Checked in order; the first rule with a matching keyword wins.
var rules = []rule{
	{template: TemplateTop, keywords: []string{"top"}, sql: TopSalesSQL},
	{template: TemplateProduct, keywords: []string{"produkt", "product"}, sql: ProductsSQL},
	{template: TemplateCustomer, keywords: []string{"kunde", "customer"}, sql: CustomersSQL},
}

// Select returns the template name and SQL for question.
func Select(question string) (string, string) {
	q := strings.ToLower(question)
	for _, r := range rules {
		for _, keyword := range r.keywords {
			if strings.Contains(q, keyword) {
				return r.template, r.sql
			}
		}
	}
	return TemplateDefault, RecentSalesSQL
}
