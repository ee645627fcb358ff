// Package metrics derives dashboard and inventory figures from entity
// snapshots. Every function here is pure: same snapshot and clock in, same
// figures out. Money is summed with decimal arithmetic and handed back as
// float64 for the JSON surface.
package metrics

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"isdanary/backend/internal/domain"
)

type SortOrder string

const (
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
)

func ParseSortOrder(raw string) SortOrder {
	if SortOrder(strings.ToLower(strings.TrimSpace(raw))) == SortOldest {
		return SortOldest
	}
	return SortNewest
}

var (
	hundred    = decimal.NewFromInt(100)
	maxFloat64 = decimal.NewFromFloat(math.MaxFloat64)
)

// amount reads a stored number; NaN and infinities count as zero.
func amount(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

// toFloat saturates at the largest float64 so a total is always finite.
func toFloat(d decimal.Decimal) float64 {
	if d.GreaterThan(maxFloat64) {
		return math.MaxFloat64
	}
	return d.InexactFloat64()
}

// TodaySalesTotal sums sales whose creation date, in now's location, is
// now's calendar date.
func TodaySalesTotal(sales []domain.Sale, now time.Time) float64 {
	y, m, d := now.Date()
	total := decimal.Zero
	for _, sale := range sales {
		sy, sm, sd := time.UnixMilli(sale.CreatedAt).In(now.Location()).Date()
		if sy == y && sm == m && sd == d {
			total = total.Add(amount(sale.TotalPrice))
		}
	}
	return toFloat(total)
}

// MonthlyExpensesTotal sums expenses created in now's calendar month.
func MonthlyExpensesTotal(expenses []domain.Expense, now time.Time) float64 {
	y, m, _ := now.Date()
	total := decimal.Zero
	for _, expense := range expenses {
		ey, em, _ := time.UnixMilli(expense.CreatedAt).In(now.Location()).Date()
		if ey == y && em == m {
			total = total.Add(amount(expense.Amount))
		}
	}
	return toFloat(total)
}

// IsLowStock is true only for products with a positive reorder level whose
// stock has fallen to or below it.
func IsLowStock(p domain.Product) bool {
	if !(p.ReorderLevel > 0) {
		return false
	}
	return p.CurrentStock <= p.ReorderLevel
}

func LowStockCount(products []domain.Product) int {
	count := 0
	for _, p := range products {
		if IsLowStock(p) {
			count++
		}
	}
	return count
}

func InventoryValue(products []domain.Product) float64 {
	total := decimal.Zero
	for _, p := range products {
		total = total.Add(amount(p.CurrentStock).Mul(amount(p.Price)))
	}
	return toFloat(total)
}

// FilterProducts keeps products whose name, category or supplier contains
// term (case-insensitive) and orders them by creation time.
func FilterProducts(products []domain.Product, term string, order SortOrder) []domain.Product {
	needle := strings.ToLower(strings.TrimSpace(term))

	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if needle == "" ||
			strings.Contains(strings.ToLower(p.Name), needle) ||
			strings.Contains(strings.ToLower(p.Category), needle) ||
			strings.Contains(strings.ToLower(p.Supplier), needle) {
			out = append(out, p)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if order == SortOldest {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].CreatedAt > out[j].CreatedAt
	})
	return out
}

// SaleTotal is price × quantity, less discountPercent when it is positive,
// never below zero.
func SaleTotal(price float64, quantity int, discountPercent float64) float64 {
	base := amount(price).Mul(decimal.NewFromInt(int64(quantity)))
	if discountPercent > 0 {
		factor := decimal.NewFromInt(1).Sub(amount(discountPercent).Div(hundred))
		base = base.Mul(factor)
	}
	if base.IsNegative() {
		return 0
	}
	return toFloat(base)
}

type StockLevel struct {
	Name  string  `json:"name"`
	Stock float64 `json:"stock"`
}

// StockLevels lists stock per product in snapshot order, for the stock chart.
func StockLevels(products []domain.Product) []StockLevel {
	out := make([]StockLevel, 0, len(products))
	for _, p := range products {
		out = append(out, StockLevel{Name: p.Name, Stock: toFloat(amount(p.CurrentStock))})
	}
	return out
}
