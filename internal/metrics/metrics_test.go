package metrics

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"isdanary/backend/internal/docstore/memory"
	"isdanary/backend/internal/domain"
	"isdanary/backend/internal/live"
	"isdanary/backend/internal/records"
	"isdanary/backend/internal/session"
)

var manila = time.FixedZone("PHT", 8*60*60)

func TestTodaySalesTotalUsesLocalCalendarDate(t *testing.T) {
	now := time.Date(2026, time.March, 14, 10, 0, 0, 0, manila)
	sales := []domain.Sale{
		{TotalPrice: 100, CreatedAt: time.Date(2026, time.March, 14, 0, 5, 0, 0, manila).UnixMilli()},
		{TotalPrice: 50.25, CreatedAt: time.Date(2026, time.March, 14, 23, 59, 0, 0, manila).UnixMilli()},
		{TotalPrice: 999, CreatedAt: time.Date(2026, time.March, 13, 23, 59, 0, 0, manila).UnixMilli()},
		{TotalPrice: 999, CreatedAt: time.Date(2025, time.March, 14, 12, 0, 0, 0, manila).UnixMilli()},
	}
	assert.Equal(t, 150.25, TodaySalesTotal(sales, now))
	assert.Equal(t, 0.0, TodaySalesTotal(nil, now))
}

func TestMonthlyExpensesTotal(t *testing.T) {
	now := time.Date(2026, time.March, 31, 20, 0, 0, 0, manila)
	expenses := []domain.Expense{
		{Amount: 0.1, CreatedAt: time.Date(2026, time.March, 1, 0, 0, 0, 0, manila).UnixMilli()},
		{Amount: 0.2, CreatedAt: time.Date(2026, time.March, 30, 0, 0, 0, 0, manila).UnixMilli()},
		{Amount: 500, CreatedAt: time.Date(2026, time.February, 28, 0, 0, 0, 0, manila).UnixMilli()},
		{Amount: 500, CreatedAt: time.Date(2025, time.March, 3, 0, 0, 0, 0, manila).UnixMilli()},
	}
	assert.Equal(t, 0.3, MonthlyExpensesTotal(expenses, now))
}

func TestLowStockCount(t *testing.T) {
	products := []domain.Product{
		{Name: "at threshold", CurrentStock: 5, ReorderLevel: 5},
		{Name: "below", CurrentStock: 1, ReorderLevel: 5},
		{Name: "above", CurrentStock: 6, ReorderLevel: 5},
		{Name: "no reorder level", CurrentStock: 0, ReorderLevel: 0},
		{Name: "negative reorder level", CurrentStock: -3, ReorderLevel: -1},
	}
	assert.Equal(t, 2, LowStockCount(products))
	assert.Equal(t, 0, LowStockCount(nil))
}

func TestInventoryValue(t *testing.T) {
	products := []domain.Product{
		{CurrentStock: 10, Price: 120.5},
		{CurrentStock: 2.5, Price: 80},
		{CurrentStock: 0, Price: 1000},
	}
	assert.Equal(t, 1405.0, InventoryValue(products))
}

func TestTotalsStayFinite(t *testing.T) {
	products := []domain.Product{
		{Name: "Tuna", CurrentStock: 10, Price: 1e308},
		{Name: "Broken", CurrentStock: math.Inf(1), Price: math.NaN()},
	}
	value := InventoryValue(products)
	assert.False(t, math.IsInf(value, 0))
	assert.Equal(t, math.MaxFloat64, value)

	total := SaleTotal(1e308, 2, 0)
	assert.False(t, math.IsInf(total, 0))
	assert.Equal(t, 0.0, SaleTotal(math.NaN(), 2, 0))

	now := time.Date(2026, time.March, 14, 10, 0, 0, 0, manila)
	sales := []domain.Sale{{TotalPrice: math.Inf(1), CreatedAt: now.UnixMilli()}, {TotalPrice: 40, CreatedAt: now.UnixMilli()}}
	assert.Equal(t, 40.0, TodaySalesTotal(sales, now))

	dash := Compute(
		live.Snapshot[domain.Product]{Items: products},
		live.Snapshot[domain.Sale]{Items: sales},
		live.Snapshot[domain.Expense]{},
		now,
	)
	_, err := json.Marshal(dash)
	require.NoError(t, err)
}

func TestFilterProducts(t *testing.T) {
	products := []domain.Product{
		{ID: "a", Name: "Fresh Tilapia", Category: "Freshwater", Supplier: "Laguna Farms", CreatedAt: 1},
		{ID: "b", Name: "Bangus", Category: "Milkfish", Supplier: "Dagupan Co", CreatedAt: 3},
		{ID: "c", Name: "Shrimp", Category: "Shellfish", Supplier: "laguna bay", CreatedAt: 2},
	}

	ids := func(items []domain.Product) []string {
		out := make([]string, 0, len(items))
		for _, p := range items {
			out = append(out, p.ID)
		}
		return out
	}

	assert.Equal(t, []string{"b", "c", "a"}, ids(FilterProducts(products, "", SortNewest)))
	assert.Equal(t, []string{"a", "c", "b"}, ids(FilterProducts(products, "  ", SortOldest)))
	assert.Equal(t, []string{"c", "a"}, ids(FilterProducts(products, "LAGUNA", SortNewest)))
	assert.Equal(t, []string{"b"}, ids(FilterProducts(products, "milk", SortNewest)))
	assert.Empty(t, FilterProducts(products, "salmon", SortNewest))

	// input order is not disturbed
	assert.Equal(t, "a", products[0].ID)
}

func TestParseSortOrder(t *testing.T) {
	assert.Equal(t, SortOldest, ParseSortOrder(" Oldest "))
	assert.Equal(t, SortNewest, ParseSortOrder("newest"))
	assert.Equal(t, SortNewest, ParseSortOrder("sideways"))
}

func TestSaleTotal(t *testing.T) {
	assert.Equal(t, 270.0, SaleTotal(100, 3, 10))
	assert.Equal(t, 100.0, SaleTotal(50, 2, 0))
	assert.Equal(t, 100.0, SaleTotal(50, 2, -5))
	assert.Equal(t, 0.0, SaleTotal(50, 2, 150))
	assert.Equal(t, 0.0, SaleTotal(50, 0, 10))
	assert.Equal(t, 0.0, SaleTotal(50, 2, 100))
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "₱1,234.50", FormatPeso(1234.5))
	assert.Equal(t, "₱270.00", FormatPeso(270))
	assert.Equal(t, "1 item", ItemsLabel(1))
	assert.Equal(t, "3 items", ItemsLabel(3))

	assert.Equal(t, LoadingLabel, StatLabel(true, "₱5.00"))
	assert.Equal(t, NoDataLabel, StatLabel(false, ""))
	assert.Equal(t, "₱5.00", StatLabel(false, "₱5.00"))

	assert.Equal(t, "juan", DisplayName("juan@isdanary.ph"))
	assert.Equal(t, "there", DisplayName(""))
	assert.Equal(t, "there", DisplayName("@isdanary.ph"))
}

func TestComputeCards(t *testing.T) {
	now := time.Date(2026, time.March, 14, 10, 0, 0, 0, manila)
	products := live.Snapshot[domain.Product]{Items: []domain.Product{
		{Name: "Tilapia", CurrentStock: 2, ReorderLevel: 5, Price: 100},
	}}
	sales := live.Snapshot[domain.Sale]{Loading: true}
	expenses := live.Snapshot[domain.Expense]{Err: "Unable to load expenses right now."}

	d := Compute(products, sales, expenses, now)
	assert.Equal(t, LoadingLabel, d.TodaySales.Label)
	assert.Equal(t, "1 item", d.LowStock.Label)
	assert.Equal(t, NoDataLabel, d.MonthlyExpenses.Label)
	assert.Equal(t, "₱200.00", d.InventoryValue.Label)
	assert.Equal(t, 1, d.ProductCount)
	assert.Equal(t, []StockLevel{{Name: "Tilapia", Stock: 2}}, d.StockLevels)
	assert.Equal(t, []string{"Unable to load expenses right now."}, d.Errors)
}

func TestBoardRecomputesOnSnapshotReplacement(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, time.March, 14, 10, 0, 0, 0, manila)
	clock := func() time.Time { return now }

	store := memory.New()
	holder := session.NewHolder()
	holder.Init(&domain.Principal{ID: "u1", Email: "juan@isdanary.ph"})
	opts := live.Options{OwnerScoped: true, Clock: clock}
	products := live.NewProducts(store, holder, opts)
	sales := live.NewSales(store, holder, opts)
	expenses := live.NewExpenses(store, holder, opts)
	board := NewBoard(products, sales, expenses, clock)
	defer board.Close()

	var pushed []Dashboard
	board.Listen(func(d Dashboard) { pushed = append(pushed, d) })

	assert.Equal(t, NoDataLabel, board.Current().TodaySales.Label)

	_, err := sales.Create(ctx, records.SaleFields(domain.SaleInput{ProductID: "p1", ProductName: "Tilapia", Quantity: 3, TotalPrice: 270}))
	require.NoError(t, err)

	d := board.Current()
	assert.Equal(t, 270.0, d.TodaySales.Value)
	assert.Equal(t, "₱270.00", d.TodaySales.Label)
	require.NotEmpty(t, pushed)
	assert.Equal(t, 270.0, pushed[len(pushed)-1].TodaySales.Value)

	count := len(pushed)
	board.refresh()
	assert.Len(t, pushed, count, "unchanged snapshots must not recompute")

	now = now.Add(24 * time.Hour)
	assert.Equal(t, 0.0, board.Current().TodaySales.Value)
}
