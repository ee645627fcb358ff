package metrics

import (
	"sync"
	"time"

	"isdanary/backend/internal/domain"
	"isdanary/backend/internal/live"
)

type Card struct {
	Value   float64 `json:"value"`
	Label   string  `json:"label"`
	Loading bool    `json:"loading"`
}

type Dashboard struct {
	TodaySales      Card         `json:"today_sales"`
	LowStock        Card         `json:"low_stock"`
	MonthlyExpenses Card         `json:"monthly_expenses"`
	InventoryValue  Card         `json:"inventory_value"`
	ProductCount    int          `json:"product_count"`
	StockLevels     []StockLevel `json:"stock_levels"`
	Errors          []string     `json:"errors,omitempty"`
}

// Compute builds a dashboard from three snapshots.
func Compute(products live.Snapshot[domain.Product], sales live.Snapshot[domain.Sale], expenses live.Snapshot[domain.Expense], now time.Time) Dashboard {
	today := TodaySalesTotal(sales.Items, now)
	low := LowStockCount(products.Items)
	monthly := MonthlyExpensesTotal(expenses.Items, now)
	value := InventoryValue(products.Items)

	d := Dashboard{
		TodaySales: Card{
			Value:   today,
			Loading: sales.Loading,
			Label:   StatLabel(sales.Loading, pesoOrEmpty(today)),
		},
		LowStock: Card{
			Value:   float64(low),
			Loading: products.Loading,
			Label:   StatLabel(products.Loading, itemsOrEmpty(low)),
		},
		MonthlyExpenses: Card{
			Value:   monthly,
			Loading: expenses.Loading,
			Label:   StatLabel(expenses.Loading, pesoOrEmpty(monthly)),
		},
		InventoryValue: Card{
			Value:   value,
			Loading: products.Loading,
			Label:   StatLabel(products.Loading, pesoOrEmpty(value)),
		},
		ProductCount: len(products.Items),
		StockLevels:  StockLevels(products.Items),
	}
	for _, msg := range []string{products.Err, sales.Err, expenses.Err} {
		if msg != "" {
			d.Errors = append(d.Errors, msg)
		}
	}
	return d
}

type boardKey struct {
	products uint64
	sales    uint64
	expenses uint64
	year     int
	yday     int
}

// Board keeps a dashboard current for one workspace. It recomputes when any
// of the three snapshots is replaced and, on read, when the calendar day has
// rolled over; otherwise the cached figures are returned.
type Board struct {
	products *live.Products
	sales    *live.Sales
	expenses *live.Expenses
	now      func() time.Time

	mu      sync.Mutex
	key     boardKey
	current Dashboard
	valid   bool

	listenerMu   sync.Mutex
	listeners    map[int]func(Dashboard)
	nextListener int

	cancels []func()
}

func NewBoard(products *live.Products, sales *live.Sales, expenses *live.Expenses, now func() time.Time) *Board {
	if now == nil {
		now = time.Now
	}
	b := &Board{
		products:  products,
		sales:     sales,
		expenses:  expenses,
		now:       now,
		listeners: make(map[int]func(Dashboard)),
	}
	b.cancels = []func(){
		products.Listen(func(live.Snapshot[domain.Product]) { b.refresh() }),
		sales.Listen(func(live.Snapshot[domain.Sale]) { b.refresh() }),
		expenses.Listen(func(live.Snapshot[domain.Expense]) { b.refresh() }),
	}
	return b
}

func (b *Board) Current() Dashboard {
	d, _ := b.compute()
	return d
}

// Listen registers fn for every recomputed dashboard.
func (b *Board) Listen(fn func(Dashboard)) (cancel func()) {
	b.listenerMu.Lock()
	b.nextListener++
	id := b.nextListener
	b.listeners[id] = fn
	b.listenerMu.Unlock()

	return func() {
		b.listenerMu.Lock()
		delete(b.listeners, id)
		b.listenerMu.Unlock()
	}
}

func (b *Board) Close() {
	for _, cancel := range b.cancels {
		cancel()
	}
	b.cancels = nil
}

func (b *Board) refresh() {
	d, changed := b.compute()
	if !changed {
		return
	}
	b.listenerMu.Lock()
	defer b.listenerMu.Unlock()
	for _, fn := range b.listeners {
		fn(d)
	}
}

func (b *Board) compute() (Dashboard, bool) {
	products := b.products.Snapshot()
	sales := b.sales.Snapshot()
	expenses := b.expenses.Snapshot()
	now := b.now()

	key := boardKey{
		products: products.Version,
		sales:    sales.Version,
		expenses: expenses.Version,
		year:     now.Year(),
		yday:     now.YearDay(),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.valid && b.key == key {
		return b.current, false
	}
	b.current = Compute(products, sales, expenses, now)
	b.key = key
	b.valid = true
	return b.current, true
}
