package service

import (
	"strconv"

	"isdanary/backend/internal/domain"
	"isdanary/backend/internal/form"
	"isdanary/backend/internal/metrics"
	"isdanary/backend/internal/workspace"
)

type FormStatus struct {
	State   form.State `json:"state"`
	Message string     `json:"message,omitempty"`
}

func formStatus(m *form.Machine) FormStatus {
	state, message := m.State()
	return FormStatus{State: state, Message: message}
}

type DashboardView struct {
	DisplayName string `json:"display_name"`
	metrics.Dashboard
}

type ProductRow struct {
	domain.Product
	LowStock   bool   `json:"low_stock"`
	PriceLabel string `json:"price_label"`
}

type ProductsView struct {
	Items          []ProductRow      `json:"items"`
	Total          int               `json:"total"`
	Search         string            `json:"search"`
	Sort           metrics.SortOrder `json:"sort"`
	InventoryValue string            `json:"inventory_value"`
	LowStockCount  int               `json:"low_stock_count"`
	Loading        bool              `json:"loading"`
	Error          string            `json:"error,omitempty"`
	Form           FormStatus        `json:"form"`
}

func buildProductsView(ws *workspace.Workspace, search string, order metrics.SortOrder) ProductsView {
	snap := ws.Products.Snapshot()
	filtered := metrics.FilterProducts(snap.Items, search, order)

	rows := make([]ProductRow, 0, len(filtered))
	for _, p := range filtered {
		rows = append(rows, ProductRow{
			Product:    p,
			LowStock:   metrics.IsLowStock(p),
			PriceLabel: metrics.FormatPeso(p.Price),
		})
	}
	return ProductsView{
		Items:          rows,
		Total:          len(snap.Items),
		Search:         search,
		Sort:           order,
		InventoryValue: metrics.FormatPeso(metrics.InventoryValue(snap.Items)),
		LowStockCount:  metrics.LowStockCount(snap.Items),
		Loading:        snap.Loading,
		Error:          snap.Err,
		Form:           formStatus(ws.ProductForm),
	}
}

type SaleRow struct {
	domain.Sale
	TotalLabel    string `json:"total_label"`
	DiscountLabel string `json:"discount_label"`
}

type ProductOption struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Stock float64 `json:"stock"`
}

type SalesView struct {
	Items      []SaleRow       `json:"items"`
	Products   []ProductOption `json:"products"`
	TodayTotal string          `json:"today_total"`
	Loading    bool            `json:"loading"`
	Error      string          `json:"error,omitempty"`
	Form       FormStatus      `json:"form"`
}

func buildSalesView(ws *workspace.Workspace) SalesView {
	sales := ws.Sales.Snapshot()
	products := ws.Products.Snapshot()
	dash := ws.Board.Current()

	rows := make([]SaleRow, 0, len(sales.Items))
	for _, sale := range sales.Items {
		rows = append(rows, SaleRow{
			Sale:          sale,
			TotalLabel:    metrics.FormatPeso(sale.TotalPrice),
			DiscountLabel: discountLabel(sale.DiscountPercent),
		})
	}

	options := make([]ProductOption, 0, len(products.Items))
	for _, p := range products.Items {
		options = append(options, ProductOption{ID: p.ID, Name: p.Name, Price: p.Price, Stock: p.CurrentStock})
	}

	return SalesView{
		Items:      rows,
		Products:   options,
		TodayTotal: metrics.FormatPeso(dash.TodaySales.Value),
		Loading:    sales.Loading,
		Error:      sales.Err,
		Form:       formStatus(ws.SaleForm),
	}
}

func discountLabel(d *float64) string {
	if d == nil {
		return "—"
	}
	return strconv.FormatFloat(*d, 'f', -1, 64) + "%"
}

type ExpenseRow struct {
	domain.Expense
	CategoryLabel string `json:"category_label"`
	AmountLabel   string `json:"amount_label"`
}

type CategoryOption struct {
	Value domain.ExpenseCategory `json:"value"`
	Label string                 `json:"label"`
}

type ExpensesView struct {
	Items      []ExpenseRow     `json:"items"`
	Categories []CategoryOption `json:"categories"`
	MonthTotal string           `json:"month_total"`
	Loading    bool             `json:"loading"`
	Error      string           `json:"error,omitempty"`
	Form       FormStatus       `json:"form"`
}

func buildExpensesView(ws *workspace.Workspace) ExpensesView {
	snap := ws.Expenses.Snapshot()
	dash := ws.Board.Current()

	rows := make([]ExpenseRow, 0, len(snap.Items))
	for _, e := range snap.Items {
		rows = append(rows, ExpenseRow{
			Expense:       e,
			CategoryLabel: e.Category.Label(),
			AmountLabel:   metrics.FormatPeso(e.Amount),
		})
	}

	categories := make([]CategoryOption, 0, len(domain.ExpenseCategories))
	for _, c := range domain.ExpenseCategories {
		categories = append(categories, CategoryOption{Value: c, Label: c.Label()})
	}

	return ExpensesView{
		Items:      rows,
		Categories: categories,
		MonthTotal: metrics.FormatPeso(dash.MonthlyExpenses.Value),
		Loading:    snap.Loading,
		Error:      snap.Err,
		Form:       formStatus(ws.ExpenseForm),
	}
}
