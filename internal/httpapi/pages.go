package httpapi

import (
	"bytes"
	"errors"
	"html/template"
	"log"
	"net/http"
	"strings"

	"isdanary/backend/internal/domain"
	"isdanary/backend/internal/form"
	"isdanary/backend/internal/metrics"
	"isdanary/backend/internal/service"
	"isdanary/backend/internal/session"
	"isdanary/backend/internal/shell"
)

const (
	logoutPath = "/logout"
	themePath  = "/theme"
)

type navItem struct {
	Path   string
	Title  string
	Active bool
}

type pageData struct {
	Title     string
	Page      shell.Page
	Nav       []navItem
	Theme     domain.Theme
	Principal *domain.Principal
	CSRF      string
	Loading   bool
	Error     string
	Email     string

	Dashboard service.DashboardView
	Products  service.ProductsView
	Edit      *service.ProductEdit
	Sales     service.SalesView
	Expenses  service.ExpensesView
}

func (a *API) handlePage(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}

	principal, signedIn := service.PrincipalFromContext(r.Context())
	switch r.URL.Path {
	case logoutPath, themePath:
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		if !signedIn {
			http.Redirect(w, r, shell.LoginPath, http.StatusSeeOther)
			return
		}
		if r.URL.Path == logoutPath {
			a.service.Logout(r.Context(), tokenFromContext(r.Context()))
			a.clearSessionCookie(w)
			http.Redirect(w, r, shell.LoginPath, http.StatusSeeOther)
			return
		}
		if _, err := a.service.ToggleTheme(r.Context()); err != nil {
			log.Printf("[httpapi] WARN: theme toggle failed: %v", err)
		}
		http.Redirect(w, r, returnPath(r.PostFormValue("return")), http.StatusSeeOther)
		return
	}

	var state session.State
	if signedIn {
		state.Principal = &principal
	}
	decision := shell.Resolve(r.URL.Path, state)
	if decision.Redirect != "" {
		http.Redirect(w, r, decision.Redirect, http.StatusSeeOther)
		return
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		a.renderPage(w, r, decision, http.StatusOK, pageData{})
	case http.MethodPost:
		a.submitPage(w, r, decision)
	default:
		writeMethodNotAllowed(w)
	}
}

// returnPath only allows redirects back to known pages.
func returnPath(raw string) string {
	for _, route := range shell.Routes {
		if route.Path == raw {
			return raw
		}
	}
	return shell.DashboardPath
}

func (a *API) submitPage(w http.ResponseWriter, r *http.Request, d shell.Decision) {
	if err := r.ParseForm(); err != nil {
		a.renderPage(w, r, d, http.StatusBadRequest, pageData{Error: "Unable to read the form."})
		return
	}
	ctx := r.Context()
	action := r.PostFormValue("action")
	id := strings.TrimSpace(r.PostFormValue("id"))

	var err error
	switch d.Route.Page {
	case shell.PageLogin, shell.PageSignup:
		if !a.loginLimiter.Allow(clientKey(r)) {
			a.renderPage(w, r, d, http.StatusTooManyRequests, pageData{Error: "Too many attempts. Please wait a minute."})
			return
		}
		var resp domain.LoginResponse
		email := r.PostFormValue("email")
		if d.Route.Page == shell.PageLogin {
			resp, err = a.service.Login(ctx, domain.LoginRequest{Email: email, Password: r.PostFormValue("password")})
		} else {
			resp, err = a.service.Signup(ctx, domain.SignupRequest{
				Email:           email,
				Password:        r.PostFormValue("password"),
				ConfirmPassword: r.PostFormValue("confirm_password"),
			})
		}
		if err != nil {
			a.renderPage(w, r, d, statusFor(err), pageData{Error: pageMessage(err), Email: email})
			return
		}
		a.setSessionCookie(w, resp)
		http.Redirect(w, r, shell.DashboardPath, http.StatusSeeOther)
		return

	case shell.PageInventory:
		if action == "delete" {
			err = a.service.DeleteProduct(ctx, id)
		} else {
			_, err = a.service.SaveProduct(ctx, id, form.ProductRequest{
				Name:         r.PostFormValue("name"),
				Category:     r.PostFormValue("category"),
				Supplier:     r.PostFormValue("supplier"),
				CurrentStock: form.ParseNumber(r.PostFormValue("current_stock")),
				Price:        form.ParseNumber(r.PostFormValue("price")),
				ReorderLevel: form.ParseNumber(r.PostFormValue("reorder_level")),
			})
		}

	case shell.PageSales:
		if action == "delete" {
			err = a.service.DeleteSale(ctx, id)
		} else {
			req := form.SaleRequest{
				ProductID: r.PostFormValue("product_id"),
				Quantity:  form.ParseNumber(r.PostFormValue("quantity")),
			}
			if raw := strings.TrimSpace(r.PostFormValue("discount_percent")); raw != "" {
				discount := form.ParseNumber(raw)
				req.DiscountPercent = &discount
			}
			_, err = a.service.RecordSale(ctx, req)
		}

	case shell.PageExpenses:
		if action == "delete" {
			err = a.service.DeleteExpense(ctx, id)
		} else {
			_, err = a.service.SaveExpense(ctx, id, form.ExpenseRequest{
				Label:    r.PostFormValue("label"),
				Amount:   form.ParseNumber(r.PostFormValue("amount")),
				Category: domain.ExpenseCategory(r.PostFormValue("category")),
			})
		}

	default:
		writeMethodNotAllowed(w)
		return
	}

	if err != nil {
		a.renderPage(w, r, d, statusFor(err), pageData{Error: pageMessage(err)})
		return
	}
	http.Redirect(w, r, d.Route.Path, http.StatusSeeOther)
}

// pageMessage is the inline banner text for a failed submission.
func pageMessage(err error) string {
	if statusFor(err) >= 500 && !userFacing(err) {
		return "Something went wrong. Please try again."
	}
	return err.Error()
}

func (a *API) renderPage(w http.ResponseWriter, r *http.Request, d shell.Decision, status int, data pageData) {
	ctx := r.Context()
	data.Title = d.Route.Title
	data.Page = d.Route.Page
	data.Loading = d.Loading
	data.CSRF = a.generateCSRFToken()
	data.Theme = domain.ThemeDark

	if p, ok := service.PrincipalFromContext(ctx); ok {
		data.Principal = &p
		if t, err := a.service.Theme(ctx); err == nil {
			data.Theme = t
		}
		for _, route := range shell.Nav() {
			data.Nav = append(data.Nav, navItem{Path: route.Path, Title: route.Title, Active: route.Path == d.Route.Path})
		}
	}

	var err error
	switch d.Route.Page {
	case shell.PageDashboard:
		data.Dashboard, err = a.service.Dashboard(ctx)
	case shell.PageInventory:
		query := r.URL.Query()
		if id := strings.TrimSpace(query.Get("edit")); id != "" && r.Method != http.MethodPost {
			edit, editErr := a.service.EditProduct(ctx, id)
			if editErr != nil {
				data.Error = pageMessage(editErr)
			} else {
				data.Edit = &edit
			}
		}
		data.Products, err = a.service.Products(ctx, query.Get("search"), metrics.ParseSortOrder(query.Get("sort")))
	case shell.PageSales:
		data.Sales, err = a.service.Sales(ctx)
	case shell.PageExpenses:
		data.Expenses, err = a.service.Expenses(ctx)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, "layout", data); err != nil {
		log.Printf("[httpapi] page render failed for %s: %v", d.Route.Path, err)
		http.Error(w, "page rendering error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		_, _ = buf.WriteTo(w)
	}
}

// All user-controlled fields are auto-escaped by html/template.
var pageTemplates = template.Must(template.New("pages").Parse(`
{{define "layout"}}<!doctype html>
<html lang="en" data-theme="{{.Theme}}">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>{{if .Title}}{{.Title}} · {{end}}IsdaNary</title>
  <style>
    :root { --bg: #f5f7fa; --card: #ffffff; --text: #1f2933; --muted: #6b7280; --primary: #0e7490; }
    [data-theme="dark"] { --bg: #0f172a; --card: #1e293b; --text: #e2e8f0; --muted: #94a3b8; --primary: #22d3ee; }
    body { font-family: sans-serif; margin: 0; background: var(--bg); color: var(--text); }
    header, main { padding: 16px 24px; }
    header { display: flex; gap: 16px; align-items: center; background: var(--card); }
    nav a { margin-right: 12px; color: var(--muted); }
    nav a.active { color: var(--primary); font-weight: bold; }
    .card { background: var(--card); border-radius: 12px; padding: 16px; margin-bottom: 16px; }
    .cards { display: grid; grid-template-columns: repeat(auto-fit, minmax(180px, 1fr)); gap: 16px; }
    .pill { display: inline-block; border-radius: 999px; padding: 2px 8px; background: rgba(14,116,144,.15); }
    .error { color: #dc2626; }
    .low { color: #d97706; }
    table { width: 100%; border-collapse: collapse; }
    th, td { text-align: left; padding: 6px; border-bottom: 1px solid rgba(148,163,184,.3); }
  </style>
</head>
<body>
  <header>
    <a href="/dashboard"><strong>IsdaNary</strong></a>
    <span>Fisheries Management System</span>
    {{if .Principal}}
    <nav>{{range .Nav}}<a href="{{.Path}}"{{if .Active}} class="active"{{end}}>{{.Title}}</a>{{end}}</nav>
    <form method="post" action="/theme">
      <input type="hidden" name="csrf_token" value="{{.CSRF}}" />
      <input type="hidden" name="return" value="/{{.Page}}" />
      <button type="submit">{{if eq .Theme "dark"}}Light mode{{else}}Dark mode{{end}}</button>
    </form>
    <form method="post" action="/logout">
      <input type="hidden" name="csrf_token" value="{{.CSRF}}" />
      <button type="submit">Log out</button>
    </form>
    {{end}}
  </header>
  <main>
    {{if .Error}}<p class="error" role="alert">{{.Error}}</p>{{end}}
    {{if .Loading}}<p>Loading your workspace...</p>
    {{else if eq .Page "login"}}{{template "login" .}}
    {{else if eq .Page "signup"}}{{template "signup" .}}
    {{else if eq .Page "dashboard"}}{{template "dashboard" .}}
    {{else if eq .Page "inventory"}}{{template "inventory" .}}
    {{else if eq .Page "sales"}}{{template "sales" .}}
    {{else if eq .Page "expenses"}}{{template "expenses" .}}
    {{end}}
  </main>
</body>
</html>
{{end}}

{{define "login"}}
<section class="card">
  <h1>Log in</h1>
  <form method="post" action="/login">
    <label>Email <input type="email" name="email" value="{{.Email}}" required /></label>
    <label>Password <input type="password" name="password" required /></label>
    <button type="submit">Log in</button>
  </form>
  <p>No account yet? <a href="/signup">Create one</a>.</p>
</section>
{{end}}

{{define "signup"}}
<section class="card">
  <h1>Create account</h1>
  <form method="post" action="/signup">
    <label>Email <input type="email" name="email" value="{{.Email}}" required /></label>
    <label>Password <input type="password" name="password" minlength="6" required /></label>
    <label>Confirm password <input type="password" name="confirm_password" minlength="6" required /></label>
    <button type="submit">Sign up</button>
  </form>
  <p>Already registered? <a href="/login">Log in</a>.</p>
</section>
{{end}}

{{define "dashboard"}}
{{with .Dashboard}}
<section class="card">
  <p>IsdaNary dashboard</p>
  <h1>Welcome back, {{.DisplayName}}!</h1>
</section>
{{range .Errors}}<p class="error">{{.}}</p>{{end}}
<section class="cards">
  <div class="card"><p>Today's sales</p><span class="pill">{{.TodaySales.Label}}</span></div>
  <div class="card"><p>Low stock</p><span class="pill">{{.LowStock.Label}}</span></div>
  <div class="card"><p>This month's expenses</p><span class="pill">{{.MonthlyExpenses.Label}}</span></div>
  <div class="card"><p>Inventory value</p><span class="pill">{{.InventoryValue.Label}}</span></div>
</section>
<section class="card">
  <h2>Stock levels</h2>
  {{if .StockLevels}}
  <table><thead><tr><th>Product</th><th>Stock</th></tr></thead>
  <tbody>{{range .StockLevels}}<tr><td>{{.Name}}</td><td>{{.Stock}}</td></tr>{{end}}</tbody></table>
  {{else}}<p>No products yet.</p>{{end}}
</section>
{{end}}
{{end}}

{{define "inventory"}}
{{$csrf := .CSRF}}
{{$edit := .Edit}}
{{with .Products}}
<section class="card">
  <h1>Inventory</h1>
  <p>Inventory value: {{.InventoryValue}} · Low stock: {{.LowStockCount}}</p>
  {{if .Error}}<p class="error">{{.Error}}</p>{{end}}
  <form method="get" action="/inventory">
    <input type="search" name="search" value="{{.Search}}" placeholder="Search name, category or supplier" />
    <select name="sort">
      <option value="newest"{{if eq .Sort "newest"}} selected{{end}}>Newest first</option>
      <option value="oldest"{{if eq .Sort "oldest"}} selected{{end}}>Oldest first</option>
    </select>
    <button type="submit">Apply</button>
  </form>
</section>
{{with $edit}}
<section class="card">
  <h2>Edit product</h2>
  <form method="post" action="/inventory">
    <input type="hidden" name="csrf_token" value="{{$csrf}}" />
    <input type="hidden" name="id" value="{{.ID}}" />
    <label>Name <input name="name" value="{{.Name}}" required /></label>
    <label>Category <input name="category" value="{{.Category}}" /></label>
    <label>Supplier <input name="supplier" value="{{.Supplier}}" /></label>
    <label>Current stock <input name="current_stock" value="{{.CurrentStock}}" inputmode="decimal" /></label>
    <label>Price <input name="price" value="{{.Price}}" inputmode="decimal" /></label>
    <label>Reorder level <input name="reorder_level" value="{{.ReorderLevel}}" inputmode="decimal" /></label>
    <button type="submit">Update product</button>
    <a href="/inventory">Cancel</a>
  </form>
</section>
{{else}}
<section class="card">
  <h2>Add product</h2>
  <form method="post" action="/inventory">
    <input type="hidden" name="csrf_token" value="{{$csrf}}" />
    <label>Name <input name="name" required /></label>
    <label>Category <input name="category" /></label>
    <label>Supplier <input name="supplier" /></label>
    <label>Current stock <input name="current_stock" inputmode="decimal" /></label>
    <label>Price <input name="price" inputmode="decimal" /></label>
    <label>Reorder level <input name="reorder_level" inputmode="decimal" /></label>
    <button type="submit">Save product</button>
  </form>
</section>
{{end}}
<section class="card">
  {{if .Loading}}<p>Loading...</p>
  {{else if .Items}}
  <table>
    <thead><tr><th>Name</th><th>Category</th><th>Stock</th><th>Price</th><th>Supplier</th><th>Reorder level</th><th></th></tr></thead>
    <tbody>{{range .Items}}
      <tr{{if .LowStock}} class="low"{{end}}>
        <td>{{.Name}}</td><td>{{.Category}}</td><td>{{.CurrentStock}}</td><td>{{.PriceLabel}}</td><td>{{.Supplier}}</td><td>{{.ReorderLevel}}</td>
        <td><a href="/inventory?edit={{.ID}}">Edit</a>
        <form method="post" action="/inventory">
          <input type="hidden" name="csrf_token" value="{{$csrf}}" />
          <input type="hidden" name="action" value="delete" />
          <input type="hidden" name="id" value="{{.ID}}" />
          <button type="submit">Delete</button>
        </form></td>
      </tr>{{end}}
    </tbody>
  </table>
  {{else}}<p>No products match.</p>{{end}}
</section>
{{end}}
{{end}}

{{define "sales"}}
{{$csrf := .CSRF}}
{{with .Sales}}
<section class="card">
  <h1>Sales</h1>
  <p>Today: {{.TodayTotal}}</p>
  {{if .Error}}<p class="error">{{.Error}}</p>{{end}}
  <p>Choose a product and quantity. You can optionally apply a discount.</p>
  <form method="post" action="/sales">
    <input type="hidden" name="csrf_token" value="{{$csrf}}" />
    <select name="product_id">
      <option value="">Select product</option>
      {{range .Products}}<option value="{{.ID}}">{{.Name}} ({{.Stock}} in stock)</option>{{end}}
    </select>
    <label>Quantity <input name="quantity" inputmode="numeric" value="1" /></label>
    <label>Discount % <input name="discount_percent" inputmode="decimal" /></label>
    <button type="submit">Record sale</button>
  </form>
</section>
<section class="card">
  {{if .Loading}}<p>Loading...</p>
  {{else if .Items}}
  <table>
    <thead><tr><th>Product</th><th>Quantity</th><th>Discount</th><th>Total</th><th></th></tr></thead>
    <tbody>{{range .Items}}
      <tr><td>{{.ProductName}}</td><td>{{.Quantity}}</td><td>{{.DiscountLabel}}</td><td>{{.TotalLabel}}</td>
        <td><form method="post" action="/sales">
          <input type="hidden" name="csrf_token" value="{{$csrf}}" />
          <input type="hidden" name="action" value="delete" />
          <input type="hidden" name="id" value="{{.ID}}" />
          <button type="submit">Delete</button>
        </form></td>
      </tr>{{end}}
    </tbody>
  </table>
  {{else}}<p>No sales recorded yet.</p>{{end}}
</section>
{{end}}
{{end}}

{{define "expenses"}}
{{$csrf := .CSRF}}
{{with .Expenses}}
<section class="card">
  <h1>Expenses</h1>
  <p>This month: {{.MonthTotal}}</p>
  {{if .Error}}<p class="error">{{.Error}}</p>{{end}}
  <form method="post" action="/expenses">
    <input type="hidden" name="csrf_token" value="{{$csrf}}" />
    <label>Description <input name="label" required /></label>
    <label>Amount <input name="amount" inputmode="decimal" /></label>
    <select name="category">{{range .Categories}}<option value="{{.Value}}">{{.Label}}</option>{{end}}</select>
    <button type="submit">Add expense</button>
  </form>
</section>
<section class="card">
  {{if .Loading}}<p>Loading...</p>
  {{else if .Items}}
  <table>
    <thead><tr><th>Description</th><th>Category</th><th>Amount</th><th></th></tr></thead>
    <tbody>{{range .Items}}
      <tr><td>{{.Label}}</td><td>{{.CategoryLabel}}</td><td>{{.AmountLabel}}</td>
        <td><form method="post" action="/expenses">
          <input type="hidden" name="csrf_token" value="{{$csrf}}" />
          <input type="hidden" name="action" value="delete" />
          <input type="hidden" name="id" value="{{.ID}}" />
          <button type="submit">Delete</button>
        </form></td>
      </tr>{{end}}
    </tbody>
  </table>
  {{else}}<p>No expenses logged yet.</p>{{end}}
</section>
{{end}}
{{end}}
`))
