// Package shell is the static route table of the page surface and the rules
// that gate it behind a session.
package shell

import (
	"path"
	"strings"

	"isdanary/backend/internal/session"
)

type Access int

const (
	// Public pages are only for visitors without a session.
	Public Access = iota
	Gated
)

type Page string

const (
	PageLogin     Page = "login"
	PageSignup    Page = "signup"
	PageDashboard Page = "dashboard"
	PageInventory Page = "inventory"
	PageSales     Page = "sales"
	PageExpenses  Page = "expenses"
)

type Route struct {
	Path   string
	Page   Page
	Title  string
	Access Access
	// InNav routes appear in the header navigation.
	InNav bool
}

const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"
	RootPath      = "/"
)

var Routes = []Route{
	{Path: LoginPath, Page: PageLogin, Title: "Log in", Access: Public},
	{Path: "/signup", Page: PageSignup, Title: "Create account", Access: Public},
	{Path: DashboardPath, Page: PageDashboard, Title: "Dashboard", Access: Gated, InNav: true},
	{Path: "/inventory", Page: PageInventory, Title: "Inventory", Access: Gated, InNav: true},
	{Path: "/sales", Page: PageSales, Title: "Sales", Access: Gated, InNav: true},
	{Path: "/expenses", Page: PageExpenses, Title: "Expenses", Access: Gated, InNav: true},
}

// Nav returns the header navigation entries in display order.
func Nav() []Route {
	out := make([]Route, 0, len(Routes))
	for _, r := range Routes {
		if r.InNav {
			out = append(out, r)
		}
	}
	return out
}

type Decision struct {
	Route    Route
	Redirect string
	// Loading means the session is not known yet and a gated page must
	// show the loading gate instead of content.
	Loading bool
}

// Resolve decides what to serve for a request path given the session state.
func Resolve(raw string, state session.State) Decision {
	p := path.Clean("/" + strings.TrimSpace(raw))

	if p == RootPath {
		return gated(Route{Path: RootPath}, state, DashboardPath)
	}

	for _, r := range Routes {
		if r.Path != p {
			continue
		}
		if r.Access == Public {
			if state.SignedIn() {
				return Decision{Route: r, Redirect: DashboardPath}
			}
			return Decision{Route: r}
		}
		return gated(r, state, "")
	}

	return Decision{Redirect: RootPath}
}

func gated(r Route, state session.State, target string) Decision {
	switch {
	case state.Initializing:
		return Decision{Route: r, Loading: true}
	case !state.SignedIn():
		return Decision{Route: r, Redirect: LoginPath}
	case target != "":
		return Decision{Route: r, Redirect: target}
	}
	return Decision{Route: r}
}
