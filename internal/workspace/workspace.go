// Package workspace gives every signed-in principal its own session holder,
// entity adapters and dashboard board, created on first use and torn down
// on logout.
package workspace

import (
	"sync"
	"time"

	"isdanary/backend/internal/docstore"
	"isdanary/backend/internal/domain"
	"isdanary/backend/internal/form"
	"isdanary/backend/internal/live"
	"isdanary/backend/internal/metrics"
	"isdanary/backend/internal/session"
)

type Workspace struct {
	Principal domain.Principal
	Session   *session.Holder
	Products  *live.Products
	Sales     *live.Sales
	Expenses  *live.Expenses
	Board     *metrics.Board

	// One submission lifecycle per form, shared by every client of the
	// principal.
	ProductForm *form.Machine
	SaleForm    *form.Machine
	ExpenseForm *form.Machine
}

func (w *Workspace) close() {
	// Signing out empties every adapter before the subscriptions go away.
	w.Session.SignOut()
	w.Board.Close()
	w.Products.Close()
	w.Sales.Close()
	w.Expenses.Close()
}

type Options struct {
	OwnerScoped bool
	// Location decides what "today" and "this month" mean on the dashboard.
	Location *time.Location
	Clock    func() time.Time
}

type Registry struct {
	store docstore.Store
	opts  Options

	mu     sync.Mutex
	spaces map[string]*Workspace
}

func NewRegistry(store docstore.Store, opts Options) *Registry {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Registry{store: store, opts: opts, spaces: make(map[string]*Workspace)}
}

func (r *Registry) now() time.Time {
	return r.opts.Clock().In(r.opts.Location)
}

// Acquire returns the principal's workspace, opening it on first use.
func (r *Registry) Acquire(p domain.Principal) *Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ws, ok := r.spaces[p.ID]; ok {
		return ws
	}

	holder := session.NewHolder()
	opts := live.Options{OwnerScoped: r.opts.OwnerScoped, Clock: r.opts.Clock}
	ws := &Workspace{
		Principal: p,
		Session:   holder,
		Products:  live.NewProducts(r.store, holder, opts),
		Sales:     live.NewSales(r.store, holder, opts),
		Expenses:  live.NewExpenses(r.store, holder, opts),

		ProductForm: form.NewMachine(),
		SaleForm:    form.NewMachine(),
		ExpenseForm: form.NewMachine(),
	}
	ws.Board = metrics.NewBoard(ws.Products, ws.Sales, ws.Expenses, r.now)

	principal := p
	holder.Init(&principal)

	r.spaces[p.ID] = ws
	return ws
}

func (r *Registry) Lookup(principalID string) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.spaces[principalID]
	return ws, ok
}

// Release signs the workspace out and drops it.
func (r *Registry) Release(principalID string) {
	r.mu.Lock()
	ws, ok := r.spaces[principalID]
	delete(r.spaces, principalID)
	r.mu.Unlock()

	if ok {
		ws.close()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.spaces)
}

func (r *Registry) Close() {
	r.mu.Lock()
	spaces := r.spaces
	r.spaces = make(map[string]*Workspace)
	r.mu.Unlock()

	for _, ws := range spaces {
		ws.close()
	}
}
