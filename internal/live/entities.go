package live

import (
	"time"

	"isdanary/backend/internal/docstore"
	"isdanary/backend/internal/domain"
	"isdanary/backend/internal/records"
	"isdanary/backend/internal/session"
)

type Options struct {
	// OwnerScoped limits every subscription to documents stamped with the
	// signed-in principal. When false the collections are shared by every
	// account and products are listed by name.
	OwnerScoped bool
	Clock       func() time.Time
}

type (
	Products = Adapter[domain.Product]
	Sales    = Adapter[domain.Sale]
	Expenses = Adapter[domain.Expense]
)

func NewProducts(store docstore.Store, holder *session.Holder, opts Options) *Products {
	cfg := Config[domain.Product]{
		Collection:  records.CollectionProducts,
		OrderBy:     records.FieldCreatedAt,
		Direction:   docstore.Descending,
		OwnerScoped: opts.OwnerScoped,
		Decode:      records.DecodeProduct,
		ID:          func(p domain.Product) string { return p.ID },
		Clock:       opts.Clock,
		Messages: Messages{
			Load:      "Failed to load inventory. Please try again.",
			Create:    "Unable to create product. Please try again.",
			Update:    "Unable to update product. Please try again.",
			Delete:    "Unable to delete product. Please try again.",
			SignedOut: "You must be logged in to create products.",
		},
	}
	if !opts.OwnerScoped {
		cfg.OrderBy = "name"
		cfg.Direction = docstore.Ascending
	}
	return New(store, holder, cfg)
}

func NewSales(store docstore.Store, holder *session.Holder, opts Options) *Sales {
	return New(store, holder, Config[domain.Sale]{
		Collection:  records.CollectionSales,
		OrderBy:     records.FieldCreatedAt,
		Direction:   docstore.Descending,
		OwnerScoped: opts.OwnerScoped,
		Decode:      records.DecodeSale,
		ID:          func(s domain.Sale) string { return s.ID },
		Clock:       opts.Clock,
		Messages: Messages{
			Load:      "Unable to load sales right now.",
			Create:    "Unable to record sale. Please try again.",
			Update:    "Unable to update sale. Please try again.",
			Delete:    "Unable to delete sale. Please try again.",
			SignedOut: "You must be logged in to record sales.",
		},
	})
}

func NewExpenses(store docstore.Store, holder *session.Holder, opts Options) *Expenses {
	return New(store, holder, Config[domain.Expense]{
		Collection:  records.CollectionExpenses,
		OrderBy:     records.FieldCreatedAt,
		Direction:   docstore.Descending,
		OwnerScoped: opts.OwnerScoped,
		Decode:      records.DecodeExpense,
		ID:          func(e domain.Expense) string { return e.ID },
		Clock:       opts.Clock,
		Messages: Messages{
			Load:      "Unable to load expenses right now.",
			Create:    "Unable to add expense. Please try again.",
			Update:    "Unable to update expense. Please try again.",
			Delete:    "Unable to delete expense. Please try again.",
			SignedOut: "You must be logged in to add expenses.",
		},
	})
}
