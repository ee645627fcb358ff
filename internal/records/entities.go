package records

import (
	"log"
	"time"

	"isdanary/backend/internal/docstore"
	"isdanary/backend/internal/domain"
)

const (
	CollectionProducts = "products"
	CollectionSales    = "sales"
	CollectionExpenses = "expenses"
	CollectionUsers    = "users"
)

func DecodeProduct(rec docstore.Record) (domain.Product, error) {
	r := &reader{rec: rec}
	p := domain.Product{
		ID:           rec.ID,
		OwnerID:      r.string(FieldOwnerID),
		Name:         r.string("name"),
		Category:     r.string("category"),
		CurrentStock: r.number("currentStock"),
		Price:        r.number("price"),
		Supplier:     r.string("supplier"),
		ReorderLevel: r.number("reorderLevel"),
		CreatedAt:    r.millis(FieldCreatedAt),
	}
	if r.err != nil {
		return domain.Product{}, r.err
	}
	return p, nil
}

func DecodeSale(rec docstore.Record) (domain.Sale, error) {
	r := &reader{rec: rec}
	s := domain.Sale{
		ID:          rec.ID,
		OwnerID:     r.string(FieldOwnerID),
		ProductID:   r.string("productId"),
		ProductName: r.string("productName"),
		Quantity:    r.integer("quantity"),
		TotalPrice:  r.number("totalPrice"),
		CreatedAt:   r.millis(FieldCreatedAt),
	}
	if discount, ok := r.optionalNumber("discountPercent"); ok {
		s.DiscountPercent = &discount
	}
	if r.err != nil {
		return domain.Sale{}, r.err
	}
	return s, nil
}

func DecodeExpense(rec docstore.Record) (domain.Expense, error) {
	r := &reader{rec: rec}
	e := domain.Expense{
		ID:        rec.ID,
		OwnerID:   r.string(FieldOwnerID),
		Label:     r.string("label"),
		Amount:    r.number("amount"),
		Category:  domain.ExpenseCategory(r.string("category")),
		CreatedAt: r.millis(FieldCreatedAt),
	}
	if r.err != nil {
		return domain.Expense{}, r.err
	}
	if !e.Category.Valid() {
		if e.Category != "" {
			log.Printf("[records] expense %s has unknown category %q, using %q", rec.ID, e.Category, domain.ExpenseOther)
		}
		e.Category = domain.ExpenseOther
	}
	return e, nil
}

func DecodeUser(rec docstore.Record) (domain.UserAccount, error) {
	r := &reader{rec: rec}
	u := domain.UserAccount{
		ID:           rec.ID,
		Email:        r.string("email"),
		PasswordHash: r.string("passwordHash"),
	}
	if ms := r.millis(FieldCreatedAt); ms > 0 {
		u.CreatedAt = time.UnixMilli(ms).UTC()
	}
	if r.err != nil {
		return domain.UserAccount{}, r.err
	}
	return u, nil
}

func ProductFields(in domain.ProductInput) docstore.Fields {
	return docstore.Fields{
		"name":         in.Name,
		"category":     in.Category,
		"currentStock": in.CurrentStock,
		"price":        in.Price,
		"supplier":     in.Supplier,
		"reorderLevel": in.ReorderLevel,
	}
}

func SaleFields(in domain.SaleInput) docstore.Fields {
	f := docstore.Fields{
		"productId":   in.ProductID,
		"productName": in.ProductName,
		"quantity":    in.Quantity,
		"totalPrice":  in.TotalPrice,
	}
	if in.DiscountPercent != nil {
		f["discountPercent"] = *in.DiscountPercent
	}
	return f
}

func ExpenseFields(in domain.ExpenseInput) docstore.Fields {
	return docstore.Fields{
		"label":    in.Label,
		"amount":   in.Amount,
		"category": string(in.Category),
	}
}

func UserFields(u domain.UserAccount) docstore.Fields {
	return docstore.Fields{
		"email":        u.Email,
		"passwordHash": u.PasswordHash,
		FieldCreatedAt: u.CreatedAt.UnixMilli(),
	}
}
